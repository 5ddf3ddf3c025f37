// Package queue holds the audio ahead-buffer: tracks that finished
// downloading and transcoding, in the order they became ready.
package queue
