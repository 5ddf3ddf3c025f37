// Package audio plays transcoded WAV files through oto/v3 and provides a
// mock sink for tests.
package audio
