// Package cache keeps downloaded and transcoded track files on disk, keyed
// by track id, and decoded PCM in a small in-memory LRU.
package cache
