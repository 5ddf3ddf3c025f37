package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mazeofme/maze/internal/cache"
)

const wavFormatPCM = 1

// DecodeWAV reads a RIFF/WAVE stream and returns its PCM samples. Only
// uncompressed PCM is supported; unknown chunks are skipped.
func DecodeWAV(r io.Reader) ([]byte, cache.Format, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, cache.Format{}, fmt.Errorf("%w: short header", ErrUnsupportedFormat)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, cache.Format{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		format    cache.Format
		haveFmt   bool
		chunkHead [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunkHead[:]); err != nil {
			return nil, cache.Format{}, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
		}
		id := string(chunkHead[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHead[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, cache.Format{}, fmt.Errorf("%w: fmt chunk too small", ErrUnsupportedFormat)
			}
			buf := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, cache.Format{}, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedFormat)
			}
			if tag := binary.LittleEndian.Uint16(buf[0:2]); tag != wavFormatPCM {
				return nil, cache.Format{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, tag)
			}
			format = cache.Format{
				Channels:      int(binary.LittleEndian.Uint16(buf[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(buf[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(buf[14:16])),
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, cache.Format{}, fmt.Errorf("%w: data before fmt", ErrUnsupportedFormat)
			}
			// ffmpeg writes 0xFFFFFFFF when streaming; read to EOF then.
			var (
				pcm []byte
				err error
			)
			if size == 0xFFFFFFFF {
				pcm, err = io.ReadAll(r)
			} else {
				pcm = make([]byte, size)
				var n int
				n, err = io.ReadFull(r, pcm)
				if err == io.ErrUnexpectedEOF {
					pcm, err = pcm[:n], nil
				}
			}
			if err != nil {
				return nil, cache.Format{}, fmt.Errorf("unable to read samples: %w", err)
			}
			if len(pcm) == 0 {
				return nil, cache.Format{}, ErrEmptyAudio
			}
			return pcm, format, nil

		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, cache.Format{}, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedFormat, id)
			}
		}
	}
}

// EncodeWAV writes PCM samples as a canonical 44-byte-header WAV stream.
//
//nolint:gosec
func EncodeWAV(w io.Writer, pcm []byte, f cache.Format) error {
	blockAlign := f.Channels * f.BitsPerSample / 8
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(f.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(f.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
