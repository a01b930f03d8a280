// Package tinycompress writes zlib streams using stored (uncompressed)
// DEFLATE blocks. The output is valid for any zlib reader, including the
// host's zlib.decompress, while needing no compression tables on the MCU.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

const (
	zlibCMF = 0x78
	zlibFLG = 0x9C

	maxStoredBlock = 0xFFFF
)

var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers everything written to it and emits the zlib stream on
// Close.
type Writer struct {
	w      io.Writer
	buf    []byte
	adler  hash.Hash32
	closed bool
}

// NewWriter returns a Writer that writes the zlib stream to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, adler: adler32.New()}
}

func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosed
	}
	z.buf = append(z.buf, p...)
	z.adler.Write(p)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer.
// It does not close the underlying writer.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	out := make([]byte, 0, len(z.buf)+2+5*(len(z.buf)/maxStoredBlock+1)+4)
	out = append(out, zlibCMF, zlibFLG)
	data := z.buf
	for {
		n := len(data)
		if n > maxStoredBlock {
			n = maxStoredBlock
		}
		final := byte(0)
		if n == len(data) {
			final = 1
		}
		length := uint16(n)
		out = append(out, final,
			byte(length), byte(length>>8),
			byte(^length), byte(^length>>8))
		out = append(out, data[:n]...)
		data = data[n:]
		if final == 1 {
			break
		}
	}
	sum := z.adler.Sum32()
	out = append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))

	_, err := z.w.Write(out)
	return err
}

// Compress returns input as a complete zlib stream.
func Compress(input []byte) []byte {
	var out sliceWriter
	z := NewWriter(&out)
	// sliceWriter never fails.
	_, _ = z.Write(input)
	_ = z.Close()
	return out
}

type sliceWriter []byte

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s = append(*s, p...)
	return len(p), nil
}
