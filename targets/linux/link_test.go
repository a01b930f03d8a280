//go:build linux && !tinygo

package main

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// scriptedReader returns its chunks one per Read, then fails.
type scriptedReader struct {
	chunks [][]byte
	err    error
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestReadLinkForwardsUntilError(t *testing.T) {
	boom := errors.New("device gone")
	r := &scriptedReader{chunks: [][]byte{{1, 2}, {}, {3}}, err: boom}
	out := make(chan []byte, 4)
	errc := make(chan error, 1)

	go readLink(r, out, errc)

	var got []byte
	for {
		select {
		case chunk := <-out:
			got = append(got, chunk...)
			continue
		case err := <-errc:
			if err != boom {
				t.Errorf("error %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("readLink did not finish")
		}
		break
	}
	// Chunks are sent before the error, on a buffered channel.
	for len(out) > 0 {
		got = append(got, <-out...)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, got); diff != "" {
		t.Errorf("forwarded bytes (-want +got):\n%s", diff)
	}
}

func TestDefaultLinkConfig(t *testing.T) {
	want := LinkConfig{Device: "/dev/ttyS0", Baud: 250000, ReadTimeout: 10 * time.Millisecond}
	if diff := cmp.Diff(want, DefaultLinkConfig("/dev/ttyS0")); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}
