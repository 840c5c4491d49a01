package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := WriteEndOfStream(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}

	if _, err := ReadFrame(&buf); err != ErrEndOfStream {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestEmptyPayloadIsSentinel(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFrame(&buf); err != ErrEndOfStream {
		t.Fatalf("expected ErrEndOfStream for zero-length frame, got %v", err)
	}
}
