package ipc

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := bufio.NewWriter(&buf)
	if err := WriteFrame(w, []byte(`{"id":1}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := bufio.NewReader(&buf)

	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if string(got) != `{"id":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer

	w := bufio.NewWriter(&buf)
	// Hand-craft a length prefix bigger than the cap without allocating the
	// body; ReadFrame must reject before trying to read it.
	lenBuf := []byte{0, 0, 0, 0}
	lenBuf[0] = 0xff
	lenBuf[1] = 0xff
	lenBuf[2] = 0xff
	lenBuf[3] = 0x7f

	if _, err := w.Write(lenBuf); err != nil {
		t.Fatal(err)
	}

	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(&buf)

	if _, err := ReadFrame(r); err != ErrMessageTooLarge {
		t.Fatalf("err = %v, want ErrMessageTooLarge", err)
	}
}

func TestWriteFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer

	w := bufio.NewWriter(&buf)

	oversized := make([]byte, MaxMessageSize+1)
	if err := WriteFrame(w, oversized); err != ErrMessageTooLarge {
		t.Fatalf("err = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameEmptyBody(t *testing.T) {
	var buf bytes.Buffer

	w := bufio.NewWriter(&buf)
	if err := WriteFrame(w, nil); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(&buf)

	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
