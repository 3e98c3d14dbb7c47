package session

import "testing"

func TestOutputBufferEvictsByCountFIFO(t *testing.T) {
	b := NewOutputBuffer(3, 1<<20)

	for i := 0; i < 5; i++ {
		b.Append("stdout", "line", int64(i))
	}

	entries := b.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}

	if entries[0].Monotonic != 2 {
		t.Fatalf("oldest surviving entry ts = %d, want 2 (FIFO eviction)", entries[0].Monotonic)
	}
}

func TestOutputBufferEvictsByBytesFIFO(t *testing.T) {
	b := NewOutputBuffer(1000, 10)

	b.Append("stdout", "12345", 0)
	b.Append("stdout", "67890", 1)
	b.Append("stdout", "abcde", 2) // forces eviction of entry 0

	entries := b.Entries()

	total := 0
	for _, e := range entries {
		total += len(e.Text)
	}

	if total > 10 {
		t.Fatalf("total bytes = %d, exceeds cap 10", total)
	}

	if entries[0].Text != "67890" {
		t.Fatalf("entries[0] = %q, want the second entry to have survived", entries[0].Text)
	}
}

func TestOutputBufferTruncatesOversizedEntryAtUTF8Boundary(t *testing.T) {
	b := NewOutputBuffer(10, 5)

	b.Append("stdout", "héllo world", 0) // é is 2 bytes; cap is 5

	entries := b.Entries()
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}

	for _, r := range entries[0].Text {
		_ = r // ranging validates the string decodes cleanly as UTF-8
	}

	if len(entries[0].Text) > 5 {
		t.Fatalf("truncated entry is %d bytes, want <= 5", len(entries[0].Text))
	}
}

func TestOutputBufferClear(t *testing.T) {
	b := NewOutputBuffer(10, 1<<20)
	b.Append("stdout", "x", 0)
	b.Clear()

	if len(b.Entries()) != 0 {
		t.Fatalf("expected empty buffer after Clear")
	}
}

func TestOutputBufferTail(t *testing.T) {
	b := NewOutputBuffer(10, 1<<20)

	for i := 0; i < 5; i++ {
		b.Append("stdout", "x", int64(i))
	}

	tail := b.Tail(2)
	if len(tail) != 2 || tail[0].Monotonic != 3 || tail[1].Monotonic != 4 {
		t.Fatalf("Tail(2) = %+v", tail)
	}
}
