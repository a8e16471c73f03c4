package extentfile

import (
	"bytes"
	"testing"
)

func TestMemReadUnwrittenRangeIsZero(t *testing.T) {
	m := NewMem()
	got, err := m.ReadAt(0, 16)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Fatalf("unwritten read = %x, want zeroes", got)
	}
}

func TestMemWriteThenRead(t *testing.T) {
	m := NewMem()
	want := []byte("hello, extent")
	if err := m.WriteAt(100, want); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got, err := m.ReadAt(100, len(want))
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadAt = %q, want %q", got, want)
	}
}

func TestMemWriteGrowsBackingBuffer(t *testing.T) {
	m := NewMem()
	if err := m.WriteAt(4096, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got, err := m.ReadAt(0, 3)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0, 0}) {
		t.Fatalf("read before the grown write region = %x, want zeroes", got)
	}
}
