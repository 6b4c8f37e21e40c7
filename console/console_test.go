package console

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReadByte(t *testing.T) {
	c := New(strings.NewReader("ab"), io.Discard)
	b, err := c.ReadByte()
	if err != nil || b != 'a' {
		t.Fatalf("got %q/%v, want a/nil", b, err)
	}
	b, err = c.ReadByte()
	if err != nil || b != 'b' {
		t.Fatalf("got %q/%v, want b/nil", b, err)
	}
	if _, err := c.ReadByte(); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestWriteByteFlushesImmediately(t *testing.T) {
	var buf bytes.Buffer
	c := New(strings.NewReader(""), &buf)
	if err := c.WriteByte('X'); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "X" {
		t.Errorf("buf = %q, want X", buf.String())
	}
}

func TestWriteString(t *testing.T) {
	var buf bytes.Buffer
	c := New(strings.NewReader(""), &buf)
	if err := c.WriteString("hello"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello" {
		t.Errorf("buf = %q, want hello", buf.String())
	}
}

func TestCloseWithoutOpenIsNoop(t *testing.T) {
	c := New(strings.NewReader(""), io.Discard)
	if err := c.Close(); err != nil {
		t.Errorf("Close on non-terminal console: %v", err)
	}
}
