package bdos

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go8080/cpm/cpu"
	"github.com/go8080/cpm/fcb"
	"github.com/go8080/cpm/memory"
)

func newChip(t *testing.T) *cpu.Chip {
	t.Helper()
	c, err := cpu.Init(&cpu.ChipDef{Mem: memory.NewRAM(), Ports: &memory.Ports{}})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPrintString(t *testing.T) {
	var out strings.Builder
	b := New(fakeConsole{out: &out}, nil)
	c := newChip(t)
	mem := c.Memory()
	msg := "HELLO$"
	for i, ch := range []byte(msg) {
		mem.Write(0x0200+uint16(i), ch)
	}
	c.C = 9
	c.SetDE(0x0200)
	if err := b.Call(c); err != nil {
		t.Fatal(err)
	}
	if out.String() != "HELLO" {
		t.Errorf("got %q, want HELLO (no trailing $)", out.String())
	}
}

func TestGetVersion(t *testing.T) {
	b := New(fakeConsole{}, nil)
	c := newChip(t)
	c.C = 12
	if err := b.Call(c); err != nil {
		t.Fatal(err)
	}
	if c.A != 0x22 || c.L != 0x22 || c.H != 0x00 || c.B != 0x00 {
		t.Errorf("A=%#x L=%#x H=%#x B=%#x, want A=L=0x22 H=B=0x00", c.A, c.L, c.H, c.B)
	}
}

func TestSystemReset(t *testing.T) {
	b := New(fakeConsole{}, nil)
	c := newChip(t)
	c.C = 0
	if err := b.Call(c); err != nil {
		t.Fatal(err)
	}
	if !c.Halted() {
		t.Error("function 0 did not halt the machine")
	}
}

func TestUnknownFunctionFails(t *testing.T) {
	b := New(fakeConsole{}, nil)
	c := newChip(t)
	c.C = 99
	if err := b.Call(c); err != nil {
		t.Fatal(err)
	}
	if c.A != statusFail || c.L != statusFail {
		t.Errorf("A=%#x L=%#x, want 0xFF/0xFF", c.A, c.L)
	}
}

// TestComputeFileSizeOnClosedFile covers the ordinary CP/M calling
// pattern: the guest fills an FCB name and asks for the size of a file
// it never opened itself.
func TestComputeFileSizeOnClosedFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	if err := os.WriteFile("foo.txt", make([]byte, 200), 0644); err != nil {
		t.Fatal(err)
	}

	b := New(fakeConsole{}, nil)
	c := newChip(t)
	const fcbAddr = 0x005C
	fcb.SetNameAndExt(c.Memory(), fcbAddr, "foo", "txt")

	c.C = 35 // COMPUTE FILE SIZE
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("compute file size on closed file failed: A=%#x", c.A)
	}
	if got := fcb.RandomRecord(c.Memory(), fcbAddr); got != 2 {
		t.Errorf("record count = %d, want 2 (200 bytes / 128 rounded up)", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	b := New(fakeConsole{}, nil)
	c := newChip(t)
	mem := c.Memory()

	const fcbAddr = 0x005C
	fcb.SetNameAndExt(mem, fcbAddr, "foo", "txt")

	for i := 0; i < recordSize; i++ {
		mem.Write(0x0200+uint16(i), byte(i))
	}

	c.C = 22 // MAKE FILE
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("make file failed: A=%#x", c.A)
	}

	c.C = 26 // SET DMA
	c.SetDE(0x0200)
	mustCall(t, b, c)

	c.C = 21 // WRITE SEQUENTIAL
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("write sequential failed: A=%#x", c.A)
	}

	c.C = 16 // CLOSE
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("close failed: A=%#x", c.A)
	}

	c.C = 15 // OPEN
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("open failed: A=%#x", c.A)
	}

	c.C = 26
	c.SetDE(0x0300)
	mustCall(t, b, c)

	c.C = 20 // READ SEQUENTIAL
	c.SetDE(fcbAddr)
	mustCall(t, b, c)
	if c.A != statusOK {
		t.Fatalf("read sequential failed: A=%#x", c.A)
	}

	for i := 0; i < recordSize; i++ {
		if got := mem.Read(0x0300 + uint16(i)); got != byte(i) {
			t.Fatalf("byte %d = %#x, want %#x", i, got, byte(i))
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "foo.txt")); err != nil {
		t.Fatalf("foo.txt not created: %v", err)
	}
}

func mustCall(t *testing.T, b *BDOS, c *cpu.Chip) {
	t.Helper()
	if err := b.Call(c); err != nil {
		t.Fatal(err)
	}
}

type fakeConsole struct {
	out *strings.Builder
}

func (f fakeConsole) ReadByte() (byte, error) { return 0, nil }
func (f fakeConsole) WriteByte(b byte) error {
	if f.out != nil {
		f.out.WriteByte(b)
	}
	return nil
}
func (f fakeConsole) WriteString(s string) error {
	if f.out != nil {
		f.out.WriteString(s)
	}
	return nil
}
