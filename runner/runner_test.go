package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPlantsTrampolineAndLoadsCOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HELLO.COM")
	// HLT at 0x0100.
	if err := os.WriteFile(path, []byte{0x76}, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := New(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	mem := m.chip.Memory()
	if mem.Read(0x0000) != 0xC3 || mem.ReadWord(0x0001) != 0x0000 || mem.Read(0x0005) != 0xC9 {
		t.Errorf("trampoline not planted: %#02x %#04x %#02x", mem.Read(0x0000), mem.ReadWord(0x0001), mem.Read(0x0005))
	}
	if mem.Read(0x0100) != 0x76 {
		t.Errorf("memory[0x0100] = %#02x, want the loaded HLT (0x76)", mem.Read(0x0100))
	}

	count, err := m.Run(0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if !m.chip.Halted() {
		t.Error("machine did not halt on HLT")
	}
}

func TestNewLoadFailureOnMissingFile(t *testing.T) {
	_, err := New("/nonexistent/path/does-not-exist.com", nil, nil)
	if err == nil {
		t.Fatal("expected a load error")
	}
	if _, ok := err.(*LoadError); !ok {
		t.Errorf("got %T, want *LoadError", err)
	}
}

func TestInstructionBudgetStopsExecution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LOOP.COM")
	// JMP 0x0100: an infinite loop that never halts on its own.
	if err := os.WriteFile(path, []byte{0xC3, 0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := New(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	count, err := m.Run(5)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
	if m.chip.Halted() {
		t.Error("machine halted but the program never reached JMP 0x0000")
	}
}
