// Package runner wires memory, the cpu engine and the BDOS shim together,
// plants the CP/M low-memory trampoline, loads a program image and drives
// the fetch-execute loop until the guest halts or an instruction budget
// expires.
package runner

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go8080/cpm/bdos"
	"github.com/go8080/cpm/console"
	"github.com/go8080/cpm/cpu"
	"github.com/go8080/cpm/fcb"
	"github.com/go8080/cpm/memory"
)

const (
	comLoadAddr    = uint16(0x0100)
	rawLoadAddr    = uint16(0x0000)
	commandTailAt  = uint16(0x0080)
	defaultFCBAt   = uint16(0x005C)
	bdosEntry      = uint16(0x0005)
	warmBootVector = uint16(0x0000)
)

// LoadError reports a failure to read or place the program image. The
// runner's caller maps it to the documented exit code 1.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Machine owns the assembled cpu.Chip, the BDOS shim, and the open
// console, and drives execution.
type Machine struct {
	chip   *cpu.Chip
	shim   *bdos.BDOS
	con    *console.Console
	logger *slog.Logger
}

// Options configures New beyond the program path and guest argv.
type Options struct {
	// StartAddr overrides the load/entry address for non-.com images.
	// Ignored for .com images, which are always loaded at 0x0100 per
	// the CP/M convention.
	StartAddr uint16
}

// New loads programPath into a fresh machine. args are the command-line
// arguments after the program path, used to build the guest command
// tail and default FCB exactly as CP/M's CCP would. logger may be nil.
func New(programPath string, args []string, logger *slog.Logger) (*Machine, error) {
	return NewWithOptions(programPath, args, Options{}, logger)
}

// NewWithOptions is New with an explicit start-address override for raw
// (non-.com) images.
func NewWithOptions(programPath string, args []string, opts Options, logger *slog.Logger) (*Machine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	img, err := os.ReadFile(programPath)
	if err != nil {
		return nil, &LoadError{Path: programPath, Err: err}
	}

	ram := memory.NewRAM()
	loadAddr := rawLoadAddr
	if opts.StartAddr != 0 {
		loadAddr = opts.StartAddr
	}
	if strings.EqualFold(filepath.Ext(programPath), ".com") {
		loadAddr = comLoadAddr
	}
	if int(loadAddr)+len(img) > 0x10000 {
		return nil, &LoadError{Path: programPath, Err: fmt.Errorf("image too large to load at %#04x", loadAddr)}
	}
	plantTrampoline(ram)
	ram.LoadAt(loadAddr, img)

	seedCommandTail(ram, args)
	seedDefaultFCB(ram, programPath, args)

	con, err := console.Open()
	if err != nil {
		return nil, &LoadError{Path: programPath, Err: err}
	}

	shim := bdos.New(con, logger)
	chip, err := cpu.Init(&cpu.ChipDef{
		Mem:    ram,
		Ports:  &memory.Ports{},
		BDOS:   shim,
		Logger: logger,
		Entry:  loadAddr,
	})
	if err != nil {
		con.Close()
		return nil, err
	}

	return &Machine{chip: chip, shim: shim, con: con, logger: logger}, nil
}

// plantTrampoline installs the two fixed CP/M entry points every guest
// program assumes exist: JMP 0x0000 at 0x0000 (warm boot) and RET at
// 0x0005 (the BDOS entry, as a safety net in case trap interception is
// ever bypassed).
func plantTrampoline(mem memory.Memory) {
	mem.Write(warmBootVector, 0xC3)
	mem.WriteWord(warmBootVector+1, warmBootVector)
	mem.Write(bdosEntry, 0xC9)
}

// seedCommandTail stores the joined, space-separated arguments as CP/M's
// default-DMA command tail: a length byte at 0x0080 followed by the raw
// ASCII bytes.
func seedCommandTail(mem memory.Memory, args []string) {
	tail := strings.Join(args, " ")
	if len(tail) > 127 {
		tail = tail[:127]
	}
	mem.Write(commandTailAt, uint8(len(tail)))
	for i, ch := range []byte(tail) {
		mem.Write(commandTailAt+1+uint16(i), ch)
	}
}

// seedDefaultFCB fills 0x005C from the first non-program argument, or the
// program's own base name if no arguments were given.
func seedDefaultFCB(mem memory.Memory, programPath string, args []string) {
	name := filepath.Base(programPath)
	if len(args) > 0 {
		name = args[0]
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	mem.Write(defaultFCBAt, 0)
	fcb.SetNameAndExt(mem, defaultFCBAt, base, ext)
}

// Run drives the fetch-execute loop until the guest halts or budget
// instructions have executed. budget == 0 means unbounded. It returns the
// number of instructions executed.
func (m *Machine) Run(budget int) (int, error) {
	count := 0
	for !m.chip.Halted() {
		if budget > 0 && count >= budget {
			break
		}
		if _, err := m.chip.Step(); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Close tears down the machine: closes every BDOS-opened host file and
// restores the host terminal.
func (m *Machine) Close() error {
	m.shim.Close()
	return m.con.Close()
}
