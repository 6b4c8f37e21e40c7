// Package cpu implements the Intel 8080 instruction set: registers, the
// flags byte, and the fetch-decode-execute engine driving them.
package cpu

import (
	"fmt"

	"github.com/go8080/cpm/disasm"
	"github.com/go8080/cpm/memory"
)

// Flag bit masks for the 8080 flags byte. Bits 1, 3 and 5 are not flags;
// they are constant (1, 0, 0 respectively) and enforced by Flags/SetFlags.
const (
	FlagC  = uint8(0x01) // Carry
	flagR1 = uint8(0x02) // Always 1
	FlagP  = uint8(0x04) // Parity
	flagR3 = uint8(0x08) // Always 0
	FlagAC = uint8(0x10) // Auxiliary Carry
	flagR5 = uint8(0x20) // Always 0
	FlagZ  = uint8(0x40) // Zero
	FlagS  = uint8(0x80) // Sign

	reservedMask = flagR3 | flagR5
)

// InitialSP is the stack pointer value the runner sets up programs with.
const InitialSP = uint16(0xF000)

// ErrInvalidState represents an internal precondition violation in the
// emulator. It is never returned for guest-triggered conditions (unknown
// opcodes and BDOS failures have their own, non-error, conventions).
type ErrInvalidState struct {
	Reason string
}

// Error implements the error interface.
func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid cpu state: %s", e.Reason)
}

// BDOSHandler is implemented by whatever services CALL 0x0005. cpu only
// depends on this interface so the bdos package (which needs the host
// filesystem and console) never needs to be imported here.
type BDOSHandler interface {
	// Call services one BDOS function invocation. The function number is
	// in register C, the argument in DE; results are left in A/L by the
	// implementation. It is invoked in place of a real CALL to 0x0005 —
	// on return, PC is already positioned past the 3-byte CALL.
	Call(c *Chip) error
}

// ChipDef configures a new Chip.
type ChipDef struct {
	// Mem is the guest address space. Required.
	Mem memory.Memory
	// Ports is the guest I/O port space. Required.
	Ports *memory.Ports
	// BDOS services CALL 0x0005. May be nil, in which case CALL 0x0005
	// behaves like an ordinary CALL (pushing the return address and
	// jumping to 0x0005, where the runner has planted a RET).
	BDOS BDOSHandler
	// Logger receives a line for every opcode this engine doesn't
	// recognize. May be nil.
	Logger Logger
	// Entry is the initial program counter.
	Entry uint16
}

// Logger is the minimal logging surface cpu depends on, satisfied by
// *slog.Logger (and by a no-op for tests that don't care).
type Logger interface {
	Warn(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Warn(string, ...any) {}

// Chip is the 8080 register file plus its connection to memory, ports and
// the BDOS trap. All state lives here rather than in package globals so
// opcode semantics can be unit tested in isolation.
type Chip struct {
	A, B, C, D, E, H, L uint8
	SP, PC              uint16

	// InterruptsEnabled mirrors the 8080 interrupt-enable flip-flop. No
	// interrupt source is modelled, so nothing besides DI/EI themselves
	// ever touches it.
	InterruptsEnabled bool

	flags  uint8
	halted bool

	mem    memory.Memory
	ports  *memory.Ports
	bdos   BDOSHandler
	logger Logger
}

// Init creates a new Chip in its power-on state.
func Init(def *ChipDef) (*Chip, error) {
	if def.Mem == nil {
		return nil, ErrInvalidState{"ChipDef.Mem is required"}
	}
	if def.Ports == nil {
		return nil, ErrInvalidState{"ChipDef.Ports is required"}
	}
	logger := def.Logger
	if logger == nil {
		logger = discardLogger{}
	}
	c := &Chip{
		mem:    def.Mem,
		ports:  def.Ports,
		bdos:   def.BDOS,
		logger: logger,
	}
	c.PowerOn(def.Entry)
	return c, nil
}

// PowerOn resets the Chip to its documented initial state: flags = 0x02
// (only the constant-1 bit), PC = entry, SP = 0xF000, halted and
// InterruptsEnabled both false. Registers A-L are left zeroed.
func (c *Chip) PowerOn(entry uint16) {
	c.A, c.B, c.C, c.D, c.E, c.H, c.L = 0, 0, 0, 0, 0, 0, 0
	c.flags = flagR1
	c.PC = entry
	c.SP = InitialSP
	c.halted = false
	c.InterruptsEnabled = false
}

// Halted reports whether HLT (or a BDOS system-reset/warm-boot) has
// stopped the machine.
func (c *Chip) Halted() bool {
	return c.halted
}

// Halt stops the machine. Used by BDOS function 0 (system reset) and by
// the engine itself when it sees JMP 0x0000 (CP/M warm boot).
func (c *Chip) Halt() {
	c.halted = true
}

// Memory returns the guest address space, for BDOS handlers that need to
// read/write FCBs, strings and DMA buffers.
func (c *Chip) Memory() memory.Memory {
	return c.mem
}

// Ports returns the guest I/O port space.
func (c *Chip) Ports() *memory.Ports {
	return c.ports
}

// Flags returns the flags byte with the invariant bits enforced.
func (c *Chip) Flags() uint8 {
	return c.flags
}

// SetFlags installs v as the flags byte, forcing bit 1 to 1 and bits 3/5
// to 0 regardless of what v carried. Used by POP PSW.
func (c *Chip) SetFlags(v uint8) {
	c.flags = (v &^ reservedMask) | flagR1
}

func (c *Chip) flagSet(mask uint8) bool {
	return c.flags&mask != 0
}

func (c *Chip) setFlag(mask uint8, v bool) {
	if v {
		c.flags |= mask
	} else {
		c.flags &^= mask
	}
}

// BC, DE, HL and PSW are the named register-pair accessors Design Notes
// recommends in place of arithmetic register-pair index computation.

func (c *Chip) BC() uint16 { return uint16(c.B)<<8 | uint16(c.C) }
func (c *Chip) SetBC(v uint16) {
	c.B = uint8(v >> 8)
	c.C = uint8(v)
}

func (c *Chip) DE() uint16 { return uint16(c.D)<<8 | uint16(c.E) }
func (c *Chip) SetDE(v uint16) {
	c.D = uint8(v >> 8)
	c.E = uint8(v)
}

func (c *Chip) HL() uint16 { return uint16(c.H)<<8 | uint16(c.L) }
func (c *Chip) SetHL(v uint16) {
	c.H = uint8(v >> 8)
	c.L = uint8(v)
}

// PSW returns the (A, flags) pair pushed/popped by PUSH PSW/POP PSW.
func (c *Chip) PSW() uint16 { return uint16(c.A)<<8 | uint16(c.flags) }
func (c *Chip) SetPSW(v uint16) {
	c.A = uint8(v >> 8)
	c.SetFlags(uint8(v))
}

// Step executes one instruction. If halted it returns 0 cycles and does
// nothing. Its only error is the one the BDOS handler returns for a
// trapped CALL 0x0005; unknown opcodes are logged and charged 4 cycles as
// a NOP.
func (c *Chip) Step() (int, error) {
	if c.halted {
		return 0, nil
	}
	opPC := c.PC
	op := c.fetchByte()
	return c.execute(opPC, op)
}

func (c *Chip) fetchByte() uint8 {
	v := c.mem.Read(c.PC)
	c.PC++
	return v
}

func (c *Chip) fetchWord() uint16 {
	v := c.mem.ReadWord(c.PC)
	c.PC += 2
	return v
}

func (c *Chip) push(v uint16) {
	c.SP--
	c.mem.Write(c.SP, uint8(v>>8))
	c.SP--
	c.mem.Write(c.SP, uint8(v))
}

func (c *Chip) pop() uint16 {
	lo := c.mem.Read(c.SP)
	c.SP++
	hi := c.mem.Read(c.SP)
	c.SP++
	return uint16(hi)<<8 | uint16(lo)
}

// readReg/writeReg implement the 8080's 3-bit register field: 0=B,1=C,
// 2=D,3=E,4=H,5=L,6=M (memory[HL]),7=A.
func (c *Chip) readReg(idx uint8) uint8 {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.mem.Read(c.HL())
	default:
		return c.A
	}
}

func (c *Chip) writeReg(idx uint8, v uint8) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.mem.Write(c.HL(), v)
	default:
		c.A = v
	}
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func popcountEven(v uint8) bool {
	cnt := 0
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) != 0 {
			cnt++
		}
	}
	return cnt%2 == 0
}

// zsp updates Zero, Sign and Parity from result. Carry and AC are left
// untouched; callers set those themselves per the operation's rules.
func (c *Chip) zsp(result uint8) {
	c.setFlag(FlagZ, result == 0)
	c.setFlag(FlagS, result&0x80 != 0)
	c.setFlag(FlagP, popcountEven(result))
}

// addition implements ADD/ADC/ADI/ACI semantics: sets Carry, AC, Z, S, P
// and returns the new A value. carryIn is 0 or 1.
func (c *Chip) addition(v uint8, carryIn uint8) uint8 {
	res := uint16(c.A) + uint16(v) + uint16(carryIn)
	ac := (c.A&0x0F)+(v&0x0F)+carryIn > 0x0F
	result := uint8(res)
	c.setFlag(FlagC, res > 0xFF)
	c.setFlag(FlagAC, ac)
	c.zsp(result)
	return result
}

// subtraction implements SUB/SBB/SUI/SBI/CMP semantics: sets Carry, AC, Z,
// S, P and returns A-v-borrowIn. AC follows the 8080 "no borrow from
// nibble" convention (set when no borrow occurred), not the more common
// x86 convention.
func (c *Chip) subtraction(v uint8, borrowIn uint8) uint8 {
	res := int16(c.A) - int16(v) - int16(borrowIn)
	ac := int(c.A&0x0F) >= int(v&0x0F)+int(borrowIn)
	result := uint8(res)
	c.setFlag(FlagC, res < 0)
	c.setFlag(FlagAC, ac)
	c.zsp(result)
	return result
}

// andOp implements ANA/ANI. AC is set to bit 3 of (A|v) per the 8080's
// documented (not 8085) ANA behaviour.
func (c *Chip) andOp(v uint8) uint8 {
	result := c.A & v
	c.setFlag(FlagC, false)
	c.setFlag(FlagAC, (c.A|v)&0x08 != 0)
	c.zsp(result)
	return result
}

func (c *Chip) xorOp(v uint8) uint8 {
	result := c.A ^ v
	c.setFlag(FlagC, false)
	c.setFlag(FlagAC, false)
	c.zsp(result)
	return result
}

func (c *Chip) orOp(v uint8) uint8 {
	result := c.A | v
	c.setFlag(FlagC, false)
	c.setFlag(FlagAC, false)
	c.zsp(result)
	return result
}

// inr/dcr implement INR/DCR: Z, S, P, AC update; Carry is untouched.
func (c *Chip) inr(v uint8) uint8 {
	result := v + 1
	c.setFlag(FlagAC, (v&0x0F)+1 > 0x0F)
	c.zsp(result)
	return result
}

func (c *Chip) dcr(v uint8) uint8 {
	result := v - 1
	c.setFlag(FlagAC, v&0x0F >= 1)
	c.zsp(result)
	return result
}

// dad implements DAD: 16-bit add to HL affecting only Carry.
func (c *Chip) dad(v uint16) {
	res := uint32(c.HL()) + uint32(v)
	c.setFlag(FlagC, res > 0xFFFF)
	c.SetHL(uint16(res))
}

// daa implements decimal-adjust per the 8080's documented algorithm.
func (c *Chip) daa() {
	adj := uint8(0)
	if (c.A&0x0F) > 9 || c.flagSet(FlagAC) {
		adj += 0x06
	}
	setCarry := c.A > 0x99 || c.flagSet(FlagC)
	if setCarry {
		adj += 0x60
	}
	ac := (c.A&0x0F)+(adj&0x0F) > 0x0F
	c.A = c.A + adj
	c.setFlag(FlagC, setCarry)
	c.setFlag(FlagAC, ac)
	c.zsp(c.A)
}

// rlc/rrc/ral/rar implement the four single-bit A rotates. None touch Z,
// S, P or AC.
func (c *Chip) rlc() {
	bit7 := c.A&0x80 != 0
	c.A = (c.A << 1) | boolToUint8(bit7)
	c.setFlag(FlagC, bit7)
}

func (c *Chip) rrc() {
	bit0 := c.A&0x01 != 0
	c.A = (c.A >> 1) | (boolToUint8(bit0) << 7)
	c.setFlag(FlagC, bit0)
}

func (c *Chip) ral() {
	oldCarry := c.flagSet(FlagC)
	bit7 := c.A&0x80 != 0
	c.A = (c.A << 1) | boolToUint8(oldCarry)
	c.setFlag(FlagC, bit7)
}

func (c *Chip) rar() {
	oldCarry := c.flagSet(FlagC)
	bit0 := c.A&0x01 != 0
	c.A = (c.A >> 1) | (boolToUint8(oldCarry) << 7)
	c.setFlag(FlagC, bit0)
}

// condition evaluates one of the eight 3-bit condition codes {NZ,Z,NC,C,
// PO,PE,P,M} used by JCC/CCC/RCC.
func (c *Chip) condition(idx uint8) bool {
	switch idx {
	case 0:
		return !c.flagSet(FlagZ)
	case 1:
		return c.flagSet(FlagZ)
	case 2:
		return !c.flagSet(FlagC)
	case 3:
		return c.flagSet(FlagC)
	case 4:
		return !c.flagSet(FlagP)
	case 5:
		return c.flagSet(FlagP)
	case 6:
		return !c.flagSet(FlagS)
	default:
		return c.flagSet(FlagS)
	}
}

// execute dispatches on the opcode fetched from opPC. MOV (0x40-0x7F,
// except HLT at 0x76) and the 8-register ALU block (0x80-0xBF) are
// handled by decoding their register-field bits directly rather than by
// 128 individual case labels; every other opcode gets its own case, in
// the teacher's exhaustive-switch style.
func (c *Chip) execute(opPC uint16, op uint8) (int, error) {
	switch {
	case op == 0x76:
		c.halted = true
		return 7, nil
	case op >= 0x40 && op <= 0x7F:
		dst := (op >> 3) & 0x7
		src := op & 0x7
		v := c.readReg(src)
		c.writeReg(dst, v)
		if dst == 6 || src == 6 {
			return 7, nil
		}
		return 5, nil
	case op >= 0x80 && op <= 0xBF:
		idx := op & 0x7
		v := c.readReg(idx)
		cyc := 4
		if idx == 6 {
			cyc = 7
		}
		switch (op >> 3) & 0x7 {
		case 0:
			c.A = c.addition(v, 0)
		case 1:
			c.A = c.addition(v, boolToUint8(c.flagSet(FlagC)))
		case 2:
			c.A = c.subtraction(v, 0)
		case 3:
			c.A = c.subtraction(v, boolToUint8(c.flagSet(FlagC)))
		case 4:
			c.A = c.andOp(v)
		case 5:
			c.A = c.xorOp(v)
		case 6:
			c.A = c.orOp(v)
		case 7:
			c.subtraction(v, 0)
		}
		return cyc, nil
	}

	switch op {
	case 0x00, 0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38:
		return 4, nil // NOP and its undocumented duplicates

	case 0x01:
		c.SetBC(c.fetchWord())
		return 10, nil
	case 0x11:
		c.SetDE(c.fetchWord())
		return 10, nil
	case 0x21:
		c.SetHL(c.fetchWord())
		return 10, nil
	case 0x31:
		c.SP = c.fetchWord()
		return 10, nil

	case 0x02:
		c.mem.Write(c.BC(), c.A)
		return 7, nil
	case 0x12:
		c.mem.Write(c.DE(), c.A)
		return 7, nil
	case 0x0A:
		c.A = c.mem.Read(c.BC())
		return 7, nil
	case 0x1A:
		c.A = c.mem.Read(c.DE())
		return 7, nil

	case 0x03:
		c.SetBC(c.BC() + 1)
		return 5, nil
	case 0x13:
		c.SetDE(c.DE() + 1)
		return 5, nil
	case 0x23:
		c.SetHL(c.HL() + 1)
		return 5, nil
	case 0x33:
		c.SP++
		return 5, nil
	case 0x0B:
		c.SetBC(c.BC() - 1)
		return 5, nil
	case 0x1B:
		c.SetDE(c.DE() - 1)
		return 5, nil
	case 0x2B:
		c.SetHL(c.HL() - 1)
		return 5, nil
	case 0x3B:
		c.SP--
		return 5, nil

	case 0x09:
		c.dad(c.BC())
		return 10, nil
	case 0x19:
		c.dad(c.DE())
		return 10, nil
	case 0x29:
		c.dad(c.HL())
		return 10, nil
	case 0x39:
		c.dad(c.SP)
		return 10, nil

	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C:
		idx := (op >> 3) & 0x7
		c.writeReg(idx, c.inr(c.readReg(idx)))
		if idx == 6 {
			return 10, nil
		}
		return 5, nil
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D:
		idx := (op >> 3) & 0x7
		c.writeReg(idx, c.dcr(c.readReg(idx)))
		if idx == 6 {
			return 10, nil
		}
		return 5, nil

	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E:
		idx := (op >> 3) & 0x7
		c.writeReg(idx, c.fetchByte())
		if idx == 6 {
			return 10, nil
		}
		return 7, nil

	case 0x07:
		c.rlc()
		return 4, nil
	case 0x0F:
		c.rrc()
		return 4, nil
	case 0x17:
		c.ral()
		return 4, nil
	case 0x1F:
		c.rar()
		return 4, nil

	case 0x22:
		addr := c.fetchWord()
		c.mem.WriteWord(addr, c.HL())
		return 16, nil
	case 0x2A:
		addr := c.fetchWord()
		c.SetHL(c.mem.ReadWord(addr))
		return 16, nil
	case 0x32:
		addr := c.fetchWord()
		c.mem.Write(addr, c.A)
		return 13, nil
	case 0x3A:
		addr := c.fetchWord()
		c.A = c.mem.Read(addr)
		return 13, nil

	case 0x27:
		c.daa()
		return 4, nil
	case 0x2F:
		c.A = ^c.A
		return 4, nil
	case 0x37:
		c.setFlag(FlagC, true)
		return 4, nil
	case 0x3F:
		c.setFlag(FlagC, !c.flagSet(FlagC))
		return 4, nil

	case 0xC6:
		c.A = c.addition(c.fetchByte(), 0)
		return 7, nil
	case 0xCE:
		c.A = c.addition(c.fetchByte(), boolToUint8(c.flagSet(FlagC)))
		return 7, nil
	case 0xD6:
		c.A = c.subtraction(c.fetchByte(), 0)
		return 7, nil
	case 0xDE:
		c.A = c.subtraction(c.fetchByte(), boolToUint8(c.flagSet(FlagC)))
		return 7, nil
	case 0xE6:
		c.A = c.andOp(c.fetchByte())
		return 7, nil
	case 0xEE:
		c.A = c.xorOp(c.fetchByte())
		return 7, nil
	case 0xF6:
		c.A = c.orOp(c.fetchByte())
		return 7, nil
	case 0xFE:
		c.subtraction(c.fetchByte(), 0)
		return 7, nil

	case 0xC1:
		c.SetBC(c.pop())
		return 10, nil
	case 0xD1:
		c.SetDE(c.pop())
		return 10, nil
	case 0xE1:
		c.SetHL(c.pop())
		return 10, nil
	case 0xF1:
		c.SetPSW(c.pop())
		return 10, nil
	case 0xC5:
		c.push(c.BC())
		return 11, nil
	case 0xD5:
		c.push(c.DE())
		return 11, nil
	case 0xE5:
		c.push(c.HL())
		return 11, nil
	case 0xF5:
		c.push(c.PSW())
		return 11, nil

	case 0xC3, 0xCB:
		addr := c.fetchWord()
		if addr == 0x0000 {
			c.halted = true
			return 10, nil
		}
		c.PC = addr
		return 10, nil

	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA:
		addr := c.fetchWord()
		if c.condition((op >> 3) & 0x7) {
			c.PC = addr
		}
		return 10, nil

	case 0xCD, 0xDD, 0xED, 0xFD:
		addr := c.fetchWord()
		if addr == 0x0005 && c.bdos != nil {
			err := c.bdos.Call(c)
			return 17, err
		}
		c.push(c.PC)
		c.PC = addr
		return 17, nil

	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC:
		addr := c.fetchWord()
		if c.condition((op >> 3) & 0x7) {
			c.push(c.PC)
			c.PC = addr
			return 17, nil
		}
		return 11, nil

	case 0xC9, 0xD9:
		c.PC = c.pop()
		return 10, nil

	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8:
		if c.condition((op >> 3) & 0x7) {
			c.PC = c.pop()
			return 11, nil
		}
		return 5, nil

	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF:
		n := (op >> 3) & 0x7
		c.push(c.PC)
		c.PC = uint16(n) * 8
		return 11, nil

	case 0xE9:
		c.PC = c.HL()
		return 5, nil
	case 0xF9:
		c.SP = c.HL()
		return 5, nil
	case 0xE3:
		lo := c.mem.Read(c.SP)
		hi := c.mem.Read(c.SP + 1)
		c.mem.Write(c.SP, c.L)
		c.mem.Write(c.SP+1, c.H)
		c.L, c.H = lo, hi
		return 18, nil
	case 0xEB:
		c.H, c.D = c.D, c.H
		c.L, c.E = c.E, c.L
		return 4, nil

	case 0xD3:
		c.ports.Write(c.fetchByte(), c.A)
		return 10, nil
	case 0xDB:
		c.A = c.ports.Read(c.fetchByte())
		return 10, nil

	case 0xF3:
		c.InterruptsEnabled = false
		return 4, nil
	case 0xFB:
		c.InterruptsEnabled = true
		return 4, nil

	default:
		text, _ := disasm.Step(opPC, c.mem)
		c.logger.Warn("unknown opcode", "pc", fmt.Sprintf("%#04x", opPC), "opcode", fmt.Sprintf("%#02x", op), "disasm", text)
		return 4, nil
	}
}
