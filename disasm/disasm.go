// Package disasm renders one 8080 instruction as text. It is a diagnostic
// aid only: the unknown-opcode log line in cpu uses it, nothing in the
// execution path depends on its output.
package disasm

import (
	"fmt"

	"github.com/go8080/cpm/memory"
)

var regNames = [8]string{"B", "C", "D", "E", "H", "L", "M", "A"}
var rpNames = [4]string{"B", "D", "H", "SP"}
var rpPushNames = [4]string{"B", "D", "H", "PSW"}
var ccNames = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}

// Step decodes the instruction at pc and returns its mnemonic text plus its
// length in bytes (1, 2 or 3), without touching mem or advancing any state.
func Step(pc uint16, mem memory.Memory) (string, int) {
	op := mem.Read(pc)

	switch {
	case op == 0x76:
		return "HLT", 1
	case op >= 0x40 && op <= 0x7F:
		dst := (op >> 3) & 0x07
		src := op & 0x07
		return fmt.Sprintf("MOV %s,%s", regNames[dst], regNames[src]), 1
	case op >= 0x80 && op <= 0xBF:
		src := regNames[op&0x07]
		switch (op >> 3) & 0x07 {
		case 0:
			return "ADD " + src, 1
		case 1:
			return "ADC " + src, 1
		case 2:
			return "SUB " + src, 1
		case 3:
			return "SBB " + src, 1
		case 4:
			return "ANA " + src, 1
		case 5:
			return "XRA " + src, 1
		case 6:
			return "ORA " + src, 1
		default:
			return "CMP " + src, 1
		}
	}

	switch op {
	case 0x00, 0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38:
		return "NOP", 1
	case 0x01, 0x11, 0x21, 0x31:
		rp := rpNames[(op>>4)&0x03]
		return fmt.Sprintf("LXI %s,%04X", rp, mem.ReadWord(pc+1)), 3
	case 0x02, 0x12:
		return fmt.Sprintf("STAX %s", rpNames[(op>>4)&0x03]), 1
	case 0x0A, 0x1A:
		return fmt.Sprintf("LDAX %s", rpNames[(op>>4)&0x03]), 1
	case 0x03, 0x13, 0x23, 0x33:
		return "INX " + rpNames[(op>>4)&0x03], 1
	case 0x0B, 0x1B, 0x2B, 0x3B:
		return "DCX " + rpNames[(op>>4)&0x03], 1
	case 0x09, 0x19, 0x29, 0x39:
		return "DAD " + rpNames[(op>>4)&0x03], 1
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C:
		return "INR " + regNames[(op>>3)&0x07], 1
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D:
		return "DCR " + regNames[(op>>3)&0x07], 1
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E:
		return fmt.Sprintf("MVI %s,%02X", regNames[(op>>3)&0x07], mem.Read(pc+1)), 2
	case 0x07:
		return "RLC", 1
	case 0x0F:
		return "RRC", 1
	case 0x17:
		return "RAL", 1
	case 0x1F:
		return "RAR", 1
	case 0x22:
		return fmt.Sprintf("SHLD %04X", mem.ReadWord(pc+1)), 3
	case 0x2A:
		return fmt.Sprintf("LHLD %04X", mem.ReadWord(pc+1)), 3
	case 0x32:
		return fmt.Sprintf("STA %04X", mem.ReadWord(pc+1)), 3
	case 0x3A:
		return fmt.Sprintf("LDA %04X", mem.ReadWord(pc+1)), 3
	case 0x27:
		return "DAA", 1
	case 0x2F:
		return "CMA", 1
	case 0x37:
		return "STC", 1
	case 0x3F:
		return "CMC", 1
	case 0xC6:
		return fmt.Sprintf("ADI %02X", mem.Read(pc+1)), 2
	case 0xCE:
		return fmt.Sprintf("ACI %02X", mem.Read(pc+1)), 2
	case 0xD6:
		return fmt.Sprintf("SUI %02X", mem.Read(pc+1)), 2
	case 0xDE:
		return fmt.Sprintf("SBI %02X", mem.Read(pc+1)), 2
	case 0xE6:
		return fmt.Sprintf("ANI %02X", mem.Read(pc+1)), 2
	case 0xEE:
		return fmt.Sprintf("XRI %02X", mem.Read(pc+1)), 2
	case 0xF6:
		return fmt.Sprintf("ORI %02X", mem.Read(pc+1)), 2
	case 0xFE:
		return fmt.Sprintf("CPI %02X", mem.Read(pc+1)), 2
	case 0xC1, 0xD1, 0xE1, 0xF1:
		return "POP " + rpPushNames[(op>>4)&0x03], 1
	case 0xC5, 0xD5, 0xE5, 0xF5:
		return "PUSH " + rpPushNames[(op>>4)&0x03], 1
	case 0xC3, 0xCB:
		return fmt.Sprintf("JMP %04X", mem.ReadWord(pc+1)), 3
	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA:
		return fmt.Sprintf("J%s %04X", ccNames[(op>>3)&0x07], mem.ReadWord(pc+1)), 3
	case 0xCD, 0xDD, 0xED, 0xFD:
		return fmt.Sprintf("CALL %04X", mem.ReadWord(pc+1)), 3
	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC:
		return fmt.Sprintf("C%s %04X", ccNames[(op>>3)&0x07], mem.ReadWord(pc+1)), 3
	case 0xC9, 0xD9:
		return "RET", 1
	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8:
		return "R" + ccNames[(op>>3)&0x07], 1
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF:
		return fmt.Sprintf("RST %d", (op>>3)&0x07), 1
	case 0xE9:
		return "PCHL", 1
	case 0xF9:
		return "SPHL", 1
	case 0xE3:
		return "XTHL", 1
	case 0xEB:
		return "XCHG", 1
	case 0xD3:
		return fmt.Sprintf("OUT %02X", mem.Read(pc+1)), 2
	case 0xDB:
		return fmt.Sprintf("IN %02X", mem.Read(pc+1)), 2
	case 0xF3:
		return "DI", 1
	case 0xFB:
		return "EI", 1
	default:
		return fmt.Sprintf("DB %02X", op), 1
	}
}
