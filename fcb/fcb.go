// Package fcb reads and writes the CP/M File Control Block layout directly
// against guest memory. It knows nothing about open files or host paths
// beyond deriving the dotted filename string; bdos owns everything else.
package fcb

import (
	"strings"

	"github.com/go8080/cpm/memory"
)

// Field offsets relative to an FCB base address.
const (
	OffDrive       = 0
	OffName        = 1
	nameLen        = 8
	OffExt         = 9
	extLen         = 3
	OffCurrentRec  = 32
	OffRandomRec   = 33
	randomRecBytes = 3
)

// HostFilename derives the lowercase "name.ext" (or bare "name") string an
// FCB at addr names, per the documented derivation: read +1..+8 and
// +9..+11, drop trailing spaces, lowercase, join with '.' only if the
// extension has any non-space character.
func HostFilename(mem memory.Memory, addr uint16) string {
	name := readField(mem, addr+OffName, nameLen)
	ext := readField(mem, addr+OffExt, extLen)
	name = strings.ToLower(strings.TrimRight(name, " "))
	ext = strings.ToLower(strings.TrimRight(ext, " "))
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func readField(mem memory.Memory, base uint16, n int) string {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = mem.Read(base + uint16(i))
	}
	return string(b)
}

// SetNameAndExt writes name (up to 8 chars) and ext (up to 3 chars) into
// the FCB at addr, space-padding and upper-casing both fields. Shorter
// inputs are padded; longer inputs are truncated.
func SetNameAndExt(mem memory.Memory, addr uint16, name, ext string) {
	writeField(mem, addr+OffName, nameLen, name)
	writeField(mem, addr+OffExt, extLen, ext)
}

func writeField(mem memory.Memory, base uint16, n int, s string) {
	s = strings.ToUpper(s)
	for i := 0; i < n; i++ {
		var b byte = ' '
		if i < len(s) {
			b = s[i]
		}
		mem.Write(base+uint16(i), b)
	}
}

// RandomRecord reads the 24-bit little-endian random-record field at
// +33..+35.
func RandomRecord(mem memory.Memory, addr uint16) uint32 {
	lo := uint32(mem.Read(addr + OffRandomRec))
	mid := uint32(mem.Read(addr + OffRandomRec + 1))
	hi := uint32(mem.Read(addr + OffRandomRec + 2))
	return lo | mid<<8 | hi<<16
}

// SetRandomRecord writes rec as a 24-bit little-endian value to +33..+35.
func SetRandomRecord(mem memory.Memory, addr uint16, rec uint32) {
	mem.Write(addr+OffRandomRec, uint8(rec))
	mem.Write(addr+OffRandomRec+1, uint8(rec>>8))
	mem.Write(addr+OffRandomRec+2, uint8(rec>>16))
}
