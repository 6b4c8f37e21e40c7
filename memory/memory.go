// Package memory defines the 8080's address space: a flat 64KiB RAM plus
// a separate 256-entry I/O port array. Since opcode semantics need to be
// unit tested against fixtures that aren't a full 64KiB image, RAM access
// is defined as an interface rather than a concrete array type.
package memory

// Memory is the interface the cpu package depends on for all 8-bit and
// 16-bit guest-memory access. A concrete 64KiB image is provided by RAM,
// but tests may supply smaller fakes.
type Memory interface {
	// Read returns the byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with val.
	Write(addr uint16, val uint8)
	// ReadWord returns the little-endian 16-bit value at addr (low byte
	// at addr, high byte at addr+1).
	ReadWord(addr uint16) uint16
	// WriteWord stores val as a little-endian 16-bit value at addr.
	WriteWord(addr uint16, val uint16)
	// PowerOn resets the backing store to its initial state.
	PowerOn()
}

// RAM implements Memory as a flat, contiguous 65536-byte array. There is
// no write protection and no bank switching; self-modifying code is legal.
type RAM struct {
	bytes [65536]uint8
}

// NewRAM returns a zeroed 64KiB RAM image.
func NewRAM() *RAM {
	r := &RAM{}
	r.PowerOn()
	return r
}

// Read implements Memory.
func (r *RAM) Read(addr uint16) uint8 {
	return r.bytes[addr]
}

// Write implements Memory.
func (r *RAM) Write(addr uint16, val uint8) {
	r.bytes[addr] = val
}

// ReadWord implements Memory.
func (r *RAM) ReadWord(addr uint16) uint16 {
	lo := uint16(r.bytes[addr])
	hi := uint16(r.bytes[addr+1])
	return (hi << 8) | lo
}

// WriteWord implements Memory.
func (r *RAM) WriteWord(addr uint16, val uint16) {
	r.bytes[addr] = uint8(val & 0xFF)
	r.bytes[addr+1] = uint8(val >> 8)
}

// PowerOn zeroes the entire address space. Unlike the teacher's 6502 RAM
// (whose PowerOn randomizes contents to catch uninitialized-memory bugs in
// NMOS test ROMs), CP/M binaries assume a predictable, zeroed low-memory
// area below the trampoline the runner plants, so zeroing is the correct
// starting state here rather than randomization.
func (r *RAM) PowerOn() {
	for i := range r.bytes {
		r.bytes[i] = 0
	}
}

// LoadAt copies img into RAM starting at addr, verbatim with no relocation.
func (r *RAM) LoadAt(addr uint16, img []byte) {
	for i, b := range img {
		r.bytes[int(addr)+i] = b
	}
}

// Ports is the 256-entry I/O port space. Reads return the last-written
// value (or zero); no side effects are modelled, per spec.
type Ports struct {
	bytes [256]uint8
}

// Read returns the last value written to port, or 0 if never written.
func (p *Ports) Read(port uint8) uint8 {
	return p.bytes[port]
}

// Write stores val as the current value of port.
func (p *Ports) Write(port uint8, val uint8) {
	p.bytes[port] = val
}

// PowerOn zeroes the port array.
func (p *Ports) PowerOn() {
	for i := range p.bytes {
		p.bytes[i] = 0
	}
}
