package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteWord(t *testing.T) {
	r := NewRAM()
	r.WriteWord(0x2000, 0xBEEF)
	assert.Equal(t, uint8(0xEF), r.Read(0x2000))
	assert.Equal(t, uint8(0xBE), r.Read(0x2001))
	assert.Equal(t, uint16(0xBEEF), r.ReadWord(0x2000))
}

func TestLoadAt(t *testing.T) {
	r := NewRAM()
	img := []byte{0xC3, 0x00, 0x01}
	r.LoadAt(0x0100, img)
	for i, b := range img {
		assert.Equal(t, b, r.Read(0x0100+uint16(i)))
	}
}

func TestPowerOnZeroesRAM(t *testing.T) {
	r := NewRAM()
	r.Write(0x1234, 0xFF)
	r.PowerOn()
	assert.Equal(t, uint8(0), r.Read(0x1234))
}

func TestPorts(t *testing.T) {
	p := &Ports{}
	assert.Equal(t, uint8(0), p.Read(5))
	p.Write(5, 0x42)
	assert.Equal(t, uint8(0x42), p.Read(5))
	p.PowerOn()
	assert.Equal(t, uint8(0), p.Read(5))
}
