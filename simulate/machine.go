// Package simulate replays the stage decoders on a flat 64K memory image
// so that every encoding can be checked against the bytes it must produce.
package simulate

// Machine is the register file and memory the decoder loops run against.
// Registers follow the 16-bit names used by the decoder listings.
type Machine struct {
	SI, DI, BX, BP uint16
	AH             byte
	Memory         [65536]byte
	Steps          int
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) Read(addr uint16) byte { return m.Memory[addr] }

func (m *Machine) Write(addr uint16, val byte) { m.Memory[addr] = val }

func (m *Machine) Read16(addr uint16) uint16 {
	return uint16(m.Memory[addr]) | uint16(m.Memory[addr+1])<<8
}

func (m *Machine) Write16(addr uint16, val uint16) {
	m.Memory[addr] = byte(val)
	m.Memory[addr+1] = byte(val >> 8)
}

// Xor16 is `xorw reg, mem` and returns the new memory word.
func (m *Machine) Xor16(addr uint16, val uint16) uint16 {
	w := m.Read16(addr) ^ val
	m.Write16(addr, w)
	return w
}

// Imul16 is the three operand `imul $imm, mem, reg`.
func (m *Machine) Imul16(imm uint16, addr uint16) uint16 {
	return imm * m.Read16(addr)
}

// Load copies data to addr and returns the address just past it.
func (m *Machine) Load(addr uint16, data ...byte) uint16 {
	for _, b := range data {
		m.Memory[addr] = b
		addr++
	}
	return addr
}

// Dump returns n bytes starting at addr.
func (m *Machine) Dump(addr uint16, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.Memory[addr+uint16(i)]
	}
	return out
}
