package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/quaylabs/mooring"
)

// MemoryView exposes a store's linear memory behind bounds-checked
// accessors. A view over a store without memory is valid and reports every
// access as out of bounds.
type MemoryView struct {
	mem api.Memory
}

// WrapMemory returns a view over mem. A nil mem yields a view that reports
// every access as out of bounds.
func WrapMemory(mem api.Memory) *MemoryView {
	return &MemoryView{mem: mem}
}

func (m *MemoryView) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *MemoryView) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *MemoryView) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *MemoryView) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *MemoryView) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, fmt.Errorf("read out of bounds")
	}
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *MemoryView) ReadU64(offset uint32) (uint64, error) {
	if m.mem == nil {
		return 0, fmt.Errorf("read out of bounds")
	}
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *MemoryView) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *MemoryView) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *MemoryView) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *MemoryView) WriteU64(offset uint32, value uint64) error {
	if m.mem == nil || !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

// Size returns the current memory size in bytes, 0 when there is none.
func (m *MemoryView) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var _ mooring.Memory = (*MemoryView)(nil)
var _ mooring.MemorySizer = (*MemoryView)(nil)
