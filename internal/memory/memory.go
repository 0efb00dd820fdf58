// Package memory provides a simple big-endian guest address space made of
// mapped regions. It is the memory-write capability used by the CLI and by
// tests; real hosts supply their own.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papapumpkin/titlepatch/internal/patch"
)

var (
	// ErrAddressNotMapped is returned when an access falls outside every mapped region.
	ErrAddressNotMapped = errors.New("address not mapped")
	// ErrRegionOverlap is returned when a new region intersects an existing one.
	ErrRegionOverlap = errors.New("region overlaps an existing mapping")
)

type region struct {
	base uint32
	data []byte
}

func (r region) end() uint64 { return uint64(r.base) + uint64(len(r.data)) }

// Memory is a sparse guest address space. Accesses must fall entirely
// within one region. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	regions []region // sorted by base
}

// New returns an empty address space.
func New() *Memory {
	return &Memory{}
}

// Map exposes data at base. The slice is used directly, so writes through
// Memory are visible to the caller.
func (m *Memory) Map(base uint32, data []byte) error {
	r := region{base: base, data: data}
	if r.end() > 1<<32 {
		return fmt.Errorf("memory: region %#x+%#x wraps the address space", base, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regions {
		if uint64(r.base) < existing.end() && uint64(existing.base) < r.end() {
			return fmt.Errorf("memory: map %#x: %w", base, ErrRegionOverlap)
		}
	}
	m.regions = append(m.regions, r)
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].base < m.regions[j].base })
	return nil
}

// slice returns the backing bytes for [addr, addr+n). Caller holds mu.
func (m *Memory) slice(addr uint32, n int) ([]byte, error) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].base > addr }) - 1
	if i < 0 {
		return nil, fmt.Errorf("memory: %#x: %w", addr, ErrAddressNotMapped)
	}
	r := m.regions[i]
	if uint64(addr)+uint64(n) > r.end() {
		return nil, fmt.Errorf("memory: %#x+%d: %w", addr, n, ErrAddressNotMapped)
	}
	off := addr - r.base
	return r.data[off : off+uint32(n)], nil
}

// Write stores the low w bytes of value at addr in big-endian order.
func (m *Memory) Write(addr uint32, w patch.Width, value uint64) error {
	if !w.Valid() {
		return fmt.Errorf("memory: %w", patch.ErrUnrecognizedWidth)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.slice(addr, w.Bytes())
	if err != nil {
		return err
	}
	switch w {
	case patch.Byte:
		b[0] = byte(value)
	case patch.Half:
		binary.BigEndian.PutUint16(b, uint16(value))
	case patch.Word:
		binary.BigEndian.PutUint32(b, uint32(value))
	case patch.DWord:
		binary.BigEndian.PutUint64(b, value)
	}
	return nil
}

// Read loads w bytes at addr as a big-endian value.
func (m *Memory) Read(addr uint32, w patch.Width) (uint64, error) {
	if !w.Valid() {
		return 0, fmt.Errorf("memory: %w", patch.ErrUnrecognizedWidth)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, err := m.slice(addr, w.Bytes())
	if err != nil {
		return 0, err
	}
	switch w {
	case patch.Byte:
		return uint64(b[0]), nil
	case patch.Half:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case patch.Word:
		return uint64(binary.BigEndian.Uint32(b)), nil
	default:
		return binary.BigEndian.Uint64(b), nil
	}
}
