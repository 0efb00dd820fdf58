// Package patch defines the per-title memory patch records and the loader
// that builds them from a decoded TOML document.
package patch

import "fmt"

// Edit is a single memory write: value is written as width bytes starting
// at address. Edits are immutable once constructed.
type Edit struct {
	width   Width
	address uint32
	value   uint64
}

// NewEdit constructs an Edit, rejecting values that need more than w bytes.
func NewEdit(w Width, address uint32, value uint64) (Edit, error) {
	if !w.Valid() {
		return Edit{}, fmt.Errorf("%w: %d bytes", ErrUnrecognizedWidth, uint8(w))
	}
	if value > w.Max() {
		return Edit{}, fmt.Errorf("%w: %#x does not fit in %d byte(s)", ErrValueOutOfRange, value, w.Bytes())
	}
	return Edit{width: w, address: address, value: value}, nil
}

// Width returns the number of bytes the edit writes.
func (e Edit) Width() Width { return e.width }

// Address returns the guest address of the first written byte.
func (e Edit) Address() uint32 { return e.address }

// Value returns the raw bit pattern; only the low Width bytes are set.
func (e Edit) Value() uint64 { return e.value }

func (e Edit) String() string {
	return fmt.Sprintf("%s 0x%08x = 0x%0*x", e.width, e.address, 2*e.width.Bytes(), e.value)
}

// Digest is reserved for a content digest of the patched code. It is never
// computed or verified.
type Digest uint64

// Definition is a named, independently toggleable group of edits.
type Definition struct {
	ID          uint32
	Digest      *Digest // always nil; reserved
	Name        string
	Description string
	Author      string
	Edits       []Edit // applied in declaration order
	Enabled     bool
}

// File holds every patch declared for one title.
type File struct {
	TitleID     uint32
	TitleName   string
	Source      string // where the file was loaded from
	Definitions []*Definition
}

// Definition returns the first definition with the given id, or nil.
func (f *File) Definition(id uint32) *Definition {
	for _, d := range f.Definitions {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// EnabledCount returns how many definitions are currently enabled.
func (f *File) EnabledCount() int {
	n := 0
	for _, d := range f.Definitions {
		if d.Enabled {
			n++
		}
	}
	return n
}
