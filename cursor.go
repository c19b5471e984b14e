package psd

import "github.com/deepteams/psd/internal/cursor"

// Cursor is a bounded byte-buffer reader, exposed publicly only so that
// callers can exercise the PackBits decoders (DecodePackBitsAppend,
// DecodePackBitsStrided) directly in tests; ParseHeader and ParseLayers
// never require callers to construct one.
type Cursor struct {
	c *cursor.Cursor
}

// NewCursor creates a Cursor over buf, positioned at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{c: cursor.New(buf)}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int64 { return c.c.Pos() }

// SetPos sets the current read position.
func (c *Cursor) SetPos(pos int64) { c.c.SetPos(pos) }
