package psd

import (
	"github.com/deepteams/psd/internal/descriptor"
	"github.com/deepteams/psd/internal/layer"
	"github.com/deepteams/psd/internal/packbits"
)

// Header is the 26-byte PSD file header: canvas dimensions, channel count,
// depth, and color mode.
type Header = layer.Header

// Color mode codes accepted by ParseHeader.
const (
	ColorModeGrayscale = layer.ColorModeGrayscale
	ColorModeRGB       = layer.ColorModeRGB
	ColorModeCMYK      = layer.ColorModeCMYK
)

// MaskInfo describes the geometry and flags of one mask channel.
type MaskInfo = layer.MaskInfo

// LayerInfo is one row of the PSD layer stack, in bottom-to-top storage
// order.
type LayerInfo = layer.LayerInfo

// Descriptor is a PSD class descriptor: a class ID plus an ordered list of
// key/value entries.
type Descriptor = descriptor.Descriptor

// DescEntry is one (key, value) pair of a Descriptor, in file order.
type DescEntry = descriptor.Entry

// DescValue is a single typed leaf (or sub-tree) in a descriptor.
type DescValue = descriptor.Value

// DescKind identifies which variant of a DescValue is populated.
type DescKind = descriptor.Kind

// Descriptor value kinds.
const (
	DescKindLong      = descriptor.KindLong
	DescKindDouble    = descriptor.KindDouble
	DescKindBool      = descriptor.KindBool
	DescKindUnitFloat = descriptor.KindUnitFloat
	DescKindText      = descriptor.KindText
	DescKindEnum      = descriptor.KindEnum
	DescKindObject    = descriptor.KindObject
	DescKindList      = descriptor.KindList
	DescKindError     = descriptor.KindError
)

// Errors returned while reading the file header. Matched with errors.Is.
var (
	ErrInvalidSignature   = layer.ErrInvalidSignature
	ErrUnsupportedVersion = layer.ErrUnsupportedVersion
	ErrUnsupportedDepth   = layer.ErrUnsupportedDepth
	ErrUnsupportedMode    = layer.ErrUnsupportedMode
)

// ErrDesync is returned when a sized region (an extra-data block, or a
// strided PackBits plane) is not fully consumed at its declared end.
var ErrDesync = layer.ErrDesync

// ParseHeader reads and validates the first 26 bytes of a PSD file.
func ParseHeader(data []byte) (Header, error) {
	return layer.ParseHeader(data)
}

// ParseLayers decodes the full layer stack of a PSD file, bottom-to-top.
// On failure it returns the layers successfully decoded before the
// failing layer, together with a diagnostic error; the partial list is
// for debugging only.
func ParseLayers(data []byte) ([]LayerInfo, error) {
	return layer.ParseLayers(data)
}

// DecodePackBitsAppend decompresses a PSD channel plane, appending the
// decoded bytes to dst. Exposed for test-harnessing, per spec.
func DecodePackBitsAppend(c *Cursor, dst []byte, size uint32, h uint32) ([]byte, error) {
	return packbits.Append(c.c, dst, size, h)
}

// DecodePackBitsStrided decompresses a PSD channel plane into dst at the
// given byte stride. Exposed for test-harnessing, per spec.
func DecodePackBitsStrided(c *Cursor, dst []byte, stride int, size uint32, h uint32) error {
	return packbits.Strided(c.c, dst, stride, size, h)
}
