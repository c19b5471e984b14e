// Package layer implements the PSD header reader and the layer-stack
// walker: the two components that, per spec, make up the bulk of this
// decoder. Both are adapted from the sibling webp module's
// internal/container package — ParseRIFFHeader's "validate magic, read
// fixed fields" shape becomes ParseHeader below, and Parser.parse's
// length-prefixed section walk becomes the layer walker in layer.go.
package layer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/deepteams/psd/internal/cursor"
)

// Signature and section markers.
var (
	magic8BPS = []byte{0x38, 0x42, 0x50, 0x53} // "8BPS"
	magic8BIM = []byte{0x38, 0x42, 0x49, 0x4D} // "8BIM"
)

// Errors returned while reading the file header.
var (
	ErrInvalidSignature   = errors.New("psd: invalid PSD signature")
	ErrUnsupportedVersion = errors.New("psd: unsupported PSD version")
	ErrUnsupportedDepth   = errors.New("psd: unsupported bit depth")
	ErrUnsupportedMode    = errors.New("psd: unsupported color mode")
)

// HeaderSize is the fixed size, in bytes, of the PSD file header.
const HeaderSize = 26

// Color mode codes accepted by ParseHeader.
const (
	ColorModeGrayscale = 1
	ColorModeRGB       = 3
	ColorModeCMYK      = 4
)

// Header is the immutable 26-byte PSD file header.
type Header struct {
	Width       uint32
	Height      uint32
	ChannelCount uint16
	Depth       uint16
	ColorMode   uint16
}

// ParseHeader reads and validates the first 26 bytes of a PSD file: magic,
// version, channel count, dimensions, depth, and color mode. Only 8-bit
// depth and grayscale/RGB/CMYK color modes are accepted; PSB (version 2)
// is rejected.
func ParseHeader(data []byte) (Header, error) {
	c := cursor.New(data)

	sig, err := c.ReadBytes(4)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !bytes.Equal(sig, magic8BPS) {
		return Header{}, ErrInvalidSignature
	}

	version, err := c.ReadU16()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading version: %w", err)
	}
	if version != 1 {
		return Header{}, ErrUnsupportedVersion
	}

	if err := c.Skip(6); err != nil {
		return Header{}, fmt.Errorf("psd: skipping reserved bytes: %w", err)
	}

	channelCount, err := c.ReadU16()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading channel count: %w", err)
	}
	height, err := c.ReadU32()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading height: %w", err)
	}
	width, err := c.ReadU32()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading width: %w", err)
	}
	depth, err := c.ReadU16()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading depth: %w", err)
	}
	colorMode, err := c.ReadU16()
	if err != nil {
		return Header{}, fmt.Errorf("psd: reading color mode: %w", err)
	}

	if depth != 8 {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedDepth, depth)
	}
	switch colorMode {
	case ColorModeGrayscale, ColorModeRGB, ColorModeCMYK:
	default:
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedMode, colorMode)
	}

	return Header{
		Width:        width,
		Height:       height,
		ChannelCount: channelCount,
		Depth:        depth,
		ColorMode:    colorMode,
	}, nil
}
