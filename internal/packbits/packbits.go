// Package packbits decodes PSD's per-channel compressed image planes.
//
// Each plane begins with a 2-byte compression-mode prefix: 0 for raw bytes,
// 1 for PackBits-encoded rows (Apple's RLE scheme, control bytes
// interpreted as signed 8-bit). Two decoders are provided: Append grows a
// destination slice (used for planar K and mask channels), and Strided
// writes into a fixed destination at a given byte stride (used to
// interleave RGBA channels that are stored planar in the file).
package packbits

import (
	"errors"
	"fmt"

	"github.com/deepteams/psd/internal/cursor"
)

// ErrUnsupportedMode is returned when the compression-mode prefix is
// neither 0 (raw) nor 1 (PackBits).
var ErrUnsupportedMode = errors.New("packbits: unsupported compression mode")

// ErrDesync is returned by Strided when the number of encoded bytes
// consumed does not match the declared channel length.
var ErrDesync = errors.New("packbits: desynchronized after strided decode")

// Append decodes a compressed plane from c, appending the decompressed
// bytes to dst and returning the extended slice. size is the declared
// length of the plane, including the 2-byte mode prefix. h is the number
// of rows (only consulted in PackBits mode, where the encoding stores one
// row-length prefix per row).
func Append(c *cursor.Cursor, dst []byte, size uint32, h uint32) ([]byte, error) {
	mode, err := c.ReadU16()
	if err != nil {
		return dst, err
	}
	switch mode {
	case 0:
		raw, err := c.ReadBytes(int(size) - 2)
		if err != nil {
			return dst, err
		}
		return append(dst, raw...), nil
	case 1:
		rowLens := make([]uint16, h)
		for i := range rowLens {
			rowLens[i], err = c.ReadU16()
			if err != nil {
				return dst, err
			}
		}
		base := c.Pos()
		rows := c.TakeRest()
		for _, rowLen := range rowLens {
			row, err := rows.Take(int(rowLen))
			if err != nil {
				return dst, err
			}
			dst, err = decodeRowAppend(row, dst)
			if err != nil {
				return dst, err
			}
		}
		c.SetPos(base + rows.Pos())
		return dst, nil
	default:
		return dst, fmt.Errorf("%w: %d", ErrUnsupportedMode, mode)
	}
}

// decodeRowAppend decodes a single PackBits-encoded row, appending literal
// output bytes to dst.
func decodeRowAppend(row *cursor.Cursor, dst []byte) ([]byte, error) {
	for row.Remaining() > 0 {
		ctrl, err := row.ReadByte()
		if err != nil {
			return dst, err
		}
		n := int8(ctrl)
		switch {
		case n >= 0:
			lit, err := row.ReadBytes(int(n) + 1)
			if err != nil {
				return dst, err
			}
			dst = append(dst, lit...)
		case n == -128:
			// no-op
		default:
			b, err := row.ReadByte()
			if err != nil {
				return dst, err
			}
			for i := 0; i < 1-int(n); i++ {
				dst = append(dst, b)
			}
		}
	}
	return dst, nil
}

// Strided decodes a compressed plane from c, writing decompressed bytes
// into dst at the given byte stride (dst[0], dst[stride], dst[2*stride],
// ...). Writes whose target index falls outside dst are silently dropped
// so that a channel whose declared length disagrees with the layer's
// declared geometry does not abort the decode; decoder progress through
// the encoded stream continues regardless. size is the declared plane
// length including the 2-byte mode prefix; h is the row count.
//
// After a PackBits-mode decode, the total number of encoded bytes consumed
// must equal size, or ErrDesync is returned.
func Strided(c *cursor.Cursor, dst []byte, stride int, size uint32, h uint32) error {
	start := c.Pos()
	mode, err := c.ReadU16()
	if err != nil {
		return err
	}
	switch mode {
	case 0:
		n := int(size) - 2
		for i := 0; i < n; i++ {
			b, err := c.ReadByte()
			if err != nil {
				return err
			}
			if i*stride < len(dst) {
				dst[i*stride] = b
			}
		}
		return nil
	case 1:
		rowLens := make([]uint16, h)
		for i := range rowLens {
			rowLens[i], err = c.ReadU16()
			if err != nil {
				return err
			}
		}
		base := c.Pos()
		rows := c.TakeRest()
		i := 0
		for _, rowLen := range rowLens {
			row, err := rows.Take(int(rowLen))
			if err != nil {
				return err
			}
			i, err = decodeRowStrided(row, dst, stride, i)
			if err != nil {
				return err
			}
		}
		c.SetPos(base + rows.Pos())
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedMode, mode)
	}
	if consumed := uint32(c.Pos() - start); consumed != size {
		return fmt.Errorf("%w: consumed %d bytes, declared size %d", ErrDesync, consumed, size)
	}
	return nil
}

// decodeRowStrided decodes a single PackBits row, writing literal bytes
// into dst at position i*stride (dropping any write past the end of dst)
// and returning the updated pixel index.
func decodeRowStrided(row *cursor.Cursor, dst []byte, stride int, i int) (int, error) {
	for row.Remaining() > 0 {
		ctrl, err := row.ReadByte()
		if err != nil {
			return i, err
		}
		n := int8(ctrl)
		switch {
		case n >= 0:
			for k := 0; k < int(n)+1; k++ {
				b, err := row.ReadByte()
				if err != nil {
					return i, err
				}
				if i*stride < len(dst) {
					dst[i*stride] = b
				}
				i++
			}
		case n == -128:
			// no-op
		default:
			b, err := row.ReadByte()
			if err != nil {
				return i, err
			}
			for k := 0; k < 1-int(n); k++ {
				if i*stride < len(dst) {
					dst[i*stride] = b
				}
				i++
			}
		}
	}
	return i, nil
}
