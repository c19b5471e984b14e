package layer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/deepteams/psd/internal/cursor"
	"github.com/deepteams/psd/internal/descriptor"
	"github.com/deepteams/psd/internal/packbits"
)

// ErrDesync is returned when the cursor's position at the end of a sized
// region does not match that region's declared end offset.
var ErrDesync = fmt.Errorf("psd: desynchronized while reading layer record")

// MaskInfo describes the geometry and flags of one mask channel.
type MaskInfo struct {
	X, Y         int32
	W, H         uint32
	DefaultColor uint8
	Relative     bool
	Disabled     bool
	Inverted     bool
}

// LayerInfo is one row of the PSD layer stack, in bottom-to-top storage
// order.
type LayerInfo struct {
	Name        string
	Opacity     float64
	FillOpacity float64
	BlendMode   string

	X, Y int32
	W, H uint32

	ChannelCount uint16
	ImageData    []byte // w*h*4, RGBA-interleaved
	ImageDataK   []byte // w*h, planar (CMYK only)
	HasG, HasB, HasA bool

	MaskChannelCount uint16
	Mask             MaskInfo
	ImageDataMask    []byte // mask.W*mask.H, planar

	GroupOpener   bool
	GroupCloser   bool
	GroupExpanded bool

	FunnyFlag     bool
	IsClipped     bool
	IsAlphaLocked bool
	IsVisible     bool

	AdjustmentType string
	AdjustmentInfo []float64
	AdjustmentDesc *descriptor.Descriptor
	EffectsDesc    *descriptor.Descriptor
}

// channelEntry is one row of a layer's channel table.
type channelEntry struct {
	ID     int16
	Length uint32
}

// ParseLayers decodes the layer stack of a PSD file. On success it returns
// the full bottom-to-top list of layers and a nil error. On failure it
// returns the layers successfully decoded before the failing layer,
// together with a diagnostic error; the partial list is for debugging only.
func ParseLayers(data []byte) ([]LayerInfo, error) {
	if _, err := ParseHeader(data); err != nil {
		return nil, err
	}

	c := cursor.New(data)
	if err := c.Skip(HeaderSize); err != nil {
		return nil, err
	}

	colorModeLen, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("psd: reading color mode data length: %w", err)
	}
	if err := c.Skip(int(colorModeLen)); err != nil {
		return nil, fmt.Errorf("psd: skipping color mode data: %w", err)
	}

	imageResourcesLen, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("psd: reading image resources length: %w", err)
	}
	if err := c.Skip(int(imageResourcesLen)); err != nil {
		return nil, fmt.Errorf("psd: skipping image resources: %w", err)
	}

	if _, err := c.ReadU32(); err != nil { // layer-and-mask-info length (unused)
		return nil, fmt.Errorf("psd: reading layer and mask info length: %w", err)
	}
	if _, err := c.ReadU32(); err != nil { // layer-info length (unused: layers are walked structurally, not by this byte count)
		return nil, fmt.Errorf("psd: reading layer info length: %w", err)
	}

	rawCount, err := c.ReadI16()
	if err != nil {
		return nil, fmt.Errorf("psd: reading layer count: %w", err)
	}
	layerCount := int(rawCount)
	if layerCount < 0 {
		layerCount = -layerCount
	}

	if layerCount == 0 {
		return []LayerInfo{}, nil
	}

	layersStart := c.Pos()

	imageCursor := cursor.New(data)
	imageCursor.SetPos(layersStart)
	if err := preWalkLayerHeaders(imageCursor, layerCount); err != nil {
		return nil, fmt.Errorf("psd: pre-walking layer headers: %w", err)
	}

	c.SetPos(layersStart)

	layers := make([]LayerInfo, 0, layerCount)
	for i := 0; i < layerCount; i++ {
		l, err := readLayer(c, imageCursor)
		if err != nil {
			return layers, fmt.Errorf("psd: layer %d: %w", i, err)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// preWalkLayerHeaders advances c past all N layer record headers (not their
// channel image data) to find the start of the image-data region: for each
// layer, skip the 16-byte rect, read the channel count, skip the channel
// table plus the fixed blend/opacity/clipping/flags/filler fields, then
// skip the extra-data block by its declared length.
func preWalkLayerHeaders(c *cursor.Cursor, layerCount int) error {
	for i := 0; i < layerCount; i++ {
		if err := c.Skip(16); err != nil {
			return err
		}
		channelCount, err := c.ReadU16()
		if err != nil {
			return err
		}
		if err := c.Skip(6*int(channelCount) + 4 + 4 + 4); err != nil {
			return err
		}
		extraLen, err := c.ReadU32()
		if err != nil {
			return err
		}
		if err := c.Skip(int(extraLen)); err != nil {
			return err
		}
	}
	return nil
}

// readLayer decodes one layer record from c (header/geometry/mask/name/
// extra-data) and its channel pixel data from imageCursor.
func readLayer(c, imageCursor *cursor.Cursor) (LayerInfo, error) {
	var l LayerInfo

	top, err := c.ReadI32()
	if err != nil {
		return l, err
	}
	left, err := c.ReadI32()
	if err != nil {
		return l, err
	}
	bottom, err := c.ReadI32()
	if err != nil {
		return l, err
	}
	right, err := c.ReadI32()
	if err != nil {
		return l, err
	}
	l.X, l.Y = left, top
	l.W, l.H = uint32(right-left), uint32(bottom-top)

	channelCount, err := c.ReadU16()
	if err != nil {
		return l, err
	}
	l.ChannelCount = channelCount

	chanTableCursor := c.Clone() // snapshot: independent read position over the same backing bytes

	channels := make([]channelEntry, channelCount)
	for i := range channels {
		id, err := c.ReadI16()
		if err != nil {
			return l, err
		}
		length, err := c.ReadU32()
		if err != nil {
			return l, err
		}
		channels[i] = channelEntry{ID: id, Length: length}
	}

	sig, err := c.ReadBytes(4)
	if err != nil {
		return l, err
	}
	if !bytes.Equal(sig, magic8BIM) {
		return l, fmt.Errorf("psd: expected 8BIM blend-mode signature, got %q", sig)
	}
	blendKey, err := c.ReadBytes(4)
	if err != nil {
		return l, err
	}
	l.BlendMode = string(blendKey)

	opacityByte, err := c.ReadByte()
	if err != nil {
		return l, err
	}
	l.Opacity = float64(opacityByte) / 255.0
	l.FillOpacity = 1.0

	clipping, err := c.ReadByte()
	if err != nil {
		return l, err
	}
	l.IsClipped = clipping != 0

	flags, err := c.ReadByte()
	if err != nil {
		return l, err
	}
	l.IsAlphaLocked = flags&1 != 0
	l.IsVisible = flags&2 == 0

	if err := c.Skip(1); err != nil { // filler byte
		return l, err
	}

	extraLen, err := c.ReadU32()
	if err != nil {
		return l, err
	}
	extraStart := c.Pos()

	maskLen, err := c.ReadU32()
	if err != nil {
		return l, err
	}
	maskStart := c.Pos()
	if maskLen != 0 {
		mtop, err := c.ReadI32()
		if err != nil {
			return l, err
		}
		mleft, err := c.ReadI32()
		if err != nil {
			return l, err
		}
		mbottom, err := c.ReadI32()
		if err != nil {
			return l, err
		}
		mright, err := c.ReadI32()
		if err != nil {
			return l, err
		}
		defaultColor, err := c.ReadByte()
		if err != nil {
			return l, err
		}
		mflags, err := c.ReadByte()
		if err != nil {
			return l, err
		}
		l.Mask = MaskInfo{
			X:            mleft,
			Y:            mtop,
			W:            uint32(mright - mleft),
			H:            uint32(mbottom - mtop),
			DefaultColor: defaultColor,
			Relative:     mflags&1 != 0,
			Disabled:     mflags&2 != 0,
			Inverted:     mflags&4 != 0,
		}
	}
	c.SetPos(maskStart + int64(maskLen))

	blendingLen, err := c.ReadU32()
	if err != nil {
		return l, err
	}
	if err := c.Skip(int(blendingLen)); err != nil {
		return l, err
	}

	name, err := readPascalName(c)
	if err != nil {
		return l, err
	}
	l.Name = name

	if err := decodeChannels(&l, chanTableCursor, channels, imageCursor); err != nil {
		return l, err
	}

	if err := readExtraData(&l, c, extraStart, extraLen); err != nil {
		return l, err
	}

	return l, nil
}

// readPascalName reads a Pascal-style string: a u8 length followed by that
// many bytes, the whole (length byte + bytes) field padded to a multiple
// of 4.
func readPascalName(c *cursor.Cursor) (string, error) {
	n, err := c.ReadByte()
	if err != nil {
		return "", err
	}
	padded := n
	for (int(padded)+1)%4 != 0 {
		padded++
	}
	raw, err := c.ReadBytes(int(padded))
	if err != nil {
		return "", err
	}
	return string(raw[:n]), nil
}

// decodeChannels walks the layer's channel table a second time (via
// chanTableCursor, a snapshot taken before the first walk in readLayer)
// and decodes each channel's pixel data from imageCursor into l.
func decodeChannels(l *LayerInfo, chanTableCursor *cursor.Cursor, channels []channelEntry, imageCursor *cursor.Cursor) error {
	l.ImageData = make([]byte, l.W*l.H*4)
	for i := range l.ImageData {
		l.ImageData[i] = 0xFF
	}

	auxCount := uint16(0)
	for range channels {
		id, err := chanTableCursor.ReadI16()
		if err != nil {
			return fmt.Errorf("psd: re-reading channel table: %w", err)
		}
		length, err := chanTableCursor.ReadU32()
		if err != nil {
			return fmt.Errorf("psd: re-reading channel table: %w", err)
		}

		l.HasG = l.HasG || id == 1
		l.HasB = l.HasB || id == 2
		l.HasA = l.HasA || id == -1

		switch {
		case id >= -1 && id <= 2:
			pos := int(id)
			if id < 0 {
				pos = 3
			}
			if length > 2 {
				if err := packbits.Strided(imageCursor, l.ImageData[pos:], 4, length, l.H); err != nil {
					if errors.Is(err, packbits.ErrDesync) {
						return fmt.Errorf("%w: channel %d: %w", ErrDesync, id, err)
					}
					return fmt.Errorf("psd: decoding channel %d: %w", id, err)
				}
			} else if err := imageCursor.Skip(2); err != nil {
				return err
			}

		case id == 3:
			if length > 2 {
				out, err := packbits.Append(imageCursor, l.ImageDataK, length, l.H)
				if err != nil {
					return fmt.Errorf("psd: decoding K channel: %w", err)
				}
				l.ImageDataK = out
			} else if err := imageCursor.Skip(2); err != nil {
				return err
			}

		default:
			auxCount++
			if auxCount > 1 {
				if err := imageCursor.Skip(int(length)); err != nil {
					return err
				}
			} else if length > 2 {
				out, err := packbits.Append(imageCursor, l.ImageDataMask, length, l.Mask.H)
				if err != nil {
					return fmt.Errorf("psd: decoding mask channel: %w", err)
				}
				l.ImageDataMask = out
			} else if err := imageCursor.Skip(2); err != nil {
				return err
			}
		}
	}
	l.MaskChannelCount = auxCount
	return nil
}
