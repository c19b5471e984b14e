package layer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/deepteams/psd/internal/cursor"
	"github.com/deepteams/psd/internal/descriptor"
)

// readExtraData walks the "additional layer information" blocks that follow
// a layer's name, from c's current position through extraStart+extraLen.
// Each block is an "8BIM" signature, a 4-byte tag, a u32 length, and that
// many bytes of tag-specific payload; c is reset to the block's declared
// end after each tag regardless of how much of the payload the handler
// below actually consumed.
func readExtraData(l *LayerInfo, c *cursor.Cursor, extraStart int64, extraLen uint32) error {
	end := extraStart + int64(extraLen)
	for c.Pos() < end {
		sig, err := c.ReadBytes(4)
		if err != nil {
			return fmt.Errorf("extra data signature: %w", err)
		}
		if !bytes.Equal(sig, magic8BIM) {
			return fmt.Errorf("extra data: expected 8BIM signature, got %q", sig)
		}
		tagBytes, err := c.ReadBytes(4)
		if err != nil {
			return fmt.Errorf("extra data tag: %w", err)
		}
		tag := string(tagBytes)

		blockLen, err := c.ReadU32()
		if err != nil {
			return fmt.Errorf("extra data %q length: %w", tag, err)
		}
		start := c.Pos()

		if err := readExtraDataBlock(l, c, tag); err != nil {
			return fmt.Errorf("extra data %q: %w", tag, err)
		}

		c.SetPos(start + int64(blockLen))
	}
	if c.Pos() != end {
		return ErrDesync
	}
	return nil
}

// readExtraDataBlock dispatches one tag payload. Unrecognized tags are
// silently skipped by readExtraData's trailing SetPos, matching the
// original parser's catch-all.
func readExtraDataBlock(l *LayerInfo, c *cursor.Cursor, tag string) error {
	switch tag {
	case "lsct":
		kind, err := c.ReadU32()
		if err != nil {
			return err
		}
		l.GroupExpanded = kind == 1
		l.GroupOpener = kind == 1 || kind == 2
		l.GroupCloser = kind == 3

	case "luni":
		n, err := c.ReadU32()
		if err != nil {
			return err
		}
		units := make([]uint16, n)
		for i := range units {
			units[i], err = c.ReadU16()
			if err != nil {
				return err
			}
		}
		l.Name = utf16ToString(units)

	case "tsly":
		v, err := c.ReadU8()
		if err != nil {
			return err
		}
		l.FunnyFlag = v == 0

	case "iOpa":
		v, err := c.ReadU8()
		if err != nil {
			return err
		}
		l.FillOpacity = float64(v) / 255.0

	case "lfx2":
		version, err := c.ReadU32()
		if err != nil {
			return err
		}
		descVersion, err := c.ReadU32()
		if err != nil {
			return err
		}
		desc, err := descriptor.Read(c)
		if err != nil {
			return err
		}
		if version != 0 || descVersion != 16 {
			return fmt.Errorf("lfx2: unsupported preamble %d/%d", version, descVersion)
		}
		l.EffectsDesc = desc

	case "post":
		n, err := c.ReadU16()
		if err != nil {
			return err
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = []float64{float64(n)}

	case "nvrt":
		l.AdjustmentType = tag
		l.AdjustmentInfo = nil

	case "brit":
		brightness, err := c.ReadU16()
		if err != nil {
			return err
		}
		contrast, err := c.ReadU16()
		if err != nil {
			return err
		}
		mean, err := c.ReadU16()
		if err != nil {
			return err
		}
		labOnly, err := c.ReadU8()
		if err != nil {
			return err
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = []float64{
			float64(brightness), float64(contrast), float64(mean), float64(labOnly), 1.0,
		}

	case "thrs":
		v, err := c.ReadU16()
		if err != nil {
			return err
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = []float64{float64(v)}

	case "hue2":
		if _, err := c.ReadU16(); err != nil { // version
			return err
		}
		absolute, err := c.ReadU8()
		if err != nil {
			return err
		}
		if _, err := c.ReadU8(); err != nil { // padding
			return err
		}
		data := make([]float64, 0, 7)
		data = append(data, float64(absolute))
		for i := 0; i < 6; i++ {
			v, err := c.ReadI16()
			if err != nil {
				return err
			}
			data = append(data, float64(v))
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = data

	case "levl":
		v, err := c.ReadU16()
		if err != nil {
			return err
		}
		if v != 2 {
			return fmt.Errorf("levl: unsupported version %d", v)
		}
		data := make([]float64, 0, 28*5)
		// The format allows up to 29 channel records (composite + up to 28
		// per-channel); this reads a fixed first 28, matching the original
		// parser, which undercounts when all 29 are present.
		for i := 0; i < 28; i++ {
			inFloor, err := c.ReadU16()
			if err != nil {
				return err
			}
			inCeil, err := c.ReadU16()
			if err != nil {
				return err
			}
			outFloor, err := c.ReadU16()
			if err != nil {
				return err
			}
			outCeil, err := c.ReadU16()
			if err != nil {
				return err
			}
			gamma, err := c.ReadU16()
			if err != nil {
				return err
			}
			data = append(data,
				float64(inFloor)/255.0,
				float64(inCeil)/255.0,
				float64(outFloor)/255.0,
				float64(outCeil)/255.0,
				float64(gamma)/100.0,
			)
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = data

	case "curv":
		if _, err := c.ReadU8(); err != nil {
			return err
		}
		v, err := c.ReadU16()
		if err != nil {
			return err
		}
		if v != 1 {
			return fmt.Errorf("curv: unsupported version %d", v)
		}
		enabled, err := c.ReadU32()
		if err != nil {
			return err
		}
		data := make([]float64, 0, 32)
		for i := 0; i < 32; i++ {
			if enabled&(1<<uint(i)) == 0 {
				data = append(data, 0.0)
				continue
			}
			n, err := c.ReadU16()
			if err != nil {
				return err
			}
			data = append(data, float64(n))
			for p := uint16(0); p < n; p++ {
				x, err := c.ReadU16()
				if err != nil {
					return err
				}
				y, err := c.ReadU16()
				if err != nil {
					return err
				}
				data = append(data, float64(x)/255.0, float64(y)/255.0)
			}
		}
		l.AdjustmentType = tag
		l.AdjustmentInfo = data

	case "blwh":
		v, err := c.ReadU32()
		if err != nil {
			return err
		}
		if v != 16 {
			return fmt.Errorf("blwh: unsupported descriptor version %d", v)
		}
		desc, err := descriptor.Read(c)
		if err != nil {
			return err
		}
		l.AdjustmentType = tag
		l.AdjustmentDesc = desc

	case "CgEd":
		v, err := c.ReadU32()
		if err != nil {
			return err
		}
		if v != 16 {
			return fmt.Errorf("CgEd: unsupported descriptor version %d", v)
		}
		desc, err := descriptor.Read(c)
		if err != nil {
			return err
		}
		data := make([]float64, 0, 5)
		for _, key := range []string{"Brgh", "Cntr", "means"} {
			item, ok := desc.Get(key)
			if !ok {
				return fmt.Errorf("CgEd: missing key %q", key)
			}
			data = append(data, float64(item.Long))
		}
		for _, key := range []string{"Lab ", "useLegacy"} {
			item, ok := desc.Get(key)
			if !ok {
				return fmt.Errorf("CgEd: missing key %q", key)
			}
			v := 0.0
			if item.Bool {
				v = 1.0
			}
			data = append(data, v)
		}
		l.AdjustmentInfo = data
	}
	return nil
}

// utf16ToString decodes UTF-16 code units into a string, trimming any
// trailing NUL padding.
func utf16ToString(units []uint16) string {
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
