// Package descriptor implements PSD's recursive "class descriptor" format:
// a self-describing tree of typed key/value pairs used by layer effects and
// some adjustment-layer payloads.
//
// The dispatch shape mirrors a chunk-based container walk (compare
// internal/container's FourCC switch in the sibling webp module): each
// value begins with a 4-byte type tag that selects how the rest of the
// value is decoded, recursing into nested descriptors and variable-length
// lists.
package descriptor

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/deepteams/psd/internal/cursor"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	KindLong Kind = iota
	KindDouble
	KindBool
	KindUnitFloat
	KindText
	KindEnum
	KindObject
	KindList
	KindError
)

// Value is a single typed leaf (or sub-tree) in a descriptor.
//
// Exactly the fields relevant to Kind are populated; the rest are left at
// their zero value. This mirrors the tagged-union shape spec.md calls for
// without requiring a type switch over an interface{} for every consumer.
type Value struct {
	Kind Kind

	Long   int32
	Double float64
	Bool   bool

	// UnitTag is the 4-byte unit code (e.g. "#Ang", "#Pxl") for KindUnitFloat.
	UnitTag string
	Text    string

	// EnumType and EnumValue hold the two strings of a KindEnum pair.
	EnumType  string
	EnumValue string

	Object *Descriptor
	List   []Value

	// ErrTag holds the unrecognized 4-byte type tag for KindError.
	ErrTag string
}

// Entry is one (key, value) pair of a Descriptor, in file order.
type Entry struct {
	Key   string
	Value Value
}

// Descriptor is a PSD class descriptor: a class ID plus an ordered list of
// key/value entries. Order is preserved for callers that care about it;
// Get provides unordered lookup for callers that don't.
type Descriptor struct {
	ClassID string
	Entries []Entry
}

// Get returns the value for the first entry with the given key, and
// whether it was found.
func (d *Descriptor) Get(key string) (Value, bool) {
	for _, e := range d.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Read parses one descriptor from c: a UTF-16 name (typically empty,
// skipped), an ASCII class ID, an item count, and that many key/value
// entries.
func Read(c *cursor.Cursor) (*Descriptor, error) {
	nameLen, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("descriptor: name length: %w", err)
	}
	if err := c.Skip(int(nameLen) * 2); err != nil {
		return nil, fmt.Errorf("descriptor: name: %w", err)
	}

	classID, err := readLengthOrFourString(c)
	if err != nil {
		return nil, fmt.Errorf("descriptor: class id: %w", err)
	}

	itemCount, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("descriptor: item count: %w", err)
	}

	d := &Descriptor{ClassID: classID, Entries: make([]Entry, 0, itemCount)}
	for i := uint32(0); i < itemCount; i++ {
		key, err := readLengthOrFourString(c)
		if err != nil {
			return nil, fmt.Errorf("descriptor: key %d: %w", i, err)
		}
		val, err := readValue(c)
		if err != nil {
			return nil, fmt.Errorf("descriptor: value for key %q: %w", key, err)
		}
		d.Entries = append(d.Entries, Entry{Key: key, Value: val})
	}
	return d, nil
}

// readLengthOrFourString reads PSD's "length 0 means 4" style string: a u32
// length followed by that many ASCII bytes, except a declared length of 0
// means a fixed 4-byte string.
func readLengthOrFourString(c *cursor.Cursor) (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		n = 4
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readValue decodes one tagged value: a 4-byte type tag followed by its
// tag-specific payload.
func readValue(c *cursor.Cursor) (Value, error) {
	tagBytes, err := c.ReadBytes(4)
	if err != nil {
		return Value{}, err
	}
	tag := string(tagBytes)

	switch tag {
	case "long":
		v, err := c.ReadI32()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindLong, Long: v}, nil

	case "doub":
		v, err := c.ReadF64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDouble, Double: v}, nil

	case "bool":
		b, err := c.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: b != 0}, nil

	case "Objc":
		obj, err := Read(c)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindObject, Object: obj}, nil

	case "TEXT":
		n, err := c.ReadU32()
		if err != nil {
			return Value{}, err
		}
		units := make([]uint16, n)
		for i := range units {
			units[i], err = c.ReadU16()
			if err != nil {
				return Value{}, err
			}
		}
		text := strings.TrimRight(string(utf16.Decode(units)), "\x00")
		return Value{Kind: KindText, Text: text}, nil

	case "UntF":
		unitTag, err := c.ReadBytes(4)
		if err != nil {
			return Value{}, err
		}
		v, err := c.ReadF64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindUnitFloat, UnitTag: string(unitTag), Double: v}, nil

	case "enum":
		typ, err := readLengthOrFourString(c)
		if err != nil {
			return Value{}, err
		}
		val, err := readLengthOrFourString(c)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindEnum, EnumType: typ, EnumValue: val}, nil

	case "VlLs":
		n, err := c.ReadU32()
		if err != nil {
			return Value{}, err
		}
		list := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := readValue(c)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return Value{Kind: KindList, List: list}, nil

	default:
		// Best-effort recovery point: an unrecognized sub-object tag is
		// recorded as an error-valued leaf rather than aborting the whole
		// parse, per spec. We cannot know its length, so we deliberately
		// do not attempt to skip past it.
		return Value{Kind: KindError, ErrTag: tag}, nil
	}
}
