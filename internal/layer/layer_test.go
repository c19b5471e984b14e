package layer

import (
	"testing"

	"github.com/deepteams/psd/internal/cursor"
)

// psdBuilder assembles a minimal well-formed PSD byte stream for tests,
// mirroring the literal-byte-composition style used across this module's
// fixtures.
type psdBuilder struct {
	b []byte
}

func (p *psdBuilder) u8(v uint8) *psdBuilder {
	p.b = append(p.b, v)
	return p
}
func (p *psdBuilder) u16(v uint16) *psdBuilder {
	p.b = append(p.b, byte(v>>8), byte(v))
	return p
}
func (p *psdBuilder) i16(v int16) *psdBuilder { return p.u16(uint16(v)) }
func (p *psdBuilder) u32(v uint32) *psdBuilder {
	p.b = append(p.b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return p
}
func (p *psdBuilder) i32(v int32) *psdBuilder { return p.u32(uint32(v)) }
func (p *psdBuilder) bytes(v []byte) *psdBuilder {
	p.b = append(p.b, v...)
	return p
}
func (p *psdBuilder) str(s string) *psdBuilder { return p.bytes([]byte(s)) }
func (p *psdBuilder) zeros(n int) *psdBuilder   { return p.bytes(make([]byte, n)) }

// packBitsMode1Row encodes src as a single PackBits row using only literal
// runs: a control byte (n-1) followed by n raw bytes.
func packBitsMode1Row(src []byte) []byte {
	var out []byte
	i := 0
	for i < len(src) {
		n := len(src) - i
		if n > 128 {
			n = 128
		}
		out = append(out, byte(int8(n-1)))
		out = append(out, src[i:i+n]...)
		i += n
	}
	return out
}

// channelPlane builds a mode-1 (PackBits) compressed single-row plane: a
// 2-byte mode prefix, one u16 row-length prefix (h=1), then the encoded row.
func channelPlane(src []byte) []byte {
	row := packBitsMode1Row(src)
	p := &psdBuilder{}
	p.u16(1).u16(uint16(len(row))).bytes(row)
	return p.b
}

func buildPSDHeader(p *psdBuilder, channelCount uint16, height, width uint32) {
	p.str("8BPS").u16(1).zeros(6).u16(channelCount).u32(height).u32(width).u16(8).u16(ColorModeRGB)
}

// buildSingleLayerPSD assembles a full PSD byte stream containing one
// 2x1 RGB layer named "Layer", with R/G/B channels PackBits-encoded and no
// alpha channel.
func buildSingleLayerPSD(t *testing.T) []byte {
	t.Helper()

	r := channelPlane([]byte{10, 20})
	g := channelPlane([]byte{30, 40})
	b := channelPlane([]byte{50, 60})

	p := &psdBuilder{}
	buildPSDHeader(p, 3, 1, 2)
	p.u32(0) // color mode data length
	p.u32(0) // image resources length
	p.u32(0) // layer and mask info length (unused by the walker)
	p.u32(0) // layer info length (unused by the walker)
	p.i16(1) // layer count

	// Layer record header.
	p.i32(0).i32(0).i32(1).i32(2) // top, left, bottom, right -> h=1, w=2
	p.u16(3)                      // channel count
	p.i16(0).u32(uint32(len(r)))  // R
	p.i16(1).u32(uint32(len(g)))  // G
	p.i16(2).u32(uint32(len(b)))  // B
	p.str("8BIM").str("norm")     // blend signature, blend mode key
	p.u8(255)                     // opacity
	p.u8(0)                       // clipping
	p.u8(0)                       // flags
	p.u8(0)                       // filler

	nameField := buildNameField("Layer")
	extraLen := 4 + 4 + len(nameField) // mask len field + blending len field + name field, no mask/blending data, no tags
	p.u32(uint32(extraLen))
	p.u32(0) // mask data length (no mask)
	p.u32(0) // layer blending ranges length
	p.bytes(nameField)

	// Channel image data, in channel-table order.
	p.bytes(r).bytes(g).bytes(b)

	return p.b
}

// buildNameField encodes a Pascal-style name: a u8 length followed by that
// many bytes, the whole field padded to a multiple of 4.
func buildNameField(name string) []byte {
	n := len(name)
	padded := n
	for (padded+1)%4 != 0 {
		padded++
	}
	out := make([]byte, 0, 1+padded)
	out = append(out, byte(n))
	out = append(out, []byte(name)...)
	out = append(out, make([]byte, padded-n)...)
	return out
}

func TestParseLayersSingleRGBLayer(t *testing.T) {
	data := buildSingleLayerPSD(t)

	layers, err := ParseLayers(data)
	if err != nil {
		t.Fatalf("ParseLayers failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}

	l := layers[0]
	if l.Name != "Layer" {
		t.Fatalf("Name = %q, want %q", l.Name, "Layer")
	}
	if l.W != 2 || l.H != 1 {
		t.Fatalf("dimensions = %dx%d, want 2x1", l.W, l.H)
	}
	if l.BlendMode != "norm" {
		t.Fatalf("BlendMode = %q", l.BlendMode)
	}
	if l.Opacity != 1.0 {
		t.Fatalf("Opacity = %v, want 1.0", l.Opacity)
	}
	if !l.HasG || !l.HasB || l.HasA {
		t.Fatalf("HasG=%v HasB=%v HasA=%v, want true,true,false", l.HasG, l.HasB, l.HasA)
	}
	if !l.IsVisible {
		t.Fatalf("expected layer to be visible")
	}

	want := []byte{
		10, 30, 50, 0xFF, // pixel 0: R,G,B,A (A defaulted to opaque)
		20, 40, 60, 0xFF, // pixel 1
	}
	if len(l.ImageData) != len(want) {
		t.Fatalf("ImageData length = %d, want %d", len(l.ImageData), len(want))
	}
	for i := range want {
		if l.ImageData[i] != want[i] {
			t.Fatalf("ImageData[%d] = %d, want %d (full: %v)", i, l.ImageData[i], want[i], l.ImageData)
		}
	}
}

// buildLayerWithKChannelPSD assembles a full PSD byte stream containing one
// 2x1 layer with R/G/B channels plus a 4th (K) channel, all PackBits-encoded.
func buildLayerWithKChannelPSD(t *testing.T) []byte {
	t.Helper()

	r := channelPlane([]byte{10, 20})
	g := channelPlane([]byte{30, 40})
	b := channelPlane([]byte{50, 60})
	k := channelPlane([]byte{70, 80})

	p := &psdBuilder{}
	buildPSDHeader(p, 4, 1, 2)
	p.u32(0).u32(0).u32(0).u32(0) // color mode data, image resources, layer-and-mask info, layer info lengths
	p.i16(1)                      // layer count

	p.i32(0).i32(0).i32(1).i32(2) // top, left, bottom, right -> h=1, w=2
	p.u16(4)                      // channel count
	p.i16(0).u32(uint32(len(r)))
	p.i16(1).u32(uint32(len(g)))
	p.i16(2).u32(uint32(len(b)))
	p.i16(3).u32(uint32(len(k))) // K
	p.str("8BIM").str("norm")
	p.u8(255) // opacity
	p.u8(0)   // clipping
	p.u8(0)   // flags
	p.u8(0)   // filler

	nameField := buildNameField("Layer")
	extraLen := 4 + 4 + len(nameField)
	p.u32(uint32(extraLen))
	p.u32(0) // mask data length
	p.u32(0) // blending ranges length
	p.bytes(nameField)

	p.bytes(r).bytes(g).bytes(b).bytes(k)

	return p.b
}

func TestParseLayersKChannel(t *testing.T) {
	data := buildLayerWithKChannelPSD(t)

	layers, err := ParseLayers(data)
	if err != nil {
		t.Fatalf("ParseLayers failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}

	want := []byte{70, 80}
	if len(layers[0].ImageDataK) != len(want) {
		t.Fatalf("ImageDataK length = %d, want %d", len(layers[0].ImageDataK), len(want))
	}
	for i := range want {
		if layers[0].ImageDataK[i] != want[i] {
			t.Fatalf("ImageDataK[%d] = %d, want %d", i, layers[0].ImageDataK[i], want[i])
		}
	}
}

// buildLayerWithMaskChannelPSD assembles a PSD byte stream containing one
// 2x1 RGB layer that also carries mask geometry and a user-mask (aux)
// channel, id -2, PackBits-encoded.
func buildLayerWithMaskChannelPSD(t *testing.T) []byte {
	t.Helper()

	r := channelPlane([]byte{10, 20})
	g := channelPlane([]byte{30, 40})
	b := channelPlane([]byte{50, 60})
	mask := channelPlane([]byte{5, 6})

	p := &psdBuilder{}
	buildPSDHeader(p, 4, 1, 2)
	p.u32(0).u32(0).u32(0).u32(0)
	p.i16(1) // layer count

	p.i32(0).i32(0).i32(1).i32(2) // top, left, bottom, right -> h=1, w=2
	p.u16(4)                      // channel count
	p.i16(0).u32(uint32(len(r)))
	p.i16(1).u32(uint32(len(g)))
	p.i16(2).u32(uint32(len(b)))
	p.i16(-2).u32(uint32(len(mask))) // user mask (aux) channel
	p.str("8BIM").str("norm")
	p.u8(255) // opacity
	p.u8(0)   // clipping
	p.u8(0)   // flags
	p.u8(0)   // filler

	nameField := buildNameField("Layer")
	const maskDataLen = 18 // 4x i32 rect + defaultColor u8 + flags u8
	extraLen := 4 + maskDataLen + 4 + len(nameField)
	p.u32(uint32(extraLen))
	p.u32(maskDataLen)
	p.i32(0).i32(0).i32(1).i32(2) // mask rect top,left,bottom,right -> h=1, w=2
	p.u8(255)                     // default color
	p.u8(0)                       // flags
	p.u32(0)                      // blending ranges length
	p.bytes(nameField)

	p.bytes(r).bytes(g).bytes(b).bytes(mask)

	return p.b
}

func TestParseLayersMaskChannel(t *testing.T) {
	data := buildLayerWithMaskChannelPSD(t)

	layers, err := ParseLayers(data)
	if err != nil {
		t.Fatalf("ParseLayers failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}

	l := layers[0]
	if l.Mask.W != 2 || l.Mask.H != 1 {
		t.Fatalf("Mask geometry = %dx%d, want 2x1", l.Mask.W, l.Mask.H)
	}
	if l.MaskChannelCount != 1 {
		t.Fatalf("MaskChannelCount = %d, want 1", l.MaskChannelCount)
	}
	want := []byte{5, 6}
	if len(l.ImageDataMask) != len(want) {
		t.Fatalf("ImageDataMask length = %d, want %d", len(l.ImageDataMask), len(want))
	}
	for i := range want {
		if l.ImageDataMask[i] != want[i] {
			t.Fatalf("ImageDataMask[%d] = %d, want %d", i, l.ImageDataMask[i], want[i])
		}
	}
}

// buildLayerRecord assembles one zero-channel layer record (a 1x1 rect, no
// channel image data) carrying the given already-encoded extra-data tag
// bytes, for tests that only care about extra-data-driven fields.
func buildLayerRecord(name string, extraTags []byte) []byte {
	p := &psdBuilder{}
	p.i32(0).i32(0).i32(1).i32(1) // top, left, bottom, right -> 1x1
	p.u16(0)                      // channel count
	p.str("8BIM").str("norm")
	p.u8(255) // opacity
	p.u8(0)   // clipping
	p.u8(0)   // flags
	p.u8(0)   // filler

	nameField := buildNameField(name)
	extraLen := 4 + 4 + len(nameField) + len(extraTags)
	p.u32(uint32(extraLen))
	p.u32(0) // mask data length
	p.u32(0) // blending ranges length
	p.bytes(nameField)
	p.bytes(extraTags)

	return p.b
}

// TestGroupBracketBalance builds a layer stack mixing group openers, a
// normal layer, and group closers, and checks that the two markers occur in
// equal counts, per spec.md's "group bracket balance" property.
func TestGroupBracketBalance(t *testing.T) {
	openerTag := (&extraBuilder{}).tag("lsct", u32b(1)).b
	closerTag := (&extraBuilder{}).tag("lsct", u32b(3)).b

	records := [][]byte{
		buildLayerRecord("GroupA", openerTag),
		buildLayerRecord("GroupB", openerTag),
		buildLayerRecord("Leaf", nil),
		buildLayerRecord("/GroupB", closerTag),
		buildLayerRecord("/GroupA", closerTag),
	}

	p := &psdBuilder{}
	buildPSDHeader(p, 0, 1, 1)
	p.u32(0).u32(0).u32(0).u32(0)
	p.i16(int16(len(records)))
	for _, r := range records {
		p.bytes(r)
	}

	layers, err := ParseLayers(p.b)
	if err != nil {
		t.Fatalf("ParseLayers failed: %v", err)
	}

	var openers, closers int
	for _, l := range layers {
		if l.GroupOpener {
			openers++
		}
		if l.GroupCloser {
			closers++
		}
	}
	if openers != closers {
		t.Fatalf("group bracket imbalance: %d openers, %d closers", openers, closers)
	}
	if openers != 2 {
		t.Fatalf("openers = %d, want 2", openers)
	}
}

func TestParseLayersZeroCount(t *testing.T) {
	p := &psdBuilder{}
	buildPSDHeader(p, 3, 1, 2)
	p.u32(0).u32(0).u32(0).u32(0).i16(0)

	layers, err := ParseLayers(p.b)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 0 {
		t.Fatalf("got %d layers, want 0", len(layers))
	}
}

func TestParseLayersBadHeaderPropagates(t *testing.T) {
	p := &psdBuilder{}
	buildPSDHeader(p, 3, 1, 2)
	p.b[0] = 'X'

	if _, err := ParseLayers(p.b); err == nil {
		t.Fatal("expected header validation error to propagate")
	}
}

func TestBuildNameFieldPadding(t *testing.T) {
	field := buildNameField("Layer")
	if len(field) != 8 {
		t.Fatalf("name field length = %d, want 8", len(field))
	}
}

func TestReadPascalNameDecodesAndSkipsPadding(t *testing.T) {
	field := buildNameField("Layer")
	trailer := []byte{0xAB}
	c := cursor.New(append(append([]byte{}, field...), trailer...))

	name, err := readPascalName(c)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Layer" {
		t.Fatalf("name = %q, want %q", name, "Layer")
	}
	next, err := c.ReadByte()
	if err != nil || next != 0xAB {
		t.Fatalf("cursor not positioned past padding: %v, %v", next, err)
	}
}
