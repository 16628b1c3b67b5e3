package img

import (
	"bytes"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func printArray(m *Image, ch int) string {
	s := make([]string, m.Height)
	for y := range s {
		row := make([]float32, m.Width)
		for x := range row {
			row[x] = m.Pixel(x, y)[ch]
		}
		s[y] = fmt.Sprintf("%6.2f", row)
	}
	return strings.Join(s, "\n")
}

func sequence(width, height, channels int) *Image {
	m := New(width, height, channels)
	for i := range m.Pix {
		m.Pix[i] = float32(i)
	}
	return m
}

func encodePNG(t *testing.T, src image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	return buf.Bytes()
}

func testImage(width, height int) *image.NRGBA {
	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(20 * y), B: 200, A: 255})
		}
	}
	return src
}

func TestDetectFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(4, 4), nil))
	assert.Equal(t, JPEG, DetectFormat(buf.Bytes()))
	assert.Equal(t, PNG, DetectFormat(encodePNG(t, testImage(4, 4))))
	assert.Equal(t, Unknown, DetectFormat([]byte("BM\x00\x00")))
	assert.Equal(t, Unknown, DetectFormat(nil))
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, testImage(3, 2))
	m, err := Decode(data, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 3}, m.Shape())
	assert.Equal(t, []float32{20, 20, 200}, m.Pixel(2, 1))

	gray, err := Decode(data, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, gray.Shape())

	rgba, err := Decode(data, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 0, 200, 255}, rgba.Pixel(1, 0))

	native, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, native.Channels)
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(16, 8), &jpeg.Options{Quality: 95}))
	m, err := Decode(buf.Bytes(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 16, 3}, m.Shape())
	assert.InDelta(t, 200, m.Pixel(4, 4)[2], 12)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode([]byte("GIF89a......"), 3)
	assert.Equal(t, ErrUnsupportedImageFormat, err)

	_, err = Decode(pngMagic, 3)
	assert.Error(t, err)
	assert.NotEqual(t, ErrUnsupportedImageFormat, err)

	_, err = Decode(encodePNG(t, testImage(2, 2)), 5)
	assert.Error(t, err)
}

func TestImageRoundTrip(t *testing.T) {
	src := testImage(5, 4)
	m := FromImage(src, 3)
	dst := ToImage(m)
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, color.NRGBAModel.Convert(src.At(x, y)), color.NRGBAModel.Convert(dst.At(x, y)))
		}
	}
}

func TestDrawImage(t *testing.T) {
	m := New(2, 2, 3)
	m.Set(1, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	assert.Equal(t, []float32{1, 0, 0}, m.Pixel(1, 0))
	r, g, b, a := m.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	m.Set(5, 5, color.White)
	assert.Equal(t, RGB{}, m.At(5, 5))
}

func TestNormalise(t *testing.T) {
	m := &Image{Pix: []float32{0, 127.5, 255}, Width: 3, Height: 1, Channels: 1}
	n := Normalise(m)
	assert.InDeltaSlice(t, []float32{-1, 0, 1}, n.Pix, 1e-6)
	d := Denormalise(n)
	assert.InDeltaSlice(t, []float32{0, 0.5, 1}, d.Pix, 1e-6)
}

func TestCropOrPad(t *testing.T) {
	src := sequence(4, 3, 1)
	crop := ResizeWithCropOrPad(src, 2, 2)
	t.Logf("crop\n%s", printArray(crop, 0))
	assert.Equal(t, []float32{1, 2, 5, 6}, crop.Pix)

	pad := ResizeWithCropOrPad(src, 5, 6)
	t.Logf("pad\n%s", printArray(pad, 0))
	assert.Equal(t, []int{5, 6, 1}, pad.Shape())
	assert.Equal(t, make([]float32, 6), pad.Row(0))
	assert.Equal(t, []float32{0, 0, 1, 2, 3, 0}, pad.Row(1))
	assert.Equal(t, []float32{0, 8, 9, 10, 11, 0}, pad.Row(3))

	mixed := ResizeWithCropOrPad(src, 5, 2)
	assert.Equal(t, []float32{0, 0, 1, 2, 5, 6, 9, 10, 0, 0}, mixed.Pix)
}

func TestResize(t *testing.T) {
	src := &Image{Pix: []float32{0, 10, 20, 30}, Width: 2, Height: 2, Channels: 1}
	dst := Resize(src, 4, 4)
	t.Logf("resize\n%s", printArray(dst, 0))
	assert.Equal(t, []int{4, 4, 1}, dst.Shape())
	assert.InDeltaSlice(t, []float32{0, 2.5, 7.5, 10}, dst.Row(0), 1e-5)
	assert.InDeltaSlice(t, []float32{20, 22.5, 27.5, 30}, dst.Row(3), 1e-5)

	same := Resize(src, 2, 2)
	assert.Equal(t, src.Pix, same.Pix)

	down := Resize(sequence(4, 4, 1), 2, 2)
	assert.InDeltaSlice(t, []float32{2.5, 4.5, 10.5, 12.5}, down.Pix, 1e-5)
}

func TestFlip(t *testing.T) {
	src := sequence(3, 1, 2)
	assert.Equal(t, []float32{4, 5, 2, 3, 0, 1}, FlipHoriz(src).Pix)
}

func TestTransformShape(t *testing.T) {
	seed := time.Now().UTC().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	trans := NewTransformer(16, 17, 3, AugmentTrans, 2, rng)
	src := Normalise(sequence(20, 20, 3))
	for i := 0; i < 20; i++ {
		dst, err := trans.Transform(src, i%2)
		require.NoError(t, err)
		assert.Equal(t, []int{16, 16, 3}, dst.Shape())
	}
	_, err := trans.Transform(sequence(20, 20, 1), 0)
	assert.Error(t, err)
}

func TestTransformBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	trans := NewTransformer(8, 8, 1, HorizFlip, 4, rng)
	src := make([]*Image, 10)
	for i := range src {
		src[i] = sequence(8, 8, 1)
	}
	dst, err := trans.TransformBatch(src, nil)
	require.NoError(t, err)
	flipped := 0
	for _, m := range dst {
		if m.Pix[0] == 7 {
			flipped++
		} else {
			assert.Equal(t, src[0].Pix, m.Pix)
		}
	}
	t.Logf("%d of %d flipped", flipped, len(dst))
}

func TestTransType(t *testing.T) {
	assert.Equal(t, "None", NoTrans.String())
	assert.Equal(t, "HorizFlip RandomCrop", AugmentTrans.String())
}

func TestGetStats(t *testing.T) {
	m := &Image{Pix: []float32{1, 10, 3, 10}, Width: 2, Height: 1, Channels: 2}
	mean, std := GetStats(m)
	assert.InDeltaSlice(t, []float32{2, 10}, mean, 1e-6)
	assert.InDelta(t, 1.41421, std[0], 1e-4)
	assert.InDelta(t, 0, std[1], 1e-6)
}

func BenchmarkTransform(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	trans := NewTransformer(128, 140, 3, AugmentTrans, 1, rng)
	src := Normalise(sequence(178, 178, 3))
	for i := 0; i < b.N; i++ {
		trans.Transform(src, 0)
	}
}

func TestGrayAlpha(t *testing.T) {
	m, err := Decode(encodePNG(t, testImage(2, 2)), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, m.Shape())
	assert.Equal(t, float32(255), m.Pixel(0, 0)[1])

	m = New(1, 1, 2)
	m.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	assert.InDeltaSlice(t, []float32{1, 1}, m.Pixel(0, 0), 1e-5)
	_, _, _, a := m.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}
