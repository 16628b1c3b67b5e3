package img

import (
	"bytes"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"image"
	"image/jpeg"
	"image/png"
)

// ErrUnsupportedImageFormat is returned when the encoded data is neither JPEG nor PNG.
var ErrUnsupportedImageFormat = errors.New("unsupported image format")

// Encoded image formats
type Format int

const (
	Unknown Format = iota
	JPEG
	PNG
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return "unknown"
	}
}

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
)

// DetectFormat checks the leading magic bytes of an encoded image
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	default:
		return Unknown
	}
}

// Decode a JPEG or PNG image to an array with pixel values in the range 0-255.
// channels selects the output channel count: 1 gray, 2 gray+alpha, 3 RGB, 4 RGBA; 0 keeps the native count.
func Decode(data []byte, channels int) (*Image, error) {
	if channels < 0 || channels > 4 {
		return nil, errors.Errorf("invalid channel count %d", channels)
	}
	var src image.Image
	var err error
	format := DetectFormat(data)
	switch format {
	case JPEG:
		src, err = jpeg.Decode(bytes.NewReader(data))
	case PNG:
		src, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedImageFormat
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %s image", format)
	}
	return FromImage(src, channels), nil
}

// FromImage converts an image.Image to an array with pixel values in the range 0-255.
func FromImage(src image.Image, channels int) *Image {
	if channels == 0 {
		channels = nativeChannels(src)
	}
	b := src.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())
	dst := New(b.Dx(), b.Dy(), channels)
	if channels == 1 {
		gray := image.NewGray(rect)
		draw.Draw(gray, rect, src, b.Min, draw.Src)
		for i, val := range gray.Pix {
			dst.Pix[i] = float32(val)
		}
		return dst
	}
	rgba := image.NewNRGBA(rect)
	draw.Draw(rgba, rect, src, b.Min, draw.Src)
	for i := 0; i < len(rgba.Pix)/4; i++ {
		p := rgba.Pix[4*i : 4*i+4]
		q := dst.Pix[i*channels : (i+1)*channels]
		switch channels {
		case 2:
			q[0] = float32((19595*uint32(p[0]) + 38470*uint32(p[1]) + 7471*uint32(p[2]) + 1<<15) >> 16)
			q[1] = float32(p[3])
		default:
			for ch := range q {
				q[ch] = float32(p[ch])
			}
		}
	}
	return dst
}

func nativeChannels(src image.Image) int {
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}
	if o, ok := src.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return 4
	}
	return 3
}

// ToImage converts an array with values in the range 0-255 to an 8 bit image.Image
func ToImage(m *Image) image.Image {
	rect := image.Rect(0, 0, m.Width, m.Height)
	if m.Channels == 1 {
		dst := image.NewGray(rect)
		for i, val := range m.Pix {
			dst.Pix[i] = uint8(clamp(val, 0, 255) + 0.5)
		}
		return dst
	}
	dst := image.NewNRGBA(rect)
	for i := 0; i < m.Width*m.Height; i++ {
		p := m.Pix[i*m.Channels : (i+1)*m.Channels]
		q := dst.Pix[4*i : 4*i+4]
		switch m.Channels {
		case 2:
			q[0], q[1], q[2], q[3] = to8(p[0]), to8(p[0]), to8(p[0]), to8(p[1])
		case 3:
			q[0], q[1], q[2], q[3] = to8(p[0]), to8(p[1]), to8(p[2]), 255
		default:
			q[0], q[1], q[2], q[3] = to8(p[0]), to8(p[1]), to8(p[2]), to8(p[3])
		}
	}
	return dst
}

func to8(val float32) uint8 {
	return uint8(clamp(val, 0, 255) + 0.5)
}
