// Package img contains routines for decoding, resizing and augmenting images stored as float32 arrays.
package img

import (
	"fmt"
	"github.com/nacei/TF2GAN/stats"
	"image"
	"image/color"
)

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
	RGBAModel = color.ModelFunc(rgbaModel)
)

// Gray color stored a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// RGBA color is non-premultiplied with each channel in range 0-1
type RGBA struct {
	R, G, B, A float32
}

func (c RGBA) RGBA() (r, g, b, a uint32) {
	alpha := clamp(c.A, 0, 1)
	a = clampu(alpha, 0, 1)
	return clampu(c.R*alpha, 0, 1), clampu(c.G*alpha, 0, 1), clampu(c.B*alpha, 0, 1), a
}

func rgbaModel(c color.Color) color.Color {
	if _, ok := c.(RGBA); ok {
		return c
	}
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return RGBA{R: float32(n.R) / 0xffff, G: float32(n.G) / 0xffff, B: float32(n.B) / 0xffff, A: float32(n.A) / 0xffff}
}

// Image type stores pixel data as float32 values in row major height, width, channel order.
// It implements draw.Image for 1 to 4 channels assuming values in the range 0-1.
type Image struct {
	Pix      []float32
	Height   int
	Width    int
	Channels int
}

// Create a new zero valued image
func New(width, height, channels int) *Image {
	return &Image{Pix: make([]float32, height*width*channels), Height: height, Width: width, Channels: channels}
}

func NewLike(src *Image) *Image {
	return New(src.Width, src.Height, src.Channels)
}

// Shape returns height, width, channels
func (m *Image) Shape() []int {
	return []int{m.Height, m.Width, m.Channels}
}

func (m *Image) String() string {
	return fmt.Sprintf("image%v", m.Shape())
}

// Offset returns the index of the first channel of the pixel at x, y
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// Pixel returns a slice with the channel values at x, y
func (m *Image) Pixel(x, y int) []float32 {
	i := m.Offset(x, y)
	return m.Pix[i : i+m.Channels : i+m.Channels]
}

// Row returns a slice with the pixel data for row y
func (m *Image) Row(y int) []float32 {
	n := m.Width * m.Channels
	return m.Pix[y*n : (y+1)*n]
}

func (m *Image) Clone() *Image {
	dst := *m
	dst.Pix = append([]float32{}, m.Pix...)
	return &dst
}

func (m *Image) ColorModel() color.Model {
	switch m.Channels {
	case 1:
		return GrayModel
	case 2, 4:
		return RGBAModel
	default:
		return RGBModel
	}
}

func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *Image) inside(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

func (m *Image) At(x, y int) color.Color {
	if !m.inside(x, y) {
		return m.ColorModel().Convert(color.Transparent)
	}
	p := m.Pixel(x, y)
	switch m.Channels {
	case 1:
		return Gray{Y: p[0]}
	case 2:
		return RGBA{R: p[0], G: p[0], B: p[0], A: p[1]}
	case 4:
		return RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	default:
		return RGB{R: p[0], G: p[1], B: p[2]}
	}
}

func (m *Image) Set(x, y int, c color.Color) {
	if !m.inside(x, y) {
		return
	}
	p := m.Pixel(x, y)
	switch m.Channels {
	case 1:
		p[0] = grayModel(c).(Gray).Y
	case 2:
		v := rgbaModel(c).(RGBA)
		p[0], p[1] = 0.299*v.R+0.587*v.G+0.114*v.B, v.A
	case 4:
		v := rgbaModel(c).(RGBA)
		p[0], p[1], p[2], p[3] = v.R, v.G, v.B, v.A
	default:
		v := rgbModel(c).(RGB)
		p[0], p[1], p[2] = v.R, v.G, v.B
	}
}

// Scale multiplies each value by scale and adds offset, returning a new image
func (m *Image) Scale(scale, offset float32) *Image {
	dst := NewLike(m)
	for i, val := range m.Pix {
		dst.Pix[i] = val*scale + offset
	}
	return dst
}

// Normalise maps pixel values from the range 0-255 to -1 to 1
func Normalise(m *Image) *Image {
	return m.Scale(1/127.5, -1)
}

// Denormalise maps pixel values in the range -1 to 1 back to 0-1
func Denormalise(m *Image) *Image {
	return m.Scale(0.5, 0.5)
}

// Calculate mean and stddev per channel from set of images
func GetStats(images ...*Image) (mean, std []float32) {
	if len(images) == 0 {
		return nil, nil
	}
	channels := images[0].Channels
	stat := make([]*stats.Average, channels)
	for i := range stat {
		stat[i] = new(stats.Average)
	}
	for _, img := range images {
		for i, val := range img.Pix {
			stat[i%channels].Add(float64(val))
		}
	}
	mean = make([]float32, channels)
	std = make([]float32, channels)
	for i, s := range stat {
		mean[i] = float32(s.Mean)
		std[i] = float32(s.StdDev)
	}
	return mean, std
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1)*0xffff + 0.5)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}
