// Package util has helpers for reading, writing and tiling images.
package util

import (
	"github.com/nacei/TF2GAN/img"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// CheckDir creates the directory if it does not already exist.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.Errorf("%s is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return errors.Wrap(os.MkdirAll(dir, 0755), "error creating directory")
}

// ImRead loads a JPEG or PNG file. If norm is set values are scaled to 0-1, else they are in the range 0-255.
func ImRead(path string, norm bool) (*img.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading image")
	}
	m, err := img.Decode(data, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if norm {
		m = m.Scale(1/255., 0)
	}
	return m, nil
}

// ImSave writes an image with values in the range 0-1 to a file, the format is chosen from the extension.
func ImSave(path string, m *img.Image) error {
	var encode func(f *os.File, src image.Image) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encode = func(f *os.File, src image.Image) error { return png.Encode(f, src) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File, src image.Image) error { return jpeg.Encode(f, src, &jpeg.Options{Quality: 95}) }
	default:
		return errors.Errorf("unsupported image file extension for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error saving image")
	}
	if err = encode(f, img.ToImage(m.Scale(255, 0))); err != nil {
		f.Close()
		return errors.Wrapf(err, "error encoding %s", path)
	}
	return f.Close()
}

// ImDenorm maps values from -1 to 1 back to 0-1
func ImDenorm(m *img.Image) *img.Image {
	return img.Denormalise(m)
}

// Montage tiles the images on a square grid of side ceil(sqrt(N)) in row major order.
// Unused cells are left as zero. All images must have the same shape.
func Montage(imgs []*img.Image) (*img.Image, error) {
	if len(imgs) == 0 {
		return nil, errors.New("montage: no images")
	}
	h, w, c := imgs[0].Height, imgs[0].Width, imgs[0].Channels
	for i, m := range imgs {
		if m.Height != h || m.Width != w || m.Channels != c {
			return nil, errors.Errorf("montage: image %d shape %v does not match %v", i, m.Shape(), imgs[0].Shape())
		}
	}
	n := int(math.Ceil(math.Sqrt(float64(len(imgs)))))
	dst := img.New(n*w, n*h, c)
	for i, m := range imgs {
		row, col := i/n, i%n
		for y := 0; y < h; y++ {
			i0 := dst.Offset(col*w, row*h+y)
			copy(dst.Pix[i0:i0+w*c], m.Row(y))
		}
	}
	return dst, nil
}

// Scale enlarges an image with values in the range 0-1 by an integer factor for display.
func Scale(m *img.Image, factor int) image.Image {
	if factor < 1 {
		factor = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width*factor, m.Height*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), m, m.Bounds(), draw.Src, nil)
	return dst
}
