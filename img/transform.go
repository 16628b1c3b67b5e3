package img

import (
	"github.com/pkg/errors"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Types of image transformations
type TransType int

const NoTrans TransType = 0

const (
	RandomCrop TransType = 1 << iota
	HorizFlip
)

// Default augmentation: enlarge, random crop and random horizontal flip
var AugmentTrans = RandomCrop | HorizFlip

var transTypeNames = map[TransType]string{
	RandomCrop: "RandomCrop",
	HorizFlip:  "HorizFlip",
}

func (t TransType) String() string {
	if t == NoTrans {
		return "None"
	}
	s := []string{}
	for key, name := range transTypeNames {
		if t&key != 0 {
			s = append(s, name)
		}
	}
	sort.Strings(s)
	return strings.Join(s, " ")
}

// Transformer applies a random augmentation to images of any size, producing size x size output.
// Each worker thread has its own random number source.
type Transformer struct {
	Trans    TransType
	Size     int
	AugSize  int
	Channels int
	rng      []*rand.Rand
}

// Create a new transformer object. threads sets the number of independent random sources.
func NewTransformer(size, augSize, channels int, trans TransType, threads int, rng *rand.Rand) *Transformer {
	if threads < 1 {
		threads = 1
	}
	if augSize < size {
		augSize = size
	}
	t := &Transformer{Trans: trans, Size: size, AugSize: augSize, Channels: channels}
	for i := 0; i < threads; i++ {
		t.rng = append(t.rng, rand.New(rand.NewSource(rng.Int63())))
	}
	return t
}

// Threads returns the number of random sources
func (t *Transformer) Threads() int { return len(t.rng) }

// Transform a batch of images in parallel
func (t *Transformer) TransformBatch(src []*Image, dst []*Image) ([]*Image, error) {
	if dst == nil {
		dst = make([]*Image, len(src))
	}
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	queue := make(chan int, len(t.rng))
	for thread := range t.rng {
		wg.Add(1)
		go func(thread int) {
			for i := range queue {
				var err error
				if dst[i], err = t.Transform(src[i], thread); err != nil {
					once.Do(func() { firstErr = err })
				}
			}
			wg.Done()
		}(thread)
	}
	for i := range src {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return dst, firstErr
}

// Resize to AugSize, take a random Size square crop and flip horizontally with 50% probability.
// Without RandomCrop the image is resized directly to Size.
func (t *Transformer) Transform(img *Image, thread int) (*Image, error) {
	if img.Channels != t.Channels {
		return nil, errors.Errorf("transform: got %d channels expected %d", img.Channels, t.Channels)
	}
	rng := t.rng[thread]
	if t.Trans&RandomCrop != 0 {
		img = Resize(img, t.AugSize, t.AugSize)
		x0 := rng.Intn(t.AugSize - t.Size + 1)
		y0 := rng.Intn(t.AugSize - t.Size + 1)
		img = Crop(img, x0, y0, t.Size, t.Size)
	} else {
		img = Resize(img, t.Size, t.Size)
	}
	if t.Trans&HorizFlip != 0 && rng.Float64() < 0.5 {
		img = FlipHoriz(img)
	}
	return img, nil
}

// Crop returns the width x height region with top left corner at x0, y0. Areas outside the source are zero.
func Crop(src *Image, x0, y0, width, height int) *Image {
	dst := New(width, height, src.Channels)
	for y := 0; y < height; y++ {
		sy := y + y0
		if sy < 0 || sy >= src.Height {
			continue
		}
		xs, xe := max(0, -x0), min(width, src.Width-x0)
		if xs >= xe {
			continue
		}
		copy(dst.Row(y)[xs*src.Channels:xe*src.Channels], src.Row(sy)[(xs+x0)*src.Channels:])
	}
	return dst
}

// ResizeWithCropOrPad centrally crops or zero pads each axis independently to the target size.
func ResizeWithCropOrPad(src *Image, height, width int) *Image {
	x0 := (src.Width - width) / 2
	if src.Width < width {
		x0 = -((width - src.Width) / 2)
	}
	y0 := (src.Height - height) / 2
	if src.Height < height {
		y0 = -((height - src.Height) / 2)
	}
	return Crop(src, x0, y0, width, height)
}

// FlipHoriz mirrors the image left to right
func FlipHoriz(src *Image) *Image {
	dst := NewLike(src)
	c := src.Channels
	for y := 0; y < src.Height; y++ {
		in, out := src.Row(y), dst.Row(y)
		for x := 0; x < src.Width; x++ {
			copy(out[x*c:(x+1)*c], in[(src.Width-1-x)*c:(src.Width-x)*c])
		}
	}
	return dst
}

// Resize scales the image using bilinear interpolation with half pixel centers.
func Resize(src *Image, height, width int) *Image {
	if src.Height == height && src.Width == width {
		return src.Clone()
	}
	dst := New(width, height, src.Channels)
	xs := interpolation(src.Width, width)
	ys := interpolation(src.Height, height)
	c := src.Channels
	for y, wy := range ys {
		top, bottom, out := src.Row(wy.lower), src.Row(wy.upper), dst.Row(y)
		for x, wx := range xs {
			l, r := wx.lower*c, wx.upper*c
			for ch := 0; ch < c; ch++ {
				t := top[l+ch] + (top[r+ch]-top[l+ch])*wx.lerp
				b := bottom[l+ch] + (bottom[r+ch]-bottom[l+ch])*wx.lerp
				out[x*c+ch] = t + (b-t)*wy.lerp
			}
		}
	}
	return dst
}

type weight struct {
	lower, upper int
	lerp         float32
}

func interpolation(in, out int) []weight {
	scale := float64(in) / float64(out)
	w := make([]weight, out)
	for i := range w {
		pos := (float64(i)+0.5)*scale - 0.5
		lo := math.Floor(pos)
		w[i].lower = max(int(lo), 0)
		w[i].upper = min(int(math.Ceil(pos)), in-1)
		w[i].lerp = float32(pos - lo)
	}
	return w
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
