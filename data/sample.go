package data

import (
	"github.com/nacei/TF2GAN/img"
	"github.com/nacei/TF2GAN/record"
	"github.com/pkg/errors"
	"math/rand"
)

// Feature names used in each record
const (
	ImageKey = "img"
	LabelKey = "label"
)

// EncodeSample serialises the raw image file contents and label vector as a record payload.
func EncodeSample(image []byte, label []float32) []byte {
	if label == nil {
		label = []float32{}
	}
	ex := record.Example{
		ImageKey: {Bytes: [][]byte{image}},
		LabelKey: {Floats: label},
	}
	return ex.Marshal()
}

// DecodeSample is the inverse of EncodeSample, the label vector must have labelSize entries.
// The returned image bytes alias the payload.
func DecodeSample(payload []byte, labelSize int) (image []byte, label []float32, err error) {
	ex, err := record.UnmarshalExample(payload)
	if err != nil {
		return nil, nil, err
	}
	feat, ok := ex[ImageKey]
	if !ok || len(feat.Bytes) != 1 {
		return nil, nil, errors.Errorf("record has no %q feature", ImageKey)
	}
	image = feat.Bytes[0]
	label = ex[LabelKey].Floats
	if len(label) != labelSize {
		return nil, nil, &LabelShapeError{Got: len(label), Want: labelSize}
	}
	return image, label, nil
}

// Parser converts record payloads to augmented image arrays.
type Parser struct {
	conf  Config
	trans *img.Transformer
}

// NewParser creates a parser with threads independent random sources seeded from rng.
func NewParser(conf Config, threads int, rng *rand.Rand) *Parser {
	return &Parser{
		conf:  conf,
		trans: img.NewTransformer(conf.ImgSize, conf.AugSize(), conf.Channels, img.AugmentTrans, threads, rng),
	}
}

// Parse decodes one record and applies the full image pipeline. Each thread must be used by one goroutine at a time.
func (p *Parser) Parse(payload []byte, thread int) (*img.Image, []float32, error) {
	data, label, err := DecodeSample(payload, p.conf.LabelSize())
	if err != nil {
		return nil, nil, err
	}
	m, err := p.LoadImage(data)
	if err != nil {
		return nil, nil, err
	}
	m, err = p.Augment(m, thread)
	return m, label, err
}

// LoadImage decodes a JPEG or PNG image, crops or pads it to ShorterSize and normalises values to -1 to 1.
func (p *Parser) LoadImage(data []byte) (*img.Image, error) {
	m, err := img.Decode(data, p.conf.Channels)
	if err != nil {
		return nil, err
	}
	m = img.ResizeWithCropOrPad(m, p.conf.ShorterSize, p.conf.ShorterSize)
	return img.Normalise(m), nil
}

// Augment resizes to AugSize, takes a random ImgSize crop and randomly flips horizontally.
func (p *Parser) Augment(m *img.Image, thread int) (*img.Image, error) {
	return p.trans.Transform(m, thread)
}
