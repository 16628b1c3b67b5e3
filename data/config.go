// Package data converts labelled image directories to record files and builds augmented training batches from them.
package data

import (
	"encoding/json"
	"fmt"
	"github.com/klauspost/cpuid/v2"
	"github.com/nacei/TF2GAN/record"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

const (
	PhaseRecord = "tfrecord"
	PhaseTrain  = "train"
	PhaseView   = "view"
)

const (
	maxShuffleSize  = 10000
	defaultWorkers  = 8
	defaultPrefetch = 100
)

// Fixed settings for a known dataset
type DatasetInfo struct {
	ShorterSize int
	Attrs       []string
}

// Datasets lists the named datasets with builtin settings
var Datasets = map[string]DatasetInfo{
	"celeba": {
		ShorterSize: 178,
		Attrs: []string{"Black_Hair", "Blond_Hair", "Brown_Hair", "Male", "Young", "Eyeglasses",
			"Mouth_Slightly_Open", "Pale_Skin", "Rosy_Cheeks", "Smiling", "Heavy_Makeup"},
	},
}

// Dataset configuration settings. The config should not be modified once a Converter or Loader has been created.
type Config struct {
	DataDir     string
	Dataset     string
	Phase       string
	ImgSize     int
	Channels    int
	BatchSize   int
	ShorterSize int
	Attrs       []string
	Workers     int
	Prefetch    int
	ShuffleSize int
	Compression string
	Seed        int64
}

// DefaultConfig returns the config for a dataset with settings from the Datasets table if it is known.
func DefaultConfig(dataset string) Config {
	c := Config{
		DataDir:     "dataset",
		Dataset:     dataset,
		Phase:       PhaseTrain,
		ImgSize:     128,
		Channels:    3,
		BatchSize:   32,
		Workers:     DefaultWorkers(),
		Prefetch:    defaultPrefetch,
		ShuffleSize: maxShuffleSize,
	}
	if info, ok := Datasets[dataset]; ok {
		c.ShorterSize = info.ShorterSize
		c.Attrs = append([]string{}, info.Attrs...)
	}
	return c
}

// DefaultWorkers is the number of parallel decode workers, 8 limited to the number of logical cores.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 && n < defaultWorkers {
		return n
	}
	return defaultWorkers
}

// AugSize is the size images are enlarged to before taking a random crop
func (c Config) AugSize() int {
	return int(float64(c.ImgSize) * 1.1)
}

// LabelSize is the length of each label vector
func (c Config) LabelSize() int {
	return len(c.Attrs)
}

// ImageDir is the directory holding the source images
func (c Config) ImageDir() string {
	return filepath.Join(c.DataDir, c.Dataset)
}

// LabelFile is the path to the attribute list
func (c Config) LabelFile() string {
	return filepath.Join(c.DataDir, "list_attr_"+c.Dataset+".txt")
}

// RecordFile is the path of the encoded record file
func (c Config) RecordFile() string {
	return filepath.Join(c.DataDir, c.Dataset+".tfrec")
}

// Codec returns the record compression type
func (c Config) Codec() (record.Compression, error) {
	return record.ParseCompression(c.Compression)
}

// Validate checks the settings are consistent
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("dataset name is not set")
	case len(c.Attrs) == 0:
		return errors.Errorf("no attributes defined for dataset %q", c.Dataset)
	case c.ImgSize <= 0:
		return errors.Errorf("invalid image size %d", c.ImgSize)
	case c.ShorterSize <= 0:
		return errors.Errorf("invalid shorter side size %d for dataset %q", c.ShorterSize, c.Dataset)
	case c.Channels < 1 || c.Channels > 4:
		return errors.Errorf("invalid channel count %d", c.Channels)
	case c.BatchSize <= 0:
		return errors.Errorf("invalid batch size %d", c.BatchSize)
	case c.Workers <= 0:
		return errors.Errorf("invalid worker count %d", c.Workers)
	case c.Prefetch < 0:
		return errors.Errorf("invalid prefetch size %d", c.Prefetch)
	case c.ShuffleSize < 0:
		return errors.Errorf("invalid shuffle buffer size %d", c.ShuffleSize)
	}
	switch c.Phase {
	case PhaseRecord, PhaseTrain, PhaseView:
	default:
		return errors.Errorf("invalid phase %q", c.Phase)
	}
	_, err := c.Codec()
	return err
}

// Load config from json file, fields not present in the file are taken from base
func LoadConfig(path string, base Config) (c Config, err error) {
	c = base
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return c, errors.Wrap(err, "error loading config")
	}
	defer f.Close()
	if err = json.NewDecoder(f).Decode(&c); err != nil {
		return c, errors.Wrapf(err, "error decoding config %s", path)
	}
	return c, nil
}

// Save config to JSON file
func (c Config) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "error saving config")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(c); err != nil {
		f.Close()
		return errors.Wrap(err, "error encoding config")
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c Config) String() string {
	st := reflect.TypeOf(c)
	val := reflect.ValueOf(c)
	str := []string{"== Config =="}
	for i := 0; i < st.NumField(); i++ {
		str = append(str, fmt.Sprintf("%-12s: %v", st.Field(i).Name, val.Field(i).Interface()))
	}
	str = append(str, fmt.Sprintf("%-12s: %v", "AugSize", c.AugSize()))
	return strings.Join(str, "\n")
}
