package data

import (
	"context"
	"github.com/dustin/go-humanize"
	"github.com/nacei/TF2GAN/record"
	"github.com/nacei/TF2GAN/stats"
	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"os"
	"path/filepath"
	"time"
)

// Converter writes a labelled image directory to a record file.
type Converter struct {
	conf Config
	comp record.Compression
	options
}

// Summary of a conversion run
type ConvertStats struct {
	Path    string
	Records int
	Bytes   int64
	Counts  *stats.Counts
	Elapsed time.Duration
}

func NewConverter(conf Config, opts ...Option) (*Converter, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	comp, err := conf.Codec()
	if err != nil {
		return nil, err
	}
	return &Converter{conf: conf, comp: comp, options: getOptions(opts)}, nil
}

// Convert lists the image directory, looks up the label for every image and writes one record per image
// to the record file in listing order. No file is written if any image is missing a label.
func (c *Converter) Convert(ctx context.Context) (*ConvertStats, error) {
	paths, err := ListImages(c.conf.ImageDir())
	if err != nil {
		return nil, err
	}
	labels, err := ReadLabelFile(c.conf.LabelFile(), c.conf.Attrs)
	if err != nil {
		return nil, err
	}
	c.log.Infow("loaded labels", "images", len(paths), "labels", len(labels), "attrs", len(c.conf.Attrs))
	vecs := make([][]float32, len(paths))
	for i, path := range paths {
		if vecs[i], err = labels.Lookup(path); err != nil {
			return nil, err
		}
	}
	return c.Write(ctx, c.conf.RecordFile(), paths, vecs)
}

// Write encodes each image file with its label to a new record file at path.
// The file is written to a temporary name and renamed once complete.
func (c *Converter) Write(ctx context.Context, path string, paths []string, labels [][]float32) (st *ConvertStats, err error) {
	if len(paths) != len(labels) {
		return nil, errors.Errorf("got %d images and %d labels", len(paths), len(labels))
	}
	start := time.Now()
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "error creating record file")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	w := record.NewWriter(f, c.comp)
	counts := stats.NewCounts(c.conf.Attrs)

	each := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(paths[i])
		if err != nil {
			return errors.Wrap(err, "error reading image")
		}
		if err := w.Write(EncodeSample(data, labels[i])); err != nil {
			return errors.Wrapf(err, "%s", paths[i])
		}
		counts.Add(labels[i])
		c.log.Debugw("wrote record", "image", paths[i], "bytes", len(data))
		return nil
	}
	if c.progress {
		var loopErr error
		err = tqdm.With(iterators.Interval(0, len(paths)), "converting", func(v interface{}) (brk bool) {
			loopErr = each(v.(int))
			return loopErr != nil
		})
		if loopErr != nil {
			err = loopErr
		}
	} else {
		for i := range paths {
			if err = each(i); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if err = w.Flush(); err != nil {
		return nil, errors.Wrap(err, "error writing record file")
	}
	if err = f.Chmod(0644); err != nil {
		return nil, errors.Wrap(err, "error setting record file mode")
	}
	if err = f.Close(); err != nil {
		return nil, errors.Wrap(err, "error closing record file")
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return nil, errors.Wrap(err, "error renaming record file")
	}
	st = &ConvertStats{Path: path, Records: w.Count(), Bytes: w.Bytes(), Counts: counts, Elapsed: time.Since(start)}
	c.log.Infow("wrote record file", "path", path, "records", st.Records, "size", humanize.Bytes(uint64(st.Bytes)),
		"compression", c.comp, "elapsed", st.Elapsed.Round(time.Millisecond))
	return st, nil
}
