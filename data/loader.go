package data

import (
	"context"
	"github.com/nacei/TF2GAN/img"
	"github.com/nacei/TF2GAN/record"
	"github.com/pkg/errors"
	"io"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Batch of augmented images with their label vectors
type Batch struct {
	Images []*img.Image
	Labels [][]float32
}

// Len returns the number of samples in the batch
func (b *Batch) Len() int { return len(b.Images) }

// X returns the image data as a flat array with shape batch, height, width, channels
func (b *Batch) X() []float32 {
	if len(b.Images) == 0 {
		return nil
	}
	n := len(b.Images[0].Pix)
	x := make([]float32, 0, n*len(b.Images))
	for _, m := range b.Images {
		x = append(x, m.Pix...)
	}
	return x
}

// Y returns the labels as a flat array with shape batch, attributes
func (b *Batch) Y() []float32 {
	var y []float32
	for _, label := range b.Labels {
		y = append(y, label...)
	}
	return y
}

type sample struct {
	image *img.Image
	label []float32
}

// Loader produces an endless sequence of shuffled and augmented batches from a record file.
//
// Records are read in order and passed through a shuffle buffer of min(size, ShuffleSize) entries,
// each pass over the file is fully drained before the next starts. Workers goroutines parse and
// augment the records, which are then grouped in to batches with up to Prefetch batches read ahead.
type Loader struct {
	conf    Config
	comp    record.Compression
	size    int
	bufSize int
	parser  *Parser
	rng     *rand.Rand
	batches chan *Batch
	ctx     context.Context
	cancel  context.CancelFunc
	epoch   int64
	mu      sync.Mutex
	err     error
	wg      sync.WaitGroup
	options
}

// NewLoader opens the record file given by conf and starts the background pipeline.
// Cancelling ctx or calling Close stops the pipeline.
func NewLoader(ctx context.Context, conf Config, opts ...Option) (*Loader, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	comp, err := conf.Codec()
	if err != nil {
		return nil, err
	}
	path := conf.RecordFile()
	f, err := os.Open(path)
	if err != nil {
		return nil, &MissingRecordFileError{Path: path, Err: err}
	}
	size, err := record.Count(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	if size == 0 {
		return nil, errors.Errorf("record file %s is empty", path)
	}
	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	l := &Loader{
		conf:    conf,
		comp:    comp,
		size:    size,
		bufSize: size,
		parser:  NewParser(conf, conf.Workers, rng),
		rng:     rng,
		batches: make(chan *Batch, conf.Prefetch),
		options: getOptions(opts),
	}
	if l.bufSize > conf.ShuffleSize {
		l.bufSize = conf.ShuffleSize
	}
	if l.bufSize < 1 {
		l.bufSize = 1
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.log.Infow("loading records", "path", path, "records", size, "shuffle", l.bufSize,
		"workers", conf.Workers, "batch", conf.BatchSize, "prefetch", conf.Prefetch)
	l.start()
	return l, nil
}

// Size returns the number of records in the file
func (l *Loader) Size() int { return l.size }

// Epoch returns the number of complete passes read from the record file
func (l *Loader) Epoch() int { return int(atomic.LoadInt64(&l.epoch)) }

// Config returns the dataset configuration
func (l *Loader) Config() Config { return l.conf }

// Next blocks until the next batch is ready. Once an error has occurred it is returned from every call.
func (l *Loader) Next() (*Batch, error) {
	if err := l.Err(); err != nil {
		return nil, err
	}
	select {
	case b := <-l.batches:
		return b, nil
	case <-l.ctx.Done():
		return nil, l.Err()
	}
}

// Err returns the first error which stopped the pipeline, or nil if it is still running.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return l.ctx.Err()
}

// Close stops the pipeline and waits for the background goroutines to exit.
func (l *Loader) Close() error {
	l.setErr(ErrClosed)
	l.cancel()
	l.wg.Wait()
	return nil
}

func (l *Loader) setErr(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false
	}
	l.err = err
	return true
}

func (l *Loader) fail(err error) {
	if l.setErr(err) {
		l.log.Errorw("loader stopped", "error", err)
	}
	l.cancel()
}

func (l *Loader) start() {
	records := make(chan []byte, l.conf.Workers)
	samples := make(chan sample, l.conf.Workers)
	l.wg.Add(l.conf.Workers + 2)
	go l.readLoop(records)
	for thread := 0; thread < l.conf.Workers; thread++ {
		go l.parseLoop(thread, records, samples)
	}
	go l.batchLoop(samples)
}

// read the file repeatedly, sending records via the shuffle buffer
func (l *Loader) readLoop(out chan<- []byte) {
	defer l.wg.Done()
	buf := newShuffleBuffer(l.bufSize, l.rng)
	send := func(rec []byte) bool {
		select {
		case out <- rec:
			return true
		case <-l.ctx.Done():
			return false
		}
	}
	for {
		n, err := l.readPass(buf, send)
		if err != nil {
			l.fail(err)
			return
		}
		if n < 0 {
			return
		}
		epoch := atomic.AddInt64(&l.epoch, 1)
		l.log.Debugw("end of epoch", "epoch", epoch, "records", n)
	}
}

// readPass returns the number of records read, or -1 if the loader was stopped.
func (l *Loader) readPass(buf *shuffleBuffer, send func([]byte) bool) (int, error) {
	path := l.conf.RecordFile()
	f, err := os.Open(path)
	if err != nil {
		return 0, &MissingRecordFileError{Path: path, Err: err}
	}
	defer f.Close()
	r := record.NewReader(f, l.comp)
	n := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "error reading %s", path)
		}
		n++
		if out, ok := buf.Push(append([]byte(nil), rec...)); ok && !send(out) {
			return -1, nil
		}
	}
	if n == 0 {
		return 0, errors.Errorf("no records read from %s", path)
	}
	for {
		out, ok := buf.Pop()
		if !ok {
			return n, nil
		}
		if !send(out) {
			return -1, nil
		}
	}
}

func (l *Loader) parseLoop(thread int, in <-chan []byte, out chan<- sample) {
	defer l.wg.Done()
	for {
		select {
		case rec := <-in:
			m, label, err := l.parser.Parse(rec, thread)
			if err != nil {
				l.fail(err)
				return
			}
			select {
			case out <- sample{image: m, label: label}:
			case <-l.ctx.Done():
				return
			}
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Loader) batchLoop(in <-chan sample) {
	defer l.wg.Done()
	for {
		b := &Batch{
			Images: make([]*img.Image, 0, l.conf.BatchSize),
			Labels: make([][]float32, 0, l.conf.BatchSize),
		}
		for b.Len() < l.conf.BatchSize {
			select {
			case s := <-in:
				b.Images = append(b.Images, s.image)
				b.Labels = append(b.Labels, s.label)
			case <-l.ctx.Done():
				return
			}
		}
		select {
		case l.batches <- b:
		case <-l.ctx.Done():
			return
		}
	}
}
