// The dataloader command converts an image dataset to a record file, reads augmented batches from it
// or serves a web view of the batches.
package main

import (
	"context"
	"github.com/alexflint/go-arg"
	"github.com/nacei/TF2GAN/data"
	"github.com/nacei/TF2GAN/img"
	"github.com/nacei/TF2GAN/logutil"
	"github.com/nacei/TF2GAN/stats"
	"github.com/nacei/TF2GAN/util"
	"github.com/nacei/TF2GAN/web"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"
)

type args struct {
	DataDir   string `arg:"--data-dir" help:"directory holding the image dir, label file and record file"`
	Dataset   string `arg:"--dataset" help:"dataset name"`
	Phase     string `arg:"--phase" help:"tfrecord, train or view"`
	ImgSize   int    `arg:"--img-size" help:"output image size"`
	Channels  int    `arg:"--channels" help:"output channel count"`
	BatchSize int    `arg:"--batch-size" help:"images per batch"`
	Workers   int    `arg:"--workers" help:"parallel decode workers"`
	Prefetch  int    `arg:"--prefetch" help:"batches to read ahead"`
	Seed      int64  `arg:"--seed" help:"random seed, 0 to seed from the clock"`
	Config    string `arg:"--config" help:"json config file, command line flags override settings in it"`
	Batches   int    `arg:"--batches" help:"number of batches to read in the train phase"`
	Out       string `arg:"--out" help:"output directory for the montage and stats plot"`
	Addr      string `arg:"--addr" help:"web server listen address"`
	User      string `arg:"--user" help:"web server login name, no login if not set"`
	Password  string `arg:"--password" help:"web server password"`
	Progress  bool   `arg:"--progress" help:"show a progress bar while converting"`
	Debug     bool   `arg:"--debug" help:"enable debug logging"`
}

func (args) Description() string {
	return "dataset converter and batch loader"
}

var log *zap.SugaredLogger

func checkErr(err error) {
	if err != nil {
		log.Error(err)
		log.Sync()
		os.Exit(1)
	}
}

func main() {
	opts := args{
		Dataset: "celeba",
		Phase:   data.PhaseTrain,
		Batches: 100,
		Out:     "output",
		Addr:    ":8080",
	}
	arg.MustParse(&opts)
	log = logutil.New(opts.Debug)
	defer log.Sync()

	conf, err := loadConfig(opts)
	checkErr(err)
	checkErr(conf.Validate())
	log.Debug(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch conf.Phase {
	case data.PhaseRecord:
		checkErr(convert(ctx, conf, opts))
	case data.PhaseTrain:
		checkErr(train(ctx, conf, opts))
	case data.PhaseView:
		checkErr(view(ctx, conf, opts))
	}
}

// defaults from the dataset table, then the config file, then any flags which were set
func loadConfig(opts args) (data.Config, error) {
	conf := data.DefaultConfig(opts.Dataset)
	if opts.Config != "" {
		var err error
		if conf, err = data.LoadConfig(opts.Config, conf); err != nil {
			return conf, err
		}
	}
	if opts.DataDir != "" {
		conf.DataDir = opts.DataDir
	}
	conf.Phase = opts.Phase
	setInt(&conf.ImgSize, opts.ImgSize)
	setInt(&conf.Channels, opts.Channels)
	setInt(&conf.BatchSize, opts.BatchSize)
	setInt(&conf.Workers, opts.Workers)
	setInt(&conf.Prefetch, opts.Prefetch)
	if opts.Seed != 0 {
		conf.Seed = opts.Seed
	}
	return conf, nil
}

func setInt(field *int, val int) {
	if val != 0 {
		*field = val
	}
}

func convert(ctx context.Context, conf data.Config, opts args) error {
	conv, err := data.NewConverter(conf, data.WithLogger(log), data.WithProgress(opts.Progress))
	if err != nil {
		return err
	}
	st, err := conv.Convert(ctx)
	if err != nil {
		return err
	}
	log.Infof("attribute counts: %s", st.Counts)
	if err := util.CheckDir(opts.Out); err != nil {
		return err
	}
	path := filepath.Join(opts.Out, conf.Dataset+"_attrs.svg")
	if err := savePlot(path, st.Counts); err != nil {
		return err
	}
	log.Infow("saved attribute plot", "path", path)
	return nil
}

func savePlot(path string, counts *stats.Counts) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	height := vg.Length(len(counts.Names)+2) * 0.4 * vg.Inch
	if err := counts.WritePlot(f, 6*vg.Inch, height, "svg"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pull batches from the loader and report throughput and pixel statistics
func train(ctx context.Context, conf data.Config, opts args) error {
	loader, err := data.NewLoader(ctx, conf, data.WithLogger(log))
	if err != nil {
		return err
	}
	defer loader.Close()
	var rate stats.EMA
	var pixels stats.Average
	start := time.Now()
	last := start
	for i := 0; i < opts.Batches; i++ {
		b, err := loader.Next()
		if err != nil {
			return err
		}
		now := time.Now()
		rate = rate.Add(float64(b.Len())/now.Sub(last).Seconds(), 10)
		last = now
		mean, std := img.GetStats(b.Images...)
		for ch := range mean {
			pixels.Add(float64(mean[ch]))
		}
		if i == 0 {
			if err := saveMontage(opts.Out, b); err != nil {
				return err
			}
			log.Infow("first batch", "size", b.Len(), "shape", b.Images[0].Shape(), "mean", mean, "std", std)
		}
		if (i+1)%10 == 0 || i+1 == opts.Batches {
			log.Infow("loaded batches", "batches", i+1, "epoch", loader.Epoch(), "images/sec", math.Round(float64(rate)))
		}
	}
	elapsed := time.Since(start)
	log.Infow("done", "batches", opts.Batches, "elapsed", elapsed.Round(time.Millisecond), "channel mean", pixels.String())
	return nil
}

func saveMontage(dir string, b *data.Batch) error {
	if err := util.CheckDir(dir); err != nil {
		return err
	}
	images := make([]*img.Image, b.Len())
	for i, m := range b.Images {
		images[i] = util.ImDenorm(m)
	}
	m, err := util.Montage(images)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "montage.png")
	if err := util.ImSave(path, m); err != nil {
		return err
	}
	log.Infow("saved montage", "path", path, "shape", m.Shape())
	return nil
}

func view(ctx context.Context, conf data.Config, opts args) error {
	loader, err := data.NewLoader(ctx, conf, data.WithLogger(log))
	if err != nil {
		return err
	}
	defer loader.Close()
	viewer, err := web.NewViewer(loader, conf.Attrs, 2, log)
	if err != nil {
		return err
	}
	var auth *web.AuthMiddleware
	if opts.User != "" {
		mw := web.NewAuthMiddleware(opts.User, opts.Password, log)
		auth = &mw
	}
	r, err := viewer.Router(auth)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: opts.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	log.Infof("serving web page at http://localhost%s", opts.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
