// Package web serves a browser view of the augmented training batches.
package web

import (
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/nacei/TF2GAN/data"
	"github.com/nacei/TF2GAN/img"
	"github.com/nacei/TF2GAN/stats"
	"github.com/nacei/TF2GAN/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
	"html/template"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Source of batches to display, normally a *data.Loader
type Source interface {
	Next() (*data.Batch, error)
}

// Viewer holds the most recent batch pulled from the source along with attribute counts over all batches seen.
type Viewer struct {
	sync.Mutex
	src     Source
	attrs   []string
	scale   int
	seq     int
	batch   *data.Batch
	images  []*img.Image
	montage *img.Image
	counts  *stats.Counts
	conns   map[*websocket.Conn]bool
	log     *zap.SugaredLogger
}

// NewViewer loads the first batch from src. Images are enlarged by scale when they are served.
func NewViewer(src Source, attrs []string, scale int, log *zap.SugaredLogger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	v := &Viewer{
		src:    src,
		attrs:  attrs,
		scale:  scale,
		counts: stats.NewCounts(attrs),
		conns:  make(map[*websocket.Conn]bool),
		log:    log,
	}
	v.Lock()
	defer v.Unlock()
	return v, v.next()
}

// Next pulls a new batch and notifies connected clients
func (v *Viewer) Next() error {
	v.Lock()
	defer v.Unlock()
	return v.next()
}

func (v *Viewer) next() error {
	b, err := v.src.Next()
	if err != nil {
		return errors.Wrap(err, "error loading batch")
	}
	images := make([]*img.Image, b.Len())
	for i, m := range b.Images {
		images[i] = util.ImDenorm(m)
	}
	montage, err := util.Montage(images)
	if err != nil {
		return err
	}
	for _, label := range b.Labels {
		v.counts.Add(label)
	}
	v.batch, v.images, v.montage = b, images, montage
	v.seq++
	v.log.Debugw("viewer batch", "seq", v.seq, "size", b.Len())
	v.notify()
	return nil
}

// send the batch sequence number to each websocket client
func (v *Viewer) notify() {
	msg := []byte(strconv.Itoa(v.seq))
	for conn := range v.conns {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			v.log.Warnw("error writing to websocket", "error", err)
			delete(v.conns, conn)
			conn.Close()
		}
	}
}

// Seq returns the sequence number of the current batch, starting from 1
func (v *Viewer) Seq() int {
	v.Lock()
	defer v.Unlock()
	return v.seq
}

// Router returns the viewer http handlers. If auth is not nil all requests must be authenticated.
func (v *Viewer) Router(auth *AuthMiddleware) (*mux.Router, error) {
	t, err := NewTemplates("dataloader", v.log)
	if err != nil {
		return nil, err
	}
	t.AddMenuItem(Link{Name: "batch", Url: "/batch"})
	t.AddMenuItem(Link{Name: "stats", Url: "/stats"})
	batchPage := &BatchPage{Templates: t.Clone().Select("/batch"), v: v}
	batchPage.AddOption(Link{Name: "next", Url: "/batch/next"})
	statsPage := &StatsPage{Templates: t.Clone().Select("/stats"), v: v}

	r := mux.NewRouter()
	if auth != nil {
		r.Use(auth.Middleware)
	}
	r.Handle("/", http.RedirectHandler("/batch", http.StatusFound))
	r.HandleFunc("/batch", batchPage.Base())
	r.HandleFunc("/batch/next", batchPage.Next())
	r.HandleFunc("/batch/montage.png", batchPage.Montage())
	r.HandleFunc("/batch/{index:[0-9]+}.png", batchPage.Image())
	r.HandleFunc("/stats", statsPage.Base())
	r.HandleFunc("/stats.svg", statsPage.Plot())
	r.HandleFunc("/ws", v.Websocket())
	return r, nil
}

// Handler function for websocket connection
func (v *Viewer) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			v.log.Warnw("websocket upgrade failed", "error", err)
			return
		}
		v.Lock()
		v.conns[conn] = true
		err = conn.WriteMessage(websocket.TextMessage, []byte(strconv.Itoa(v.seq)))
		v.Unlock()
		if err != nil {
			v.drop(conn)
			return
		}
		// read until the client goes away
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					v.drop(conn)
					return
				}
			}
		}()
	}
}

func (v *Viewer) drop(conn *websocket.Conn) {
	v.Lock()
	delete(v.conns, conn)
	v.Unlock()
	conn.Close()
}

type BatchPage struct {
	*Templates
	v *Viewer
}

func (p *BatchPage) Heading() template.HTML {
	return template.HTML(`batch <span id="seq">` + strconv.Itoa(p.v.seq) + `</span>`)
}

func (p *BatchPage) Seq() int { return p.v.seq }

// Labels lists the set attributes for each image in the batch
func (p *BatchPage) Labels() []string {
	return labelNames(p.v.attrs, p.v.batch.Labels)
}

// Handler function for the batch page
func (p *BatchPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.v.Lock()
		defer p.v.Unlock()
		p.Exec(w, "batch", p)
	}
}

// Load the next batch and return to the batch page
func (p *BatchPage) Next() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.v.Next(); err != nil {
			p.logError(w, err)
			return
		}
		http.Redirect(w, r, "/batch", http.StatusFound)
	}
}

// Handler function for the montage of the current batch
func (p *BatchPage) Montage() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.v.Lock()
		defer p.v.Unlock()
		w.Header().Set("Content-type", "image/png")
		png.Encode(w, util.Scale(p.v.montage, p.v.scale))
	}
}

// Handler function for a single image from the current batch
func (p *BatchPage) Image() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.v.Lock()
		defer p.v.Unlock()
		index, _ := strconv.Atoi(mux.Vars(r)["index"])
		if index < 0 || index >= len(p.v.images) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-type", "image/png")
		png.Encode(w, util.Scale(p.v.images[index], p.v.scale))
	}
}

type StatsPage struct {
	*Templates
	v *Viewer
}

func (p *StatsPage) Heading() template.HTML {
	return template.HTML(`attribute frequency after batch <span id="seq">` + strconv.Itoa(p.v.seq) + `</span>`)
}

func (p *StatsPage) Seq() int { return p.v.seq }

func (p *StatsPage) Counts() string { return p.v.counts.String() }

// Handler function for the stats page
func (p *StatsPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.v.Lock()
		defer p.v.Unlock()
		p.Exec(w, "stats", p)
	}
}

// Handler function for the attribute bar chart
func (p *StatsPage) Plot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.v.Lock()
		defer p.v.Unlock()
		height := vg.Length(len(p.v.attrs)+2) * 0.4 * vg.Inch
		w.Header().Set("Content-type", "image/svg+xml")
		if err := p.v.counts.WritePlot(w, 6*vg.Inch, height, "svg"); err != nil {
			p.logError(w, err)
		}
	}
}

func labelNames(attrs []string, labels [][]float32) []string {
	names := make([]string, len(labels))
	for i, label := range labels {
		var set []string
		for j, val := range label {
			if val > 0.5 && j < len(attrs) {
				set = append(set, attrs[j])
			}
		}
		if len(set) == 0 {
			names[i] = "-"
		} else {
			names[i] = strings.Join(set, ", ")
		}
	}
	return names
}
