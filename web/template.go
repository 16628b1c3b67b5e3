package web

import (
	"fmt"
	"go.uber.org/zap"
	"html/template"
	"net/http"
	"strings"
)

const pageTemplates = `
{{define "header"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
.menu { background: #333; padding: 6px; }
.menu a { color: #ddd; padding: 4px 10px; text-decoration: none; }
.menu a.selected { color: #fff; font-weight: bold; }
.content { padding: 10px; }
table.labels td { padding: 2px 8px; font-size: small; }
</style>
</head>
<body>
<div class="menu">{{range .Menu}}<a href="{{.Url}}"{{if .Selected}} class="selected"{{end}}>{{.Name}}</a>{{end}}
{{range .Options}}<a href="{{.Url}}">{{.Name}}</a>{{end}}</div>
<div class="content">
<h3>{{.Heading}}</h3>
{{end}}

{{define "footer"}}</div>
<script>
var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function(ev) {
	var el = document.getElementById("seq");
	if (el && el.textContent !== ev.data) { location.reload(); }
};
</script>
</body>
</html>
{{end}}

{{define "batch"}}{{template "header" .}}
<img src="/batch/montage.png?seq={{.Seq}}" alt="montage">
<table class="labels">
{{range $i, $label := .Labels}}<tr><td><a href="/batch/{{$i}}.png?seq={{$.Seq}}">{{$i}}</a></td><td>{{$label}}</td></tr>
{{end}}</table>
{{template "footer" .}}{{end}}

{{define "stats"}}{{template "header" .}}
<pre>{{.Counts}}</pre>
<img src="/stats.svg?seq={{.Seq}}" alt="attribute frequency">
{{template "footer" .}}{{end}}
`

// Template and main menu definition
type Templates struct {
	*template.Template
	Title   string
	Menu    []Link
	Options []Link
	log     *zap.SugaredLogger
}

type Link struct {
	Url      string
	Name     string
	Selected bool
}

// Parse page templates and initialise main menu
func NewTemplates(title string, log *zap.SugaredLogger) (*Templates, error) {
	var err error
	t := &Templates{Title: title, Menu: []Link{}, Options: []Link{}, log: log}
	t.Template, err = template.New("pages").Parse(pageTemplates)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Title:    t.Title,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
		log:      t.log,
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(key.Url, url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

// Exec renders the named template, logging any error
func (t *Templates) Exec(w http.ResponseWriter, name string, data interface{}) {
	if err := t.ExecuteTemplate(w, name, data); err != nil {
		t.logError(w, err)
	}
}

func (t *Templates) logError(w http.ResponseWriter, err error) {
	t.log.Errorw("http handler error", "error", err)
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}
