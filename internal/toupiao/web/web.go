// Package web holds the embedded page templates and static assets and
// renders pages inside the shared layout.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
)

//go:embed templates static
var files embed.FS

// View is the data every page template receives.
type View struct {
	Title   string
	L       *i18n.Localizer
	Culture string
	Path    string
	Query   url.Values // request query, for the culture switcher

	User    *domain.User
	IsAdmin bool

	CSRFToken     string
	StatusMessage string
	ReturnURL     string

	Errors *ModelState
	Data   any
}

// T translates through the view's localizer.
func (v *View) T(key string, args ...any) string {
	if v.L == nil {
		return fmt.Sprintf(key, args...)
	}
	return v.L.T(key, args...)
}

// CultureLink is the current page with the culture switched to name.
func (v *View) CultureLink(name string) string {
	q := url.Values{}
	for k, vals := range v.Query {
		if k == "culture" || k == "ui-culture" {
			continue
		}
		q[k] = vals
	}
	q.Set("culture", name)
	p := v.Path
	if p == "" {
		p = "/"
	}
	return p + "?" + q.Encode()
}

// Renderer executes a page inside templates/layout.html.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	// trusted marks HTML that was sanitised before it was stored.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"date": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			return v.Local().Format("2006-01-02 15:04")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Local().Format("2006-01-02 15:04")
		}
		return ""
	},
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"inc":     func(i int) int { return i + 1 },
	"join":    strings.Join,
}

// New parses every page under templates/ with the layout.
func New() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	err := fs.WalkDir(files, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == "templates/layout.html" || path.Ext(p) != ".html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", p)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Has reports whether page exists.
func (r *Renderer) Has(page string) bool {
	_, ok := r.pages[page]
	return ok
}

// Render writes page with status. The page is buffered so that a template
// error never leaves a half written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, v *View) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("web: unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded assets. Mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
