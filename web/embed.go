// Package web embeds the static collector dashboard.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dashboard/dist
var dashboardFS embed.FS

// Router is the subset of chi.Router a WebApp mounts itself on.
type Router interface {
	HandleFunc(pattern string, handler http.HandlerFunc)
	Mount(pattern string, handler http.Handler)
}

// DashboardApp serves the device and readings dashboard under /ui/dashboard/.
func DashboardApp() (*WebApp, error) {
	return NewWebApp("dashboard", dashboardFS, "dashboard/dist", "/ui/dashboard/")
}

// WebApp serves a directory of static files below urlBase. Extensionless
// paths fall back to <path>.html and <path>/index.html.
type WebApp struct {
	name    string
	l       *slog.Logger
	files   fs.FS
	urlBase string
}

func NewWebApp(name string, app fs.FS, subDir string, urlBase string) (*WebApp, error) {
	files, err := fs.Sub(app, subDir)
	if err != nil {
		return nil, err
	}

	return &WebApp{
		name:    name,
		files:   files,
		urlBase: "/" + strings.Trim(urlBase, "/") + "/",
		l:       slog.New(slog.DiscardHandler),
	}, nil
}

// URLBase is the mount point, always with leading and trailing slashes.
func (wa *WebApp) URLBase() string {
	return wa.urlBase
}

// resolve maps a request path, relative to urlBase, to a regular file.
func (wa *WebApp) resolve(p string) (string, bool) {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		p = "index"
	}

	candidates := []string{p, p + ".html", path.Join(p, "index.html")}
	if p == "index" {
		candidates = candidates[1:2]
	}

	for _, c := range candidates {
		if info, err := fs.Stat(wa.files, c); err == nil && !info.IsDir() {
			return c, true
		}
	}

	return "", false
}

func (wa *WebApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := wa.resolve(r.URL.Path)
	if !ok {
		wa.l.Debug("File not found", slog.String("path", r.URL.Path))
		http.NotFound(w, r)

		return
	}

	http.ServeFileFS(w, r, wa.files, name)
}

// Register mounts the app on mux and redirects the base path without its
// trailing slash. Mounting on the slashed base keeps chi from claiming the
// bare path for itself.
func (wa *WebApp) Register(mux Router, l *slog.Logger) {
	wa.l = l.With(slog.String("component", "web"), slog.String("app", wa.name))

	mux.HandleFunc(strings.TrimSuffix(wa.urlBase, "/"), func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, wa.urlBase, http.StatusMovedPermanently)
	})
	mux.Mount(wa.urlBase, http.StripPrefix(wa.urlBase, wa))

	wa.l.Info("Web app registered", slog.String("urlBase", wa.urlBase))
}
