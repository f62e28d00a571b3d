package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"f2phelper/dom"
	"f2phelper/internal/category"
	"f2phelper/internal/engine"
	"f2phelper/internal/prefs"
)

const indexHTML = `<!DOCTYPE html>
<html><head><title>F2P Helper</title></head><body>
<h1>F2P Helper</h1>
<ul>
<li><a href="/w/Main_Page">Browse the wiki</a></li>
<li><a href="/_f2p/settings">Settings</a></li>
<li><a href="/_f2p/css/all.css">Link colors stylesheet</a></li>
</ul>
</body></html>`

const settingsShell = `<!DOCTYPE html>
<html><head><title>F2P Helper settings</title></head><body class="wgl-theme-light"></body></html>`

const (
	prefsPath        = "/_f2p/prefs"
	settingsPath     = "/_f2p/settings"
	linkStylesheetID = "wgl-f2p-helper-links"
	maxIconSize      = 256
	defaultIconSize  = 15
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(indexHTML)))
	io.WriteString(w, indexHTML)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

func (s *Server) storeFor(visitor string) *prefs.Store {
	return prefs.NewStore(s.prefs.Namespace(visitor), prefs.WithLogger(s.logger))
}

// loadPage returns the upstream page for target, from cache when fresh.
func (s *Server) loadPage(r *http.Request, target, visitor string) (*upstreamPage, error) {
	if page, ok := s.cache.Select(target); ok {
		s.metrics.cache.WithLabelValues("hit").Inc()
		return page, nil
	}
	s.metrics.cache.WithLabelValues("miss").Inc()
	site := s.sites.Find(target)
	hdr := upstreamHeaders(r, site)
	jar := s.jars.Get(visitor)

	start := time.Now()
	var (
		page *upstreamPage
		err  error
	)
	if site.Mode == ModeJS {
		page, err = s.pageRenderer().Render(r.Context(), target, hdr, jar, site)
	} else {
		page, err = s.fetch.Fetch(r.Context(), target, hdr, jar)
	}
	s.metrics.upstream.WithLabelValues(site.Mode).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	s.cache.Store(target, page)
	return page, nil
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	visitor := s.visitor(w, r)
	target := s.upstreamURL(r)
	page, err := s.loadPage(r, target, visitor)
	if err != nil {
		s.logger.Warn("Loading page failed", zap.String("target", target), zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if !isHTML(page.Header) {
		s.writeUpstream(w, page, page.Body)
		return
	}

	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		s.logger.Warn("Unparseable page, passing through", zap.String("target", target), zap.Error(err))
		s.writeUpstream(w, page, page.Body)
		return
	}
	s.linkStylesheet(doc)
	ret := r.URL.RequestURI()
	eng := engine.New(doc, s.storeFor(visitor), engine.Options{
		Logger:      s.logger,
		SettingsURL: settingsURL(ret),
		FormAction:  prefsPath,
		ReturnTo:    ret,
	})
	actions := eng.Reconcile()
	eng.Stop()
	stats := eng.Stats()
	s.metrics.observePage(stats.LastClass, actions)
	s.logger.Debug("Annotated page",
		zap.String("target", target),
		zap.Stringer("class", stats.LastClass),
		zap.Int("actions", len(actions)))

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page.Header.Set("Content-Type", "text/html; charset=utf-8")
	page.Header.Set("Cache-Control", "private, no-cache")
	s.writeUpstream(w, page, buf.Bytes())
}

// linkStylesheet adds the generated link colors to the page head when the
// generator output is available.
func (s *Server) linkStylesheet(doc *dom.Document) {
	head := doc.Head()
	if head == nil || s.cfg.CSSDir == "" || doc.ByID(linkStylesheetID) != nil {
		return
	}
	if _, err := os.Stat(filepath.Join(s.cfg.CSSDir, category.AllFilename)); err != nil {
		return
	}
	doc.AppendChild(head, dom.El("link", dom.Attrs(
		"id", linkStylesheetID,
		"rel", "stylesheet",
		"href", "/_f2p/css/"+category.AllFilename,
	)))
}

var hopHeaders = []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Set-Cookie", "Strict-Transport-Security", "Content-Security-Policy"}

func (s *Server) writeUpstream(w http.ResponseWriter, page *upstreamPage, body []byte) {
	header := page.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	for k, vs := range header {
		w.Header()[k] = vs
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(body)
}

// formValue picks the value to store for key. Checkbox keys arrive as a
// hidden "false" plus "true" when ticked, so any true value wins; other
// keys take the last value.
func formValue(key string, values []string) string {
	if !prefs.IsBoolKey(key) {
		return values[len(values)-1]
	}
	raw := "false"
	for _, v := range values {
		on, ok := prefs.ParseFormBool(v)
		if !ok {
			return v
		}
		if on {
			raw = "true"
		}
	}
	return raw
}

// handlePrefs applies a settings form.
func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	visitor := s.visitor(w, r)
	store := s.storeFor(visitor)
	var errs []error
	applied := 0
	for _, key := range prefs.Keys() {
		values := r.PostForm[key]
		if len(values) == 0 {
			continue
		}
		if err := prefs.ApplyChange(store, key, formValue(key, values)); err != nil {
			errs = append(errs, err)
			continue
		}
		applied++
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Info("Rejected preference form", zap.String("visitor", visitor), zap.Error(err))
		if !errors.Is(err, prefs.ErrInvalidValue) {
			http.Error(w, "could not store preferences", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Debug("Stored preferences", zap.String("visitor", visitor), zap.Int("keys", applied))
	http.Redirect(w, r, localPath(r.PostForm.Get("return"), settingsPath), http.StatusSeeOther)
}

// handleSettings renders the settings panel as a page of its own, for
// browsers without script.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	visitor := s.visitor(w, r)
	doc, err := dom.ParseString(settingsShell)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	eng := engine.New(doc, s.storeFor(visitor), engine.Options{
		Logger:     s.logger,
		FormAction: prefsPath,
		ReturnTo:   localPath(r.URL.Query().Get("return"), settingsPath),
	})
	eng.Reconcile()
	eng.Toggle()
	eng.Stop()

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Write(buf.Bytes())
}

func (s *Server) handleCSS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".css") || s.cfg.CSSDir == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(s.cfg.CSSDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	size := defaultIconSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxIconSize {
			http.Error(w, fmt.Sprintf("size must be 1..%d", maxIconSize), http.StatusBadRequest)
			return
		}
		size = n
	}
	fill := engine.MenuIconColor
	if raw := r.URL.Query().Get("fill"); raw != "" {
		hex, ok := prefs.NormalizeColor(raw)
		if !ok {
			http.Error(w, "invalid fill color", http.StatusBadRequest)
			return
		}
		fmt.Sscanf(hex, "#%02x%02x%02x", &fill.R, &fill.G, &fill.B)
	}
	data, err := engine.StarPNG(size, fill)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
