package proxy

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchDecodesGzip(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") != "nl" {
			t.Errorf("Accept-Language = %q", r.Header.Get("Accept-Language"))
		}
		http.SetCookie(w, &http.Cookie{Name: "seen", Value: "1", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("<p>hello</p>"))
		gz.Close()
	}))
	defer srv.Close()

	jars := newCookieJarStore(nil)
	jar := jars.Get("v1")
	f := newHTTPFetcher(nil)
	hdr := http.Header{"Accept-Encoding": {"gzip"}, "Accept-Language": {"nl"}}
	page, err := f.Fetch(context.Background(), srv.URL+"/w/A", hdr, jar)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(page.Body) != "<p>hello</p>" {
		t.Fatalf("body = %q", page.Body)
	}
	if page.Header.Get("Content-Encoding") != "" {
		t.Fatal("Content-Encoding kept after decoding")
	}
	req := httptest.NewRequest(http.MethodGet, srv.URL, nil)
	if cookies := jar.Cookies(req.URL); len(cookies) != 1 || cookies[0].Name != "seen" {
		t.Fatalf("jar cookies = %v", cookies)
	}
}

func TestUpstreamHeaders(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/w/A", nil)
	r.Header.Set("User-Agent", "ua")
	r.Header.Set("Cookie", "F2P_VISITOR=x")
	hdr := upstreamHeaders(r, &SiteConfig{Headers: map[string]string{"Referer": "https://wiki.test/"}})
	if hdr.Get("User-Agent") != "ua" || hdr.Get("Referer") != "https://wiki.test/" {
		t.Fatalf("hdr = %v", hdr)
	}
	if hdr.Get("Cookie") != "" {
		t.Fatal("visitor cookie forwarded upstream")
	}
}

func TestCookieJarStoreEvictsIdle(t *testing.T) {
	t.Parallel()
	now := time.Unix(0, 0)
	s := newCookieJarStore(func() time.Time { return now })
	a := s.Get("a")
	if s.Get("a") != a {
		t.Fatal("jar not reused")
	}
	s.Get("b")
	now = now.Add(jarIdleTimeout + time.Minute)
	s.Get("b")
	if n := s.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1 after eviction", n)
	}
}
