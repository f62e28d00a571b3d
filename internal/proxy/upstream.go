package proxy

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxUpstreamBody = 32 << 20

// forwardedHeaders are copied from the visitor's request to the upstream.
var forwardedHeaders = []string{"User-Agent", "Accept", "Accept-Language"}

type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher(client *http.Client) *httpFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &httpFetcher{client: client}
}

// Fetch GETs target with hdr, using jar for upstream cookies. Compressed
// bodies are decoded.
func (f *httpFetcher) Fetch(ctx context.Context, target string, hdr http.Header, jar http.CookieJar) (*upstreamPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, hdr)
	client := *f.client
	if jar != nil {
		client.Jar = jar
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	// net/http only decodes gzip itself when the caller did not set
	// Accept-Encoding.
	var reader io.ReadCloser = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		if gr, gerr := gzip.NewReader(resp.Body); gerr == nil {
			reader = gr
			defer gr.Close()
		}
	case "deflate":
		if zr, zerr := zlib.NewReader(resp.Body); zerr == nil {
			reader = zr
			defer zr.Close()
		} else if fr := flate.NewReader(resp.Body); fr != nil {
			reader = io.NopCloser(fr)
			defer fr.Close()
		}
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	header := resp.Header.Clone()
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return &upstreamPage{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Header: header,
		Body:   body,
	}, nil
}

// upstreamHeaders builds the request headers for target's site.
func upstreamHeaders(r *http.Request, site *SiteConfig) http.Header {
	hdr := http.Header{}
	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			hdr.Set(name, v)
		}
	}
	if site != nil {
		for k, v := range site.Headers {
			hdr.Set(k, v)
		}
	}
	return hdr
}
