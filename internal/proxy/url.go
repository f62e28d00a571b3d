package proxy

import (
	"net/http"
	"net/url"
)

// upstreamURL maps a proxied request onto the upstream wiki.
func (s *Server) upstreamURL(r *http.Request) string {
	u := url.URL{
		Scheme:   s.upstream.Scheme,
		Host:     s.upstream.Host,
		Path:     s.upstream.Path + r.URL.Path,
		RawPath:  "",
		RawQuery: r.URL.RawQuery,
	}
	if r.URL.RawPath != "" {
		u.RawPath = s.upstream.Path + r.URL.RawPath
	}
	return u.String()
}

// settingsURL links the standalone settings page back to ret.
func settingsURL(ret string) string {
	return "/_f2p/settings?" + url.Values{"return": {ret}}.Encode()
}
