package proxy

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

const jarIdleTimeout = 24 * time.Hour

type visitorJar struct {
	jar      http.CookieJar
	lastUsed time.Time
}

// cookieJarStore keeps one upstream cookie jar per visitor. Jars idle for
// longer than jarIdleTimeout are dropped on the next lookup.
type cookieJarStore struct {
	mu    sync.Mutex
	clock func() time.Time
	jars  map[string]*visitorJar
}

func newCookieJarStore(clock func() time.Time) *cookieJarStore {
	if clock == nil {
		clock = time.Now
	}
	return &cookieJarStore{clock: clock, jars: make(map[string]*visitorJar)}
}

func (s *cookieJarStore) Get(visitor string) http.CookieJar {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, vj := range s.jars {
		if id != visitor && now.Sub(vj.lastUsed) > jarIdleTimeout {
			delete(s.jars, id)
		}
	}
	if vj, ok := s.jars[visitor]; ok {
		vj.lastUsed = now
		return vj.jar
	}
	jar, _ := cookiejar.New(nil)
	s.jars[visitor] = &visitorJar{jar: jar, lastUsed: now}
	return jar
}

func (s *cookieJarStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jars)
}
