package proxy

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const visitorCookieName = "F2P_VISITOR"

// visitorStore hands out the ids that key each browser's preferences and
// upstream cookies.
type visitorStore struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func newVisitorStore(clock func() time.Time) *visitorStore {
	if clock == nil {
		clock = time.Now
	}
	return &visitorStore{seen: make(map[string]time.Time), ttl: 365 * 24 * time.Hour, clock: clock}
}

// Identify returns the request's visitor id. fresh is true when the request
// carried no usable cookie and a new id was minted.
func (s *visitorStore) Identify(r *http.Request) (id string, fresh bool) {
	if c, err := r.Cookie(visitorCookieName); err == nil && c != nil {
		if parsed, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		fresh = true
	}
	s.mu.Lock()
	s.seen[id] = s.clock()
	s.mu.Unlock()
	return id, fresh
}

// Active counts visitors seen within the cookie lifetime.
func (s *visitorStore) Active() int {
	cutoff := s.clock().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
			continue
		}
		n++
	}
	return n
}

func (s *visitorStore) cookieFor(id string) *http.Cookie {
	return &http.Cookie{
		Name:     visitorCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.clock().Add(s.ttl),
	}
}

// visitor identifies the request and refreshes the cookie on the response.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) string {
	id, _ := s.visitors.Identify(r)
	http.SetCookie(w, s.visitors.cookieFor(id))
	return id
}
