package web

import "sync"

// feedRegistry tracks open WebSocket feeds by the access token that opened
// them, so signing out can end them before the token expires.
type feedRegistry struct {
	mu     sync.Mutex
	nextID uint64
	feeds  map[string]map[uint64]chan struct{}
}

func newFeedRegistry() *feedRegistry {
	return &feedRegistry{feeds: make(map[string]map[uint64]chan struct{})}
}

// add returns a channel closed on revoke and a release func for the feed.
func (r *feedRegistry) add(token string) (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	done := make(chan struct{})
	if r.feeds[token] == nil {
		r.feeds[token] = make(map[uint64]chan struct{})
	}
	r.feeds[token][id] = done

	return done, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.feeds[token]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.feeds, token)
			}
		}
	}
}

// revoke signals every feed opened with token and returns how many there were.
func (r *feedRegistry) revoke(token string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.feeds[token]
	for _, done := range set {
		close(done)
	}
	delete(r.feeds, token)
	return len(set)
}
