package usecase

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// GenerationTracker hands out increasing request generations per device so a
// slow identification can tell it was superseded by a newer one. Entries
// expire after ttl of inactivity, which must exceed the longest request.
type GenerationTracker struct {
	mu      sync.Mutex
	current *cache.Cache
}

func NewGenerationTracker(ttl time.Duration) *GenerationTracker {
	return &GenerationTracker{current: cache.New(ttl, 2*ttl)}
}

// Begin starts a new request for the device and returns its generation.
func (g *GenerationTracker) Begin(deviceID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	var next uint64 = 1
	if v, ok := g.current.Get(deviceID); ok {
		next = v.(uint64) + 1
	}
	g.current.SetDefault(deviceID, next)
	return next
}

// IsCurrent reports whether no newer request began for the device since gen.
func (g *GenerationTracker) IsCurrent(deviceID string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.current.Get(deviceID)
	if !ok {
		return true
	}
	return v.(uint64) == gen
}
