package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when a write for the same logical action is already
// in flight.
var ErrBusy = errors.New("action already in progress")

// Guard keeps at most one write per action key in flight.
type Guard struct {
	mtx    sync.Mutex
	active map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Acquire claims key. The returned release func must be called exactly once
// when the write is done.
func (g *Guard) Acquire(key string) (release func(), err error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	if _, ok := g.active[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	g.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mtx.Lock()
			delete(g.active, key)
			g.mtx.Unlock()
		})
	}, nil
}

// Busy reports whether key is currently claimed.
func (g *Guard) Busy(key string) bool {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	_, ok := g.active[key]
	return ok
}
