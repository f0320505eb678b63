package command

import (
	"context"
	"sync"
)

// LocalGuard is an in-process InFlightGuard keyed by student ID.
type LocalGuard struct {
	inFlight sync.Map
}

// NewLocalGuard creates a new LocalGuard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// TryAcquire implements InFlightGuard.
func (g *LocalGuard) TryAcquire(_ context.Context, studentID string) (func(), bool, error) {
	if _, loaded := g.inFlight.LoadOrStore(studentID, struct{}{}); loaded {
		return func() {}, false, nil
	}
	return func() { g.inFlight.Delete(studentID) }, true, nil
}

// ChainGuard takes every guard in order and releases them in reverse.
// The local guard goes first so a replica never races itself on Redis.
type ChainGuard []InFlightGuard

// TryAcquire implements InFlightGuard.
func (c ChainGuard) TryAcquire(ctx context.Context, studentID string) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, g := range c {
		release, ok, err := g.TryAcquire(ctx, studentID)
		if err != nil || !ok {
			releaseAll()
			return func() {}, false, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}
