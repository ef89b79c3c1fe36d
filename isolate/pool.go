package isolate

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// BoxPool hands out a bounded set of box ids in round-robin order, gating
// concurrent use with a counting semaphore so no more than Count boxes are
// checked out at once.
type BoxPool struct {
	supervisorPath string
	startID        uint32
	count          uint32
	cgroup         bool

	sem     *semaphore.Weighted
	counter atomic.Uint32
}

// NewBoxPool creates a pool of count boxes, numbered starting at startID.
func NewBoxPool(supervisorPath string, startID, count uint32, cgroup bool) *BoxPool {
	p := &BoxPool{
		supervisorPath: supervisorPath,
		startID:        startID,
		count:          count,
		cgroup:         cgroup,
		sem:            semaphore.NewWeighted(int64(count)),
	}

	// Seed the counter to startID so the first allocated id is startID
	// itself, matching nextID's pre-increment semantics below.
	p.counter.Store(startID)

	return p
}

// Acquire blocks until a permit is available (or ctx is canceled), then
// returns an initialized box and a release function the caller must call
// exactly once when finished.
func (p *BoxPool) Acquire(ctx context.Context) (*IsolateBox, func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("isolate: acquiring pool permit: %w", err)
	}

	id := p.nextID()

	box := NewIsolateBox(p.supervisorPath, id, p.cgroup)
	if err := box.Init(); err != nil {
		p.sem.Release(1)

		return nil, nil, err
	}

	released := false
	release := func() {
		if released {
			return
		}

		released = true

		box.Cleanup()
		p.sem.Release(1)
	}

	return box, release, nil
}

// TryAcquire attempts a non-blocking acquire, returning ErrPoolExhausted if
// no permit is immediately available.
func (p *BoxPool) TryAcquire() (*IsolateBox, func(), error) {
	if !p.sem.TryAcquire(1) {
		return nil, nil, ErrPoolExhausted
	}

	id := p.nextID()

	box := NewIsolateBox(p.supervisorPath, id, p.cgroup)
	if err := box.Init(); err != nil {
		p.sem.Release(1)

		return nil, nil, err
	}

	released := false
	release := func() {
		if released {
			return
		}

		released = true

		box.Cleanup()
		p.sem.Release(1)
	}

	return box, release, nil
}

// nextID computes start + (n - start) mod count, where n is the
// pre-increment counter value (matching the Rust original's
// AtomicU32::fetch_add, which returns the value before incrementing), so
// concurrent callers are handed distinct ids cycling through
// [startID, startID+count).
func (p *BoxPool) nextID() uint32 {
	n := p.counter.Add(1) - 1

	return p.startID + (n-p.startID)%p.count
}

// CleanupAll force-cleans every box id in the pool's range, ignoring
// whether it is currently checked out. It is meant for process startup
// (clearing stale state from a prior crash) and shutdown, run concurrently
// via an errgroup since each cleanup is an independent supervisor
// invocation.
func (p *BoxPool) CleanupAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := uint32(0); i < p.count; i++ {
		id := p.startID + i

		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			box := NewIsolateBox(p.supervisorPath, id, p.cgroup)
			box.initialized = true // force --cleanup even without a prior --init in this process

			return box.Cleanup()
		})
	}

	return g.Wait()
}

// Count returns the number of boxes this pool manages.
func (p *BoxPool) Count() uint32 { return p.count }
