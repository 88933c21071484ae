package exporter

import (
	"container/heap"
	"math"
	"sync"
)

// OverlapGuard keeps the backfiller and the watcher from both enriching the same block.
//
// Recent claims live in a window of fixed size that forgets the lowest number first. While a
// backfill is pending, live claims at or below its upper bound are pinned outside that window
// and stay until the backfill reaches them, however many live blocks arrive in the meantime.
type OverlapGuard struct {
	mu      sync.Mutex
	window  int
	claimed map[uint64]struct{}
	order   blockHeap

	pinning bool
	ceiling uint64
	pinned  map[uint64]struct{}
}

// NewOverlapGuard returns a guard remembering up to window recent blocks. A window of zero or
// less disables the guard and every claim succeeds.
func NewOverlapGuard(window int) *OverlapGuard {
	if window < 0 {
		window = 0
	}
	return &OverlapGuard{
		window:  window,
		claimed: make(map[uint64]struct{}, window),
		pinned:  make(map[uint64]struct{}),
	}
}

// Pin starts keeping every live claim until the backfill range is known. It is a no-op while
// a backfill is already pending.
func (g *OverlapGuard) Pin() {
	if g.window == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pinning {
		return
	}
	g.pinning = true
	g.ceiling = math.MaxUint64
}

// PinUpTo sets the backfill's upper bound. Live claims above it move back into the window.
func (g *OverlapGuard) PinUpTo(upper uint64) {
	if g.window == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pinning = true
	g.ceiling = upper

	var above []uint64
	for n := range g.pinned {
		if n > upper {
			delete(g.pinned, n)
			above = append(above, n)
		}
	}
	kept := g.order[:0]
	for _, n := range g.order {
		if n <= upper {
			g.pinned[n] = struct{}{}
			delete(g.claimed, n)
			continue
		}
		kept = append(kept, n)
	}
	g.order = kept
	heap.Init(&g.order)
	for _, n := range above {
		g.remember(n)
	}
}

// Unpin ends the backfill's protection and drops whatever it did not reach.
func (g *OverlapGuard) Unpin() {
	if g.window == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pinning = false
	g.pinned = make(map[uint64]struct{})
}

// Claim reports whether the watcher should process block n.
func (g *OverlapGuard) Claim(n uint64) bool {
	if g.window == 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen(n) {
		return false
	}
	if g.pinning && n <= g.ceiling {
		g.pinned[n] = struct{}{}
		return true
	}
	g.remember(n)
	return true
}

// ClaimBackfill reports whether the backfiller should process block n. A block pinned by the
// watcher is refused once and then forgotten, since the backfill never comes back to it.
func (g *OverlapGuard) ClaimBackfill(n uint64) bool {
	if g.window == 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pinned[n]; ok {
		delete(g.pinned, n)
		return false
	}
	if _, ok := g.claimed[n]; ok {
		return false
	}
	g.remember(n)
	return true
}

// Release forgets a claim so the block can be processed again.
func (g *OverlapGuard) Release(n uint64) {
	if g.window == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.pinned, n)
	if _, ok := g.claimed[n]; !ok {
		return
	}
	delete(g.claimed, n)
	for i, v := range g.order {
		if v == n {
			heap.Remove(&g.order, i)
			break
		}
	}
}

func (g *OverlapGuard) seen(n uint64) bool {
	if _, ok := g.pinned[n]; ok {
		return true
	}
	_, ok := g.claimed[n]
	return ok
}

// remember adds n to the window. Numbers below everything retained by a full window are not
// recorded.
func (g *OverlapGuard) remember(n uint64) {
	if len(g.order) >= g.window && n < g.order[0] {
		return
	}
	heap.Push(&g.order, n)
	g.claimed[n] = struct{}{}
	for len(g.order) > g.window {
		evicted := heap.Pop(&g.order).(uint64)
		delete(g.claimed, evicted)
	}
}

type blockHeap []uint64

func (h blockHeap) Len() int           { return len(h) }
func (h blockHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h blockHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *blockHeap) Push(x any) {
	*h = append(*h, x.(uint64))
}

func (h *blockHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
