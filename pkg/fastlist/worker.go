package fastlist

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/trawlkit/trawl/pkg/store"
)

// stealPollInterval is how long an idle worker sleeps between steal scans.
const stealPollInterval = 10 * time.Millisecond

// workItem is a mutable listing assignment. Its lower bound advances as
// pages are consumed; a thief may shrink its upper bound. All mutation
// happens under the owning deque's lock.
type workItem struct {
	lower string
	upper string // "" = unbounded
}

// deque holds a worker's pending items behind its own lock, so a steal
// contends with exactly one victim rather than the whole pool.
type deque struct {
	id    int
	mu    sync.Mutex
	items []*workItem
}

type worker struct {
	id       int
	pool     *pool
	deque    *deque
	splitter *RangeSplitter

	results  []store.ObjectMetadata
	apiCalls int
}

func (w *worker) run(ctx context.Context) error {
	for {
		item := w.currentItem()
		if item == nil {
			ok, err := w.acquireWork(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			continue
		}
		if err := w.listItem(ctx, item); err != nil {
			return err
		}
	}
}

// currentItem returns the front of the worker's own deque without removing
// it; the item stays visible to thieves while it is being listed.
func (w *worker) currentItem() *workItem {
	w.deque.mu.Lock()
	defer w.deque.mu.Unlock()
	if len(w.deque.items) == 0 {
		return nil
	}
	return w.deque.items[0]
}

// listItem consumes the item's range one page at a time, advancing the lower
// bound past each page so a steal of the upper half takes effect on the very
// next request.
func (w *worker) listItem(ctx context.Context, item *workItem) error {
	p := w.pool
	for {
		w.deque.mu.Lock()
		lower, upper := item.lower, item.upper
		w.deque.mu.Unlock()

		if upper != "" && lower >= upper {
			// Everything left was stolen.
			w.discard(item)
			return nil
		}

		q := store.PageQuery{
			Prefix:      p.prefix,
			StartOffset: p.prefix + lower,
			MaxResults:  p.pageSize,
		}
		if upper != "" {
			q.EndOffset = p.prefix + upper
		}

		page, err := p.store.ListPage(ctx, q)
		w.apiCalls++
		if err != nil {
			return fmt.Errorf("worker %d: range [%q, %q): %w", w.id, lower, upper, err)
		}

		for _, obj := range page.Objects {
			if p.keep(obj) {
				w.results = append(w.results, obj)
			}
		}

		exhausted := page.NextPageToken == ""
		if n := len(page.Objects); n > 0 {
			last := strings.TrimPrefix(page.Objects[n-1].Name, p.prefix)
			w.deque.mu.Lock()
			if next := successor(last); next > item.lower {
				item.lower = next
			}
			w.deque.mu.Unlock()
		}
		if exhausted {
			w.discard(item)
			return nil
		}
	}
}

// discard removes an exhausted item from the worker's deque.
func (w *worker) discard(item *workItem) {
	w.deque.mu.Lock()
	defer w.deque.mu.Unlock()
	for i, it := range w.deque.items {
		if it == item {
			w.deque.items = append(w.deque.items[:i], w.deque.items[i+1:]...)
			return
		}
	}
}

// acquireWork steals from a sibling or, failing that, participates in
// termination consensus. Returns false once every worker is simultaneously
// idle with no steal in flight. A worker only counts as idle while it is
// asleep between scans, so the idle count reaching pool size proves no
// stolen item is in transit.
func (w *worker) acquireWork(ctx context.Context) (bool, error) {
	p := w.pool
	for {
		if w.trySteal() {
			return true, nil
		}

		p.mu.Lock()
		p.idle++
		if p.idle == p.n && !p.anyPendingLocked() {
			p.done = true
			p.mu.Unlock()
			return false, nil
		}
		if p.done {
			p.mu.Unlock()
			return false, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(stealPollInterval):
		}

		p.mu.Lock()
		if p.done {
			p.mu.Unlock()
			return false, nil
		}
		p.idle--
		p.mu.Unlock()
	}
}

// trySteal scans sibling deques from a random starting point, picks the item
// with the largest estimated remaining span, splits it at its midpoint, and
// takes the upper half. Mutual exclusion is scoped to the single victim
// deque.
func (w *worker) trySteal() bool {
	p := w.pool
	offset := rand.Intn(p.n)

	var (
		victim   *deque
		target   *workItem
		bestSpan float64
	)
	for i := 0; i < p.n; i++ {
		d := p.deques[(offset+i)%p.n]
		if d == w.deque {
			continue
		}
		d.mu.Lock()
		for _, it := range d.items {
			if span := spanEstimate(it.lower, it.upper); span > bestSpan {
				bestSpan = span
				victim = d
				target = it
			}
		}
		d.mu.Unlock()
	}
	if target == nil {
		return false
	}

	victim.mu.Lock()
	if !contains(victim.items, target) {
		// Finished between scan and steal.
		victim.mu.Unlock()
		return false
	}
	mid, ok := w.splitter.Midpoint(target.lower, target.upper)
	if !ok {
		victim.mu.Unlock()
		return false
	}
	stolen := &workItem{lower: mid, upper: target.upper}
	target.upper = mid
	victim.mu.Unlock()

	w.deque.mu.Lock()
	w.deque.items = append(w.deque.items, stolen)
	w.deque.mu.Unlock()

	p.log.Debug().
		Int("worker", w.id).
		Int("victim", victim.id).
		Str("from", stolen.lower).
		Str("to", stolen.upper).
		Msg("stole range")
	return true
}

func contains(items []*workItem, target *workItem) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}

// successor returns the smallest string strictly greater than s, so the next
// page excludes the boundary name.
func successor(s string) string {
	return s + "\x00"
}

// spanEstimate maps a range onto [0, 1) by treating names as base-256
// fractions, good enough to pick the fattest victim.
func spanEstimate(lower, upper string) float64 {
	hi := 1.0
	if upper != "" {
		hi = stringFraction(upper)
	}
	lo := stringFraction(lower)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func stringFraction(s string) float64 {
	f, scale := 0.0, 1.0
	for i := 0; i < len(s) && i < 8; i++ {
		scale /= 256
		f += float64(s[i]) * scale
	}
	return f
}
