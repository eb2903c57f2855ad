package metrics

import (
	"sort"
	"sync"
	"time"
)

// StageTotals is the accumulated time of one stage label.
type StageTotals struct {
	Label string
	Calls int
	Total time.Duration
}

func (s StageTotals) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// StageProfiler sums dispatch times per stage label. It satisfies
// fluid.StageObserver; Snapshot may be called from another goroutine.
type StageProfiler struct {
	mu     sync.Mutex
	totals map[string]*StageTotals
	next   []StageObserverFunc
}

// StageObserverFunc adapts a function to fluid.StageObserver.
type StageObserverFunc func(label string, d time.Duration)

func (f StageObserverFunc) ObserveStage(label string, d time.Duration) { f(label, d) }

// NewStageProfiler forwards every observation to next after recording it.
func NewStageProfiler(next ...StageObserverFunc) *StageProfiler {
	return &StageProfiler{totals: make(map[string]*StageTotals), next: next}
}

func (p *StageProfiler) ObserveStage(label string, d time.Duration) {
	p.mu.Lock()
	t, ok := p.totals[label]
	if !ok {
		t = &StageTotals{Label: label}
		p.totals[label] = t
	}
	t.Calls++
	t.Total += d
	p.mu.Unlock()

	for _, f := range p.next {
		f(label, d)
	}
}

// Snapshot returns the totals sorted by descending total time.
func (p *StageProfiler) Snapshot() []StageTotals {
	p.mu.Lock()
	out := make([]StageTotals, 0, len(p.totals))
	for _, t := range p.totals {
		out = append(out, *t)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (p *StageProfiler) Reset() {
	p.mu.Lock()
	clear(p.totals)
	p.mu.Unlock()
}
