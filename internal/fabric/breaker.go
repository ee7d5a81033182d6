package fabric

import (
	"sync"
	"time"
)

// Breaker stops the factory from dialing a peer that keeps failing. After
// threshold consecutive failures it rejects for openFor. It then admits a
// single probe: success closes it, failure reopens it. A probe that never
// reports (caller cancelled) is replaced after another openFor.
type Breaker struct {
	name       string
	mu         sync.Mutex
	failures   int
	openedTill time.Time
	threshold  int
	openFor    time.Duration
	open       bool
	probing    bool
	probeTill  time.Time
	now        func() time.Time
}

func newBreaker(name string, threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	b := &Breaker{name: name, threshold: threshold, openFor: openFor, now: time.Now}
	setBreakerState(name, false)
	return b
}

func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	now := b.now()
	if now.Before(b.openedTill) {
		return false
	}
	if b.probing && now.Before(b.probeTill) {
		return false
	}
	b.probing = true
	b.probeTill = now.Add(b.openFor)
	return true
}

func (b *Breaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.open {
		b.open = false
		setBreakerState(b.name, false)
	}
}

func (b *Breaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.probing || b.failures >= b.threshold {
		b.openedTill = b.now().Add(b.openFor)
		b.failures = 0
		b.probing = false
		if !b.open {
			b.open = true
			setBreakerState(b.name, true)
		}
	}
}

type breakers struct {
	mu sync.Mutex
	m  map[string]*Breaker
}

func (r *breakers) get(name string, threshold int, openFor time.Duration) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.m[name]; ok {
		return b
	}
	if r.m == nil {
		r.m = map[string]*Breaker{}
	}
	b := newBreaker(name, threshold, openFor)
	r.m[name] = b
	return b
}
