package gobolt

import (
	"sync"
	"time"
)

// QueryAlert reports that a normalized query shape has been run enough
// times within a short window to suggest an N+1 query pattern.
type QueryAlert struct {
	Query string
	Count int
}

// QueryDetector tracks how often each normalized query shape runs and
// flags repeated execution within a short window, the signature of an
// application issuing one query per loop iteration instead of batching.
// A QueryDetector is safe for concurrent use.
type QueryDetector struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	seen      map[string][]time.Time
	lastAlert map[string]time.Time
}

// NewQueryDetector returns a QueryDetector that flags a query shape once
// it runs threshold or more times within window, re-alerting on the same
// shape no more often than every cooldown.
func NewQueryDetector(threshold int, window, cooldown time.Duration) *QueryDetector {
	return &QueryDetector{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		seen:      make(map[string][]time.Time),
		lastAlert: make(map[string]time.Time),
	}
}

// record registers one execution of the normalized query at t. alert is
// non-nil only the first time the threshold is crossed within a cooldown
// period, so callers can treat it as a one-shot notification.
func (d *QueryDetector) record(query string, t time.Time) (matched bool, alert *QueryAlert) {
	if query == "" {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := t.Add(-d.window)
	times := d.seen[query]
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	times = append(times[start:], t)
	d.seen[query] = times

	if len(times) < d.threshold {
		return false, nil
	}

	if last, ok := d.lastAlert[query]; !ok || t.Sub(last) >= d.cooldown {
		d.lastAlert[query] = t
		return true, &QueryAlert{Query: query, Count: len(times)}
	}
	return true, nil
}

// WithRepeatedQueryDetection installs a QueryDetector that watches every
// query run through the Driver's sessions and transactions, logging an
// alert through Config.Logger the first time a normalized query shape
// crosses threshold executions within window.
func WithRepeatedQueryDetection(threshold int, window, cooldown time.Duration) Option {
	return func(c *Config) { c.detector = NewQueryDetector(threshold, window, cooldown) }
}

// observeQuery feeds query through the driver's detector, if any, and logs
// a QueryAlert the moment one fires.
func (d *Driver) observeQuery(query string) {
	if d.cfg.detector == nil {
		return
	}
	normalized := NormalizeQuery(query)
	if _, alert := d.cfg.detector.record(normalized, time.Now()); alert != nil {
		d.cfg.Logger.Printf("gobolt: possible N+1 query pattern: %q ran %d times", alert.Query, alert.Count)
	}
}
