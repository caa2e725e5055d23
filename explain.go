package gobolt

import (
	"context"
	"fmt"
	"time"
)

// PlanMode selects between EXPLAIN (plan only, does not run the query) and
// PROFILE (plan plus actual execution).
type PlanMode int

const (
	PlanExplain PlanMode = iota
	PlanProfile
)

func (m PlanMode) String() string {
	switch m {
	case PlanExplain:
		return "EXPLAIN"
	case PlanProfile:
		return "PROFILE"
	}
	return "EXPLAIN"
}

func (m PlanMode) prefix() string {
	switch m {
	case PlanProfile:
		return "PROFILE "
	default:
		return "EXPLAIN "
	}
}

// Plan holds the outcome of an EXPLAIN or PROFILE query: the records
// returned describe the plan itself, and Summary carries the server's
// structured plan/profile tree alongside the usual query counters.
type Plan struct {
	Records  []*Record
	Summary  *Summary
	Duration time.Duration
}

// ExplainQuery runs query under EXPLAIN or PROFILE on session and
// collects its plan. PROFILE executes the query for real; EXPLAIN does
// not. query must not already carry its own EXPLAIN/PROFILE prefix.
func ExplainQuery(ctx context.Context, session *Session, mode PlanMode, query string, params map[string]any) (*Plan, error) {
	start := time.Now()

	result, err := session.Run(ctx, mode.prefix()+query, params)
	if err != nil {
		return nil, fmt.Errorf("gobolt: %s: %w", mode, err)
	}

	var records []*Record
	for result.Next() {
		records = append(records, result.Record())
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("gobolt: %s: %w", mode, err)
	}

	summary, err := result.Consume()
	if err != nil {
		return nil, fmt.Errorf("gobolt: %s: %w", mode, err)
	}

	return &Plan{Records: records, Summary: summary, Duration: time.Since(start)}, nil
}
