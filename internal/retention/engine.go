package retention

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gitstash/relay/internal/store"
	"github.com/gitstash/relay/pkg/logger"
)

// Policy selects which stored objects a sweep deletes: everything older
// than a day cutoff, or the N oldest objects.
type Policy struct {
	days  int
	count int
	byAge bool
}

// ByAge deletes every object whose last change is older than days
func ByAge(days int) Policy {
	return Policy{days: days, byAge: true}
}

// ByCount deletes the count oldest objects
func ByCount(count int) Policy {
	return Policy{count: count}
}

// Validate checks policy parameters at the invocation boundary
func (p Policy) Validate() error {
	if p.byAge {
		if p.days < 0 {
			return fmt.Errorf("retention days must be non-negative")
		}
		return nil
	}
	if p.count < 1 {
		return fmt.Errorf("delete count must be positive")
	}
	return nil
}

func (p Policy) String() string {
	if p.byAge {
		return fmt.Sprintf("age>%dd", p.days)
	}
	return fmt.Sprintf("oldest %d", p.count)
}

// Skip records an object a sweep could not process
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result reports what a sweep deleted and what it had to skip
type Result struct {
	Deleted []string `json:"deleted"`
	Skipped []Skip   `json:"skipped"`
}

type dated struct {
	obj     store.Object
	changed time.Time
}

// Engine deletes old objects from the content store. Concurrent runs
// (the daily schedule racing a manual trigger) are serialized by a
// mutex so the same listing is never processed twice.
type Engine struct {
	store store.ContentStore
	log   *logger.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewEngine creates a retention engine over the given store
func NewEngine(st store.ContentStore) *Engine {
	return &Engine{
		store: st,
		log:   logger.New(),
		now:   time.Now,
	}
}

// Run executes one retention sweep under the given policy. The initial
// listing failure is run-fatal; everything after that is per-object:
// an object whose history cannot be resolved, or whose delete fails, is
// recorded as a skip and processing continues.
func (e *Engine) Run(ctx context.Context, policy Policy) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("Starting retention sweep (%s)", policy)

	objects, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}

	result := &Result{}

	// Resolve effective timestamps. Objects without resolvable history
	// are excluded from selection and counting.
	var resolved []dated
	for _, obj := range objects {
		changed, err := e.store.LastChange(ctx, obj.Path)
		if err != nil {
			e.log.Warn("Skipping %s: %v", obj.Path, err)
			result.Skipped = append(result.Skipped, Skip{Path: obj.Path, Reason: fmt.Sprintf("history: %v", err)})
			continue
		}
		resolved = append(resolved, dated{obj: obj, changed: changed})
	}

	selected := e.selectObjects(resolved, policy)
	if len(selected) == 0 {
		e.log.Info("Retention sweep found nothing to delete")
		return result, nil
	}

	for _, d := range selected {
		message := fmt.Sprintf("Delete %s as part of cleanup.", d.obj.Path)
		if err := e.store.Delete(ctx, d.obj.Path, d.obj.SHA, message); err != nil {
			e.log.Warn("Failed to delete %s: %v", d.obj.Path, err)
			result.Skipped = append(result.Skipped, Skip{Path: d.obj.Path, Reason: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, d.obj.Path)
	}

	e.log.Info("Retention sweep finished: %d deleted, %d skipped", len(result.Deleted), len(result.Skipped))
	return result, nil
}

func (e *Engine) selectObjects(resolved []dated, policy Policy) []dated {
	if policy.byAge {
		cutoff := e.now().Add(-time.Duration(policy.days) * 24 * time.Hour)
		var selected []dated
		for _, d := range resolved {
			if d.changed.Before(cutoff) {
				selected = append(selected, d)
			}
		}
		return selected
	}

	// Oldest first; ties keep listing order
	sorted := make([]dated, len(resolved))
	copy(sorted, resolved)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].changed.Before(sorted[j].changed)
	})
	if policy.count < len(sorted) {
		return sorted[:policy.count]
	}
	return sorted
}
