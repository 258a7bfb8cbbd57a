// Package counter owns the separately stored movie counter and the capacity
// policy built on it.
//
// The counter lives at its own resource path and is updated with a read
// followed by a PUT. The two requests are not atomic and are not tied to the
// collection write they accompany, so the stored value can drift from the
// real collection size. Nothing here treats the counter as ground truth for
// list contents; it is only consulted to decide whether a create may proceed.
package counter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/njoerd114/moviesync/internal/store"
)

// Path is the store path of the counter resource.
const Path = "moviesCount"

// DefaultCeiling is the record limit used when none is configured.
const DefaultCeiling = 5

// ErrLimitReached is returned when the stored counter is at or above the
// ceiling. Errors returned by [Guard.CheckCapacity] also satisfy
// errors.As(err, **LimitError).
var ErrLimitReached = errors.New("movie limit reached")

// LimitError carries the ceiling that blocked a create.
type LimitError struct {
	Ceiling int
	Current int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit of movies (%d) reached: counter is %d", e.Ceiling, e.Current)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitReached }

// Store is the subset of [store.Client] the guard needs.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Put(ctx context.Context, path string, value any) error
}

// Guard reads and updates the counter resource. Create one with [NewGuard].
type Guard struct {
	store   Store
	ceiling int
	log     *slog.Logger
}

// NewGuard creates a Guard enforcing ceiling. A ceiling below 1 falls back
// to [DefaultCeiling].
func NewGuard(s Store, ceiling int, logger *slog.Logger) *Guard {
	if ceiling < 1 {
		ceiling = DefaultCeiling
	}
	return &Guard{store: s, ceiling: ceiling, log: logger}
}

// Ceiling returns the configured record limit.
func (g *Guard) Ceiling() int { return g.ceiling }

// Current reads the stored counter. A missing counter reads as 0 with a nil
// error; a body that is not a non-negative integer also reads as 0 and is
// logged. Transport and store failures are returned.
func (g *Guard) Current(ctx context.Context) (int, error) {
	raw, err := g.store.Get(ctx, Path)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading movie counter: %w", err)
	}

	n, ok := parseCount(raw)
	if !ok {
		g.log.Warn("movie counter is not a non-negative number, treating as 0", "raw", string(raw))
		return 0, nil
	}
	return n, nil
}

// parseCount reads a non-negative JSON number. Fractions are truncated and
// values beyond the int range saturate at math.MaxInt.
func parseCount(raw json.RawMessage) (int, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}

	if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		// On ErrRange, i is already saturated at ±MaxInt64.
		if i < 0 {
			return 0, false
		}
		return int(min(i, int64(math.MaxInt))), true
	}

	f, err := num.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	switch {
	case f < 0 || math.IsNaN(f):
		return 0, false
	case f >= float64(math.MaxInt):
		return math.MaxInt, true
	}
	return int(f), true
}

// CheckCapacity returns nil when another movie may be created, or an error
// wrapping [ErrLimitReached] when the counter is at or above the ceiling.
//
// A counter that cannot be read counts as 0: a transient read failure must
// not lock creation out.
func (g *Guard) CheckCapacity(ctx context.Context) error {
	current, err := g.Current(ctx)
	if err != nil {
		g.log.Warn("movie counter unreadable, allowing create", "error", err)
		current = 0
	}
	if current >= g.ceiling {
		return &LimitError{Ceiling: g.ceiling, Current: current}
	}
	return nil
}

// Increment adds one to the stored counter.
func (g *Guard) Increment(ctx context.Context) error {
	return g.update(ctx, func(n int) int {
		if n == math.MaxInt {
			return n
		}
		return n + 1
	})
}

// Decrement subtracts one from the stored counter, never going below 0.
func (g *Guard) Decrement(ctx context.Context) error {
	return g.update(ctx, func(n int) int { return max(n-1, 0) })
}

// Reset overwrites the counter with value without reading it first.
func (g *Guard) Reset(ctx context.Context, value int) error {
	if value < 0 {
		return fmt.Errorf("reset movie counter: negative value %d", value)
	}
	if err := g.store.Put(ctx, Path, value); err != nil {
		return fmt.Errorf("writing movie counter: %w", err)
	}
	g.log.Debug("movie counter reset", "value", value)
	return nil
}

// update is the read-then-write cycle behind Increment and Decrement.
// Another session writing between the two requests loses its update.
func (g *Guard) update(ctx context.Context, next func(int) int) error {
	current, err := g.Current(ctx)
	if err != nil {
		return err
	}
	value := next(current)
	if err := g.store.Put(ctx, Path, value); err != nil {
		return fmt.Errorf("writing movie counter: %w", err)
	}
	g.log.Debug("movie counter updated", "from", current, "to", value)
	return nil
}
