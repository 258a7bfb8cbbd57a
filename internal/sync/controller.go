package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/model"
)

const (
	otelScope = "moviesync/sync"

	spanLoad    = "sync.load"
	spanRefresh = "sync.refresh"
	spanAdd     = "sync.add"
	spanDelete  = "sync.delete"
	spanClear   = "sync.clear"

	metricTriggers = "moviesync.sync.triggers"
	metricErrors   = "moviesync.sync.errors"
	metricLimit    = "moviesync.sync.limit_reached"
	metricBusy     = "moviesync.sync.busy_rejections"
)

// User-facing texts.
const (
	MsgLoadFailed  = "Something went wrong!"
	MsgListUpdated = "Movies list updated!"
	MsgAdded       = "Movie successfully added to database"
	MsgDeleted     = "Movie successfully deleted from database"
	MsgCleared     = "All movies successfully deleted from database"
)

// LimitMessage is the error notification sent when a create is refused.
func LimitMessage(ceiling int) string {
	return fmt.Sprintf("Limit of movies (%d) reached on database.", ceiling)
}

// ErrBusy is returned when a trigger arrives while another one is still in
// flight. The rejected trigger has no side effects.
var ErrBusy = errors.New("another operation is in progress")

// Controller owns the visible state and runs one trigger at a time. Create
// one with [NewController], then call [Controller.Start].
type Controller struct {
	repo     Repository
	notifier Notifier
	ceiling  int
	log      *slog.Logger

	// slot admits a single trigger; TryAcquire failing means busy.
	slot *semaphore.Weighted

	mu     sync.Mutex
	st     state
	subs   []subscriber
	nextID int

	// OTel instruments, no-op when telemetry is disabled.
	tracer   trace.Tracer
	cntTrig  metric.Int64Counter
	cntErr   metric.Int64Counter
	cntLimit metric.Int64Counter
	cntBusy  metric.Int64Counter
}

type subscriber struct {
	id int
	fn func(View)
}

// NewController creates an idle Controller. ceiling is the configured record
// limit, quoted in the limit notification when the repository does not
// report one itself.
func NewController(repo Repository, notifier Notifier, ceiling int, logger *slog.Logger) *Controller {
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Controller{
		repo:     repo,
		notifier: notifier,
		ceiling:  ceiling,
		log:      logger,
		slot:     semaphore.NewWeighted(1),

		tracer:   otel.Tracer(otelScope),
		cntTrig:  mustCounter(metricTriggers, "Number of triggers accepted"),
		cntErr:   mustCounter(metricErrors, "Number of triggers that failed"),
		cntLimit: mustCounter(metricLimit, "Number of creates refused by the movie limit"),
		cntBusy:  mustCounter(metricBusy, "Number of triggers rejected while another was in flight"),
	}
}

// View returns the current visible state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.view()
}

// Subscribe registers fn to receive the visible state after every change.
// Subscribers run synchronously, in registration order, on the goroutine
// that made the change. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(View)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Start performs the initial load. It is the same as [Controller.Load].
func (c *Controller) Start(ctx context.Context) error {
	return c.Load(ctx)
}

// Load fetches the list. Failures are reflected in the visible state as
// PhaseError with a generic message and are returned; no notification is
// sent either way.
func (c *Controller) Load(ctx context.Context) error {
	return c.run(ctx, spanLoad, func(ctx context.Context) error {
		return c.load(ctx)
	})
}

// Refresh is Load plus a success notification once the list is current.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.run(ctx, spanRefresh, func(ctx context.Context) error {
		if err := c.load(ctx); err != nil {
			return err
		}
		c.notifier.NotifySuccess(MsgListUpdated)
		return nil
	})
}

// Add creates a movie from cand. It does not enter PhaseLoading itself.
//
// A refused create (limit reached) sends an error notification and leaves
// the visible state alone. A successful create sends a success notification
// and reloads the list. Any other failure is logged and returned without
// touching the visible state.
func (c *Controller) Add(ctx context.Context, cand model.Candidate) (model.Movie, error) {
	var movie model.Movie
	err := c.run(ctx, spanAdd, func(ctx context.Context) error {
		var err error
		movie, err = c.repo.Create(ctx, cand)
		if errors.Is(err, counter.ErrLimitReached) {
			c.cntLimit.Add(ctx, 1)
			c.log.Info("movie limit reached", "ceiling", c.limitOf(err))
			c.notifier.NotifyError(LimitMessage(c.limitOf(err)))
			return err
		}
		if err != nil {
			c.log.Error("adding movie failed", "title", cand.Title, "error", err)
			return err
		}
		c.notifier.NotifySuccess(MsgAdded)
		c.reload(ctx)
		return nil
	})
	return movie, err
}

// DeleteOne removes the movie with the given ID. On success it sends a
// success notification and reloads the list; on failure it logs and returns
// the error without touching the visible state.
func (c *Controller) DeleteOne(ctx context.Context, id string) error {
	return c.run(ctx, spanDelete, func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("movie.id", id))
		if err := c.repo.DeleteOne(ctx, id); err != nil {
			c.log.Error("deleting movie failed", "id", id, "error", err)
			return err
		}
		c.notifier.NotifySuccess(MsgDeleted)
		c.reload(ctx)
		return nil
	})
}

// ClearAll deletes every movie, with the same outcome handling as DeleteOne.
func (c *Controller) ClearAll(ctx context.Context) error {
	return c.run(ctx, spanClear, func(ctx context.Context) error {
		if err := c.repo.ClearAll(ctx); err != nil {
			c.log.Error("clearing movies failed", "error", err)
			return err
		}
		c.notifier.NotifySuccess(MsgCleared)
		c.reload(ctx)
		return nil
	})
}

// run admits one trigger at a time and records its span and metrics.
func (c *Controller) run(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, name)
	defer span.End()

	if !c.slot.TryAcquire(1) {
		c.cntBusy.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", name)))
		c.log.Debug("trigger rejected, controller busy", "trigger", name)
		span.SetStatus(codes.Error, ErrBusy.Error())
		return ErrBusy
	}
	defer c.slot.Release(1)

	c.cntTrig.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", name)))
	err := fn(ctx)
	if err != nil && !errors.Is(err, counter.ErrLimitReached) {
		c.cntErr.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", name)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// load is the Loading → Empty/Populated/Error transition.
func (c *Controller) load(ctx context.Context) error {
	c.update(func(s *state) {
		s.started = true
		s.loading = true
		s.errMsg = ""
	})

	movies, err := c.repo.ListAll(ctx)
	if err != nil {
		c.log.Error("loading movies failed", "error", err)
		c.update(func(s *state) {
			s.loading = false
			s.errMsg = MsgLoadFailed
		})
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("movies.count", len(movies)))
	c.log.Debug("movies loaded", "count", len(movies))
	c.update(func(s *state) {
		s.loading = false
		s.movies = movies
	})
	return nil
}

// reload follows a successful mutation. It never notifies: the mutation has
// already sent the operation's one notification. A failure shows up as
// PhaseError and does not undo the mutation's success.
func (c *Controller) reload(ctx context.Context) {
	if err := c.load(ctx); err != nil {
		c.log.Warn("reload after change failed", "error", err)
	}
}

// update applies fn to the state and hands the new view to subscribers.
func (c *Controller) update(fn func(*state)) {
	c.mu.Lock()
	fn(&c.st)
	v := c.st.view()
	subs := append([]subscriber(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

func (c *Controller) limitOf(err error) int {
	var le *counter.LimitError
	if errors.As(err, &le) {
		return le.Ceiling
	}
	return c.ceiling
}
