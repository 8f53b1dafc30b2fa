package services

import (
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liamwears/reeldiary/internal/docstore"
	"github.com/liamwears/reeldiary/internal/events"
	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/telemetry"
)

// Policy decides what happens when remote writes fail
type Policy int

const (
	// FailOpen applies locally first and persists in the background. Remote
	// failures are logged and reported on Mutation.Persisted; nothing is
	// rolled back.
	FailOpen Policy = iota
	// FailClosed persists first and applies locally only on success
	FailClosed
)

// DiaryConfig tunes the diary service
type DiaryConfig struct {
	Policy  Policy
	Timeout time.Duration
}

// Mutation is the outcome of one diary operation
type Mutation struct {
	models.MutationEvent
	Writes []docstore.Write `json:"writes"`
	// Persisted yields the remote outcome once, then is closed
	Persisted <-chan error `json:"-"`
}

// Wait blocks until the remote writes finish or ctx is done
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case err := <-m.Persisted:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiaryService applies user actions to every mirror of a fact: the catalog
// item(s) with the name, the signed-in user, and both remote documents.
type DiaryService struct {
	catalog   *Catalog
	store     docstore.Store
	publisher events.Publisher
	cfg       DiaryConfig
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *log.Logger
	now       func() time.Time

	users   sync.Map // user id -> *userLane
	pending sync.WaitGroup
}

// userLane serializes one user's mutations and orders their background writes
type userLane struct {
	mu   sync.Mutex
	tail chan struct{}
}

// NewDiaryService creates a new DiaryService
func NewDiaryService(catalog *Catalog, store docstore.Store, publisher events.Publisher, cfg DiaryConfig, m *metrics.Metrics, logger *log.Logger) *DiaryService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &DiaryService{
		catalog:   catalog,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		tracer:    telemetry.Tracer(),
		logger:    logger,
		now:       time.Now,
	}
}

// plan is a mutation computed against current state, not yet applied
type plan struct {
	kinds  []models.Kind
	score  float64
	text   string
	writes []docstore.Write
	// apply runs with the catalog write lock held
	apply func(c *Catalog)
}

type planner func(c *Catalog, user *models.User, at time.Time) (*plan, error)

// Rate records the user's score for every item with the given name,
// replacing any earlier rating by the same user
func (s *DiaryService) Rate(ctx context.Context, userID, name string, score float64) (*Mutation, error) {
	if !(score > 0 && score <= 5) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidScore, score)
	}
	return s.run(ctx, models.OpRate, userID, name, func(c *Catalog, _ *models.User, at time.Time) (*plan, error) {
		kinds := c.kindsOf(name)
		if len(kinds) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, name)
		}
		rating := models.Rating{SenderID: userID, EntityName: name, Score: score, CreatedAt: at}
		return &plan{
			kinds:  kinds,
			score:  score,
			writes: factWrites(docstore.Ratings, userID, name, kinds, map[string]any{"score": score, "createdDate": at}),
			apply: func(c *Catalog) {
				for _, e := range c.entities(name) {
					e.Ratings = models.UpsertRating(e.Ratings, rating)
				}
				if u := c.users[userID]; u != nil {
					u.Ratings = models.UpsertRating(u.Ratings, rating)
				}
			},
		}, nil
	})
}

// Unrate removes the user's rating from every mirror. Removing a rating
// that does not exist still clears the remote documents.
func (s *DiaryService) Unrate(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpUnrate, userID, name, func(c *Catalog, _ *models.User, _ time.Time) (*plan, error) {
		kinds := c.kindsOf(name)
		key := models.FactKey{SenderID: userID, EntityName: name}
		return &plan{
			kinds:  kinds,
			writes: factWrites(docstore.Ratings, userID, name, kinds, nil),
			apply: func(c *Catalog) {
				for _, e := range c.entities(name) {
					e.Ratings = models.RemoveRating(e.Ratings, key)
				}
				if u := c.users[userID]; u != nil {
					u.Ratings = models.RemoveRating(u.Ratings, key)
				}
			},
		}, nil
	})
}

// Comment records the user's comment, replacing any earlier one
func (s *DiaryService) Comment(ctx context.Context, userID, name, text string) (*Mutation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	return s.run(ctx, models.OpComment, userID, name, func(c *Catalog, _ *models.User, at time.Time) (*plan, error) {
		kinds := c.kindsOf(name)
		if len(kinds) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, name)
		}
		comment := models.Comment{SenderID: userID, EntityName: name, Text: text, CreatedAt: at}
		return &plan{
			kinds:  kinds,
			text:   text,
			writes: factWrites(docstore.Comments, userID, name, kinds, map[string]any{"text": text, "createdDate": at}),
			apply: func(c *Catalog) {
				for _, e := range c.entities(name) {
					e.Comments = models.UpsertComment(e.Comments, comment)
				}
				if u := c.users[userID]; u != nil {
					u.Comments = models.UpsertComment(u.Comments, comment)
				}
			},
		}, nil
	})
}

// RemoveComment removes the user's comment from every mirror
func (s *DiaryService) RemoveComment(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpRemoveComment, userID, name, func(c *Catalog, _ *models.User, _ time.Time) (*plan, error) {
		kinds := c.kindsOf(name)
		key := models.FactKey{SenderID: userID, EntityName: name}
		return &plan{
			kinds:  kinds,
			writes: factWrites(docstore.Comments, userID, name, kinds, nil),
			apply: func(c *Catalog) {
				for _, e := range c.entities(name) {
					e.Comments = models.RemoveComment(e.Comments, key)
				}
				if u := c.users[userID]; u != nil {
					u.Comments = models.RemoveComment(u.Comments, key)
				}
			},
		}, nil
	})
}

// AddWatchLater puts name on the watch-later list and takes it off the
// already-watched list
func (s *DiaryService) AddWatchLater(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpAddWatchLater, userID, name, s.listPlanner(name, watchLater, true))
}

// RemoveWatchLater takes name off the watch-later list
func (s *DiaryService) RemoveWatchLater(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpRemoveWatchLater, userID, name, s.listPlanner(name, watchLater, false))
}

// AddAlreadyWatched puts name on the already-watched list and takes it off
// the watch-later list
func (s *DiaryService) AddAlreadyWatched(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpAddAlreadyWatched, userID, name, s.listPlanner(name, alreadyWatched, true))
}

// RemoveAlreadyWatched takes name off the already-watched list
func (s *DiaryService) RemoveAlreadyWatched(ctx context.Context, userID, name string) (*Mutation, error) {
	return s.run(ctx, models.OpRemoveAlreadyWatched, userID, name, s.listPlanner(name, alreadyWatched, false))
}

type watchList int

const (
	watchLater watchList = iota
	alreadyWatched
)

// listPlanner computes the new lists up front. The two lists never share a
// name, and a list never holds a name twice. When nothing changes the plan
// has no writes.
func (s *DiaryService) listPlanner(name string, list watchList, add bool) planner {
	return func(c *Catalog, user *models.User, _ time.Time) (*plan, error) {
		kinds := c.kindsOf(name)
		if add && len(kinds) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, name)
		}

		own, other := user.WatchLaters, user.AlreadyWatcheds
		ownField, otherField := "watchLaters", "alreadyWatcheds"
		if list == alreadyWatched {
			own, other = other, own
			ownField, otherField = otherField, ownField
		}

		newOwn := slices.DeleteFunc(slices.Clone(own), func(n string) bool { return n == name })
		newOther := slices.Clone(other)
		if add {
			newOwn = append(newOwn, name)
			newOther = slices.DeleteFunc(newOther, func(n string) bool { return n == name })
			if slices.Contains(own, name) {
				newOwn = slices.Clone(own)
			}
		}

		fields := map[string]any{}
		if !slices.Equal(newOwn, own) {
			fields[ownField] = newOwn
		}
		if !slices.Equal(newOther, other) {
			fields[otherField] = newOther
		}
		if len(fields) == 0 {
			return &plan{kinds: kinds}, nil
		}

		userID := user.ID
		return &plan{
			kinds:  kinds,
			writes: []docstore.Write{docstore.MergeWrite(docstore.Join(docstore.Users, userID), fields)},
			apply: func(c *Catalog) {
				u := c.users[userID]
				if u == nil {
					return
				}
				wl, aw := newOwn, newOther
				if list == alreadyWatched {
					wl, aw = aw, wl
				}
				u.WatchLaters = slices.Clone(wl)
				u.AlreadyWatcheds = slices.Clone(aw)
			},
		}, nil
	}
}

// Wait blocks until every background write has finished
func (s *DiaryService) Wait() {
	s.pending.Wait()
}

// PendingWrites returns a channel that is closed once the user's queued
// background writes have finished, or nil when nothing is queued
func (s *DiaryService) PendingWrites(userID string) <-chan struct{} {
	l, ok := s.users.Load(userID)
	if !ok {
		return nil
	}
	lane := l.(*userLane)
	lane.mu.Lock()
	tail := lane.tail
	lane.mu.Unlock()
	if tail == nil {
		return nil
	}
	select {
	case <-tail:
		return nil
	default:
		return tail
	}
}

// run serializes the operation per user, plans it, and applies it under the
// configured policy
func (s *DiaryService) run(ctx context.Context, op models.Operation, userID, name string, build planner) (mut *Mutation, err error) {
	ctx, span := s.tracer.Start(ctx, "diary."+string(op), trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("entity.name", name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.MutationTotal.WithLabelValues(string(op), metrics.Status(err)).Inc()
	}()

	lane := s.lane(userID)
	lane.mu.Lock()
	defer lane.mu.Unlock()

	event := models.MutationEvent{
		ID:         ulid.Make().String(),
		Op:         op,
		UserID:     userID,
		EntityName: name,
		At:         s.now().UTC(),
	}

	if s.cfg.Policy == FailClosed {
		return s.runFailClosed(ctx, lane, event, build)
	}
	return s.runFailOpen(ctx, lane, event, build)
}

func (s *DiaryService) runFailOpen(ctx context.Context, lane *userLane, event models.MutationEvent, build planner) (*Mutation, error) {
	c := s.catalog
	c.mu.Lock()
	p, err := s.prepare(c, event, build)
	if err == nil && p.apply != nil {
		p.apply(c)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	mut, done := s.newMutation(event, p)
	s.publish(ctx, mut.MutationEvent)

	if len(p.writes) == 0 {
		done(nil)
		return mut, nil
	}

	prev := lane.tail
	finished := make(chan struct{})
	lane.tail = finished

	s.pending.Add(1)
	s.metrics.PendingWrites.Inc()
	bg := context.WithoutCancel(ctx)
	go func() {
		defer s.pending.Done()
		defer s.metrics.PendingWrites.Dec()
		defer close(finished)
		if prev != nil {
			<-prev
		}
		err := s.persist(bg, event.Op, p.writes)
		if err != nil {
			s.logger.Printf("Failed to persist %s %s for %s (local state kept): %v", event.Op, event.EntityName, event.UserID, err)
		}
		done(err)
	}()
	return mut, nil
}

func (s *DiaryService) runFailClosed(ctx context.Context, lane *userLane, event models.MutationEvent, build planner) (*Mutation, error) {
	c := s.catalog
	c.mu.RLock()
	p, err := s.prepare(c, event, build)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, event.Op, p.writes); err != nil {
		return nil, err
	}

	if p.apply != nil {
		c.mu.Lock()
		p.apply(c)
		c.mu.Unlock()
	}

	mut, done := s.newMutation(event, p)
	done(nil)
	s.publish(ctx, mut.MutationEvent)
	return mut, nil
}

// prepare expects the catalog lock to be held
func (s *DiaryService) prepare(c *Catalog, event models.MutationEvent, build planner) (*plan, error) {
	user := c.users[event.UserID]
	if user == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotAuthenticated, event.UserID)
	}
	return build(c, user, event.At)
}

func (s *DiaryService) newMutation(event models.MutationEvent, p *plan) (*Mutation, func(error)) {
	event.Kinds = p.kinds
	event.Score = p.score
	event.Text = p.text

	ch := make(chan error, 1)
	done := func(err error) {
		ch <- err
		close(ch)
	}
	return &Mutation{MutationEvent: event, Writes: p.writes, Persisted: ch}, done
}

func (s *DiaryService) persist(ctx context.Context, op models.Operation, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "diary.persist", trace.WithAttributes(
		attribute.String("op", string(op)),
		attribute.Int("writes", len(writes)),
	))
	defer span.End()

	start := time.Now()
	err := remoteErr("persist "+string(op), docstore.Apply(ctx, s.store, writes, s.cfg.Timeout))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.RemoteWriteTotal.WithLabelValues(string(op), metrics.Status(err)).Inc()
	s.metrics.RemoteWriteDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	return err
}

func (s *DiaryService) publish(ctx context.Context, event models.MutationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	err := s.publisher.PublishMutation(ctx, event)
	if err != nil {
		s.logger.Printf("Failed to publish %s event %s: %v", event.Op, event.ID, err)
	}
	s.metrics.EventPublishTotal.WithLabelValues(string(event.Op), metrics.Status(err)).Inc()
}

func (s *DiaryService) lane(userID string) *userLane {
	l, _ := s.users.LoadOrStore(userID, &userLane{})
	return l.(*userLane)
}

// factWrites mirrors one fact under every matching item and under the
// user. A nil data deletes the mirrors.
func factWrites(sub, userID, name string, kinds []models.Kind, data map[string]any) []docstore.Write {
	paths := make([]string, 0, len(kinds)+1)
	for _, k := range kinds {
		paths = append(paths, docstore.Join(k.String(), name, sub, userID))
	}
	paths = append(paths, docstore.Join(docstore.Users, userID, sub, name))

	writes := make([]docstore.Write, 0, len(paths))
	for _, path := range paths {
		if data == nil {
			writes = append(writes, docstore.DeleteWrite(path))
			continue
		}
		writes = append(writes, docstore.SetWrite(path, maps.Clone(data)))
	}
	return writes
}

// entities returns every catalog item with the name. Expects c.mu held.
func (c *Catalog) entities(name string) []*models.Entity {
	var out []*models.Entity
	if s := c.seriesNamed(name); s != nil {
		out = append(out, &s.Entity)
	}
	if m := c.movieNamed(name); m != nil {
		out = append(out, &m.Entity)
	}
	return out
}
