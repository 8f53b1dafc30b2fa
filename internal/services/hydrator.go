package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/liamwears/reeldiary/internal/docstore"
	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/telemetry"
)

// HydratorConfig tunes remote reads
type HydratorConfig struct {
	// Timeout bounds every single remote call
	Timeout time.Duration
	// Concurrency caps how many parents are joined at once
	Concurrency int
}

// Hydrator rebuilds aggregates from a parent document and its ratings and
// comments sub-collections
type Hydrator struct {
	store   docstore.Store
	cfg     HydratorConfig
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *log.Logger
}

// NewHydrator creates a new Hydrator
func NewHydrator(store docstore.Store, cfg HydratorConfig, m *metrics.Metrics, logger *log.Logger) *Hydrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 8
	}
	return &Hydrator{
		store:   store,
		cfg:     cfg,
		metrics: m,
		tracer:  telemetry.Tracer(),
		logger:  logger,
	}
}

// children holds the well-formed facts found under one parent document
type children struct {
	comments []models.Comment
	ratings  []models.Rating
}

// Series hydrates every series in parent document order
func (h *Hydrator) Series(ctx context.Context) ([]*models.Series, error) {
	return hydrateKind(ctx, h, models.KindSeries, seriesFromDoc)
}

// Movies hydrates every movie in parent document order
func (h *Hydrator) Movies(ctx context.Context) ([]*models.Movie, error) {
	return hydrateKind(ctx, h, models.KindMovies, movieFromDoc)
}

// SeriesItem hydrates the one series with the given name
func (h *Hydrator) SeriesItem(ctx context.Context, name string) (*models.Series, error) {
	return hydrateOne(ctx, h, models.KindSeries, name, seriesFromDoc)
}

// MovieItem hydrates the one movie with the given name
func (h *Hydrator) MovieItem(ctx context.Context, name string) (*models.Movie, error) {
	return hydrateOne(ctx, h, models.KindMovies, name, movieFromDoc)
}

// Catalog hydrates both kinds concurrently. Either failing fails both.
func (h *Hydrator) Catalog(ctx context.Context) ([]*models.Series, []*models.Movie, error) {
	var series []*models.Series
	var movies []*models.Movie

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = h.Series(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		movies, err = h.Movies(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return series, movies, nil
}

// UserByID hydrates users/{id} with its ratings and comments
func (h *Hydrator) UserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := h.tracer.Start(ctx, "hydrate.user", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	start := time.Now()
	var doc *docstore.Document
	err := h.call(ctx, "get user "+id, func(ctx context.Context) error {
		var err error
		doc, err = h.store.Get(ctx, docstore.Join(docstore.Users, id))
		return err
	})
	if errors.Is(err, docstore.ErrNotFound) {
		err = fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		h.finish(span, "user", start, 0, err)
		return nil, err
	}

	user, err := h.joinUser(ctx, *doc)
	h.finish(span, "user", start, 1, err)
	return user, err
}

// UserByEmail hydrates the first user document whose email matches
func (h *Hydrator) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := h.tracer.Start(ctx, "hydrate.user_by_email")
	defer span.End()

	start := time.Now()
	email = strings.ToLower(email)
	var docs []docstore.Document
	err := h.call(ctx, "query users by email", func(ctx context.Context) error {
		var err error
		docs, err = h.store.Where(ctx, docstore.Users, "email", email)
		return err
	})
	if err == nil && len(docs) == 0 {
		err = fmt.Errorf("%w: no user with email %s", ErrUserNotFound, email)
	}
	if err != nil {
		h.finish(span, "user", start, 0, err)
		return nil, err
	}

	user, err := h.joinUser(ctx, docs[0])
	h.finish(span, "user", start, 1, err)
	return user, err
}

func (h *Hydrator) joinUser(ctx context.Context, doc docstore.Document) (*models.User, error) {
	userID := doc.ID
	c, err := h.fetchChildren(ctx, docstore.Join(docstore.Users, userID), func(subID string) (string, string) {
		return userID, subID
	})
	if err != nil {
		return nil, err
	}

	user := models.NewUser(userID, docstore.StringOr(doc.Data, "email", ""))
	user.WatchLaters = docstore.StringsOr(doc.Data, "watchLaters")
	user.AlreadyWatcheds = docstore.StringsOr(doc.Data, "alreadyWatcheds")
	user.Ratings = c.ratings
	user.Comments = c.comments
	return user, nil
}

// hydrateKind fetches the parent documents of one kind, then joins each
// parent with its children. out[i] always corresponds to parent i.
func hydrateKind[T any](ctx context.Context, h *Hydrator, kind models.Kind, build func(docstore.Document, children) T) ([]T, error) {
	ctx, span := h.tracer.Start(ctx, "hydrate."+kind.String())
	defer span.End()
	start := time.Now()

	var parents []docstore.Document
	err := h.call(ctx, "list "+kind.String(), func(ctx context.Context) error {
		var err error
		parents, err = h.store.List(ctx, kind.String())
		return err
	})
	if err != nil {
		h.finish(span, kind.String(), start, 0, err)
		return nil, err
	}

	out := make([]T, len(parents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for i, parent := range parents {
		g.Go(func() error {
			entityName := parent.ID
			c, err := h.fetchChildren(gctx, docstore.Join(kind.String(), entityName), func(subID string) (string, string) {
				return subID, entityName
			})
			if err != nil {
				return err
			}
			out[i] = build(parent, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.finish(span, kind.String(), start, 0, err)
		return nil, err
	}

	h.finish(span, kind.String(), start, len(out), nil)
	return out, nil
}

func hydrateOne[T any](ctx context.Context, h *Hydrator, kind models.Kind, name string, build func(docstore.Document, children) T) (T, error) {
	var zero T
	path := docstore.Join(kind.String(), name)
	ctx, span := h.tracer.Start(ctx, "hydrate."+kind.String()+".item", trace.WithAttributes(attribute.String("entity.name", name)))
	defer span.End()
	start := time.Now()

	var doc *docstore.Document
	err := h.call(ctx, "get "+path, func(ctx context.Context) error {
		var err error
		doc, err = h.store.Get(ctx, path)
		return err
	})
	if errors.Is(err, docstore.ErrNotFound) {
		err = fmt.Errorf("%w: %s", ErrEntityNotFound, path)
	}
	if err != nil {
		h.finish(span, kind.String(), start, 0, err)
		return zero, err
	}

	c, err := h.fetchChildren(ctx, path, func(subID string) (string, string) {
		return subID, name
	})
	if err != nil {
		h.finish(span, kind.String(), start, 0, err)
		return zero, err
	}
	h.finish(span, kind.String(), start, 1, nil)
	return build(*doc, c), nil
}

// fetchChildren lists the comments and ratings under parent concurrently.
// identity maps a sub-document id to (senderId, entityName).
func (h *Hydrator) fetchChildren(ctx context.Context, parent string, identity func(subID string) (string, string)) (children, error) {
	var commentDocs, ratingDocs []docstore.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path := docstore.Join(parent, docstore.Comments)
		return h.call(gctx, "list "+path, func(ctx context.Context) error {
			var err error
			commentDocs, err = h.store.List(ctx, path)
			return err
		})
	})
	g.Go(func() error {
		path := docstore.Join(parent, docstore.Ratings)
		return h.call(gctx, "list "+path, func(ctx context.Context) error {
			var err error
			ratingDocs, err = h.store.List(ctx, path)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return children{}, err
	}

	c := children{
		comments: make([]models.Comment, 0, len(commentDocs)),
		ratings:  make([]models.Rating, 0, len(ratingDocs)),
	}
	for _, d := range commentDocs {
		text, okText := docstore.String(d.Data, "text")
		at, okAt := docstore.Time(d.Data, "createdDate")
		if !okText || !okAt {
			h.skipped(parent, docstore.Comments, d.ID)
			continue
		}
		sender, entity := identity(d.ID)
		c.comments = append(c.comments, models.Comment{SenderID: sender, EntityName: entity, Text: text, CreatedAt: at})
	}
	for _, d := range ratingDocs {
		score, okScore := docstore.Float(d.Data, "score")
		at, okAt := docstore.Time(d.Data, "createdDate")
		if !okScore || !okAt {
			h.skipped(parent, docstore.Ratings, d.ID)
			continue
		}
		sender, entity := identity(d.ID)
		c.ratings = append(c.ratings, models.Rating{SenderID: sender, EntityName: entity, Score: score, CreatedAt: at})
	}
	return c, nil
}

// call runs one remote operation under its own deadline
func (h *Hydrator) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()
	return remoteErr(op, fn(ctx))
}

func (h *Hydrator) skipped(parent, collection, id string) {
	h.logger.Printf("Skipping malformed %s document %s/%s/%s", collection, parent, collection, id)
	if h.metrics != nil {
		h.metrics.SkippedDocuments.WithLabelValues(collection).Inc()
	}
}

func (h *Hydrator) finish(span trace.Span, target string, start time.Time, items int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Printf("Failed to hydrate %s: %v", target, err)
	}
	span.SetAttributes(attribute.Int("hydrate.items", items))
	if h.metrics == nil {
		return
	}
	h.metrics.HydrationTotal.WithLabelValues(target, metrics.Status(err)).Inc()
	h.metrics.HydrationDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	if err == nil {
		h.metrics.HydratedItems.WithLabelValues(target).Add(float64(items))
	}
}

func seriesFromDoc(doc docstore.Document, c children) *models.Series {
	return &models.Series{
		Entity:          entityFromDoc(doc, c),
		LastReleaseYear: docstore.IntOr(doc.Data, "lastReleaseYear", 0),
		Seasons:         docstore.IntOr(doc.Data, "season", 0),
	}
}

func movieFromDoc(doc docstore.Document, c children) *models.Movie {
	return &models.Movie{
		Entity:  entityFromDoc(doc, c),
		Runtime: docstore.IntOr(doc.Data, "runtime", 0),
	}
}

func entityFromDoc(doc docstore.Document, c children) models.Entity {
	return models.Entity{
		ID:          docstore.StringOr(doc.Data, "id", ""),
		Name:        doc.ID,
		ReleaseYear: docstore.IntOr(doc.Data, "releaseYear", 0),
		Category:    docstore.StringOr(doc.Data, "category", ""),
		Director:    docstore.StringOr(doc.Data, "director", ""),
		Actors:      docstore.StringOr(doc.Data, "actors", ""),
		Description: docstore.StringOr(doc.Data, "description", ""),
		Country:     docstore.StringOr(doc.Data, "country", ""),
		Awards:      docstore.StringOr(doc.Data, "awards", ""),
		PosterURL:   docstore.StringOr(doc.Data, "posterURL", ""),
		IMDb:        docstore.FloatOr(doc.Data, "imdb", 0),
		IMDbCount:   docstore.StringOr(doc.Data, "imdbCount", ""),
		Comments:    c.comments,
		Ratings:     c.ratings,
	}
}
