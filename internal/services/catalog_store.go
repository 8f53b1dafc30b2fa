package services

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/liamwears/reeldiary/internal/models"
)

// AnyCategory disables category filtering
const AnyCategory = "Any"

// SortOption orders catalog query results
type SortOption string

const (
	SortNone           SortOption = ""
	SortIMDbLow        SortOption = "imdb-low"
	SortIMDbHigh       SortOption = "imdb-high"
	SortReleaseOld     SortOption = "release-old"
	SortReleaseNew     SortOption = "release-new"
	SortLastReleaseOld SortOption = "last-release-old"
	SortLastReleaseNew SortOption = "last-release-new"
	SortSeasonLow      SortOption = "season-low"
	SortSeasonHigh     SortOption = "season-high"
	SortRuntimeLow     SortOption = "runtime-low"
	SortRuntimeHigh    SortOption = "runtime-high"
)

// CatalogQuery filters and orders a catalog listing
type CatalogQuery struct {
	Search   string
	Category string
	Sort     SortOption
}

// Catalog is the in-memory aggregate store: hydrated series and movies plus
// the signed-in users. It is the single owner of canonical state. Readers
// get deep copies; only the diary service mutates it.
type Catalog struct {
	mu     sync.RWMutex
	series []*models.Series
	movies []*models.Movie
	users  map[string]*models.User
	loaded bool
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		series: []*models.Series{},
		movies: []*models.Movie{},
		users:  make(map[string]*models.User),
	}
}

// Replace installs freshly hydrated catalog lists
func (c *Catalog) Replace(series []*models.Series, movies []*models.Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = series
	c.movies = movies
	c.loaded = true
}

// PutSeries installs one series. A series with the same name keeps its
// in-memory ratings and comments and takes the new attributes.
func (c *Catalog) PutSeries(s *models.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.IndexFunc(c.series, func(x *models.Series) bool { return x.Name == s.Name }); i >= 0 {
		s.Ratings, s.Comments = c.series[i].Ratings, c.series[i].Comments
		c.series[i] = s
		return
	}
	c.series = append(c.series, s)
}

// PutMovie installs one movie, like PutSeries
func (c *Catalog) PutMovie(m *models.Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.IndexFunc(c.movies, func(x *models.Movie) bool { return x.Name == m.Name }); i >= 0 {
		m.Ratings, m.Comments = c.movies[i].Ratings, c.movies[i].Comments
		c.movies[i] = m
		return
	}
	c.movies = append(c.movies, m)
}

// Loaded reports whether the catalog has been hydrated
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// SetUser installs a signed-in user
func (c *Catalog) SetUser(u *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

// AddUser installs u unless a user with the same id is already signed in,
// and returns a copy of whichever user is installed
func (c *Catalog) AddUser(u *models.User) *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.users[u.ID]; ok {
		return existing.Clone()
	}
	c.users[u.ID] = u
	return u.Clone()
}

// RemoveUser discards a user at logout
func (c *Catalog) RemoveUser(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
}

// User returns a copy of a signed-in user
func (c *Catalog) User(id string) (*models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// HasUser reports whether a user is signed in
func (c *Catalog) HasUser(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[id]
	return ok
}

// SeriesByName returns a copy of the named series
func (c *Catalog) SeriesByName(name string) (*models.Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s := c.seriesNamed(name); s != nil {
		return s.Clone(), true
	}
	return nil, false
}

// MovieByName returns a copy of the named movie
func (c *Catalog) MovieByName(name string) (*models.Movie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m := c.movieNamed(name); m != nil {
		return m.Clone(), true
	}
	return nil, false
}

// KindsOf lists the kinds that hold an item with the given name. A name
// shared by a series and a movie yields both.
func (c *Catalog) KindsOf(name string) []models.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kindsOf(name)
}

// Series lists series matching the query
func (c *Catalog) Series(q CatalogQuery) ([]*models.Series, error) {
	less, err := seriesOrder(q.Sort)
	if err != nil {
		return nil, err
	}

	match := matcher(q)
	c.mu.RLock()
	out := make([]*models.Series, 0, len(c.series))
	for _, s := range c.series {
		if match(&s.Entity) {
			out = append(out, s.Clone())
		}
	}
	c.mu.RUnlock()

	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// Movies lists movies matching the query
func (c *Catalog) Movies(q CatalogQuery) ([]*models.Movie, error) {
	less, err := movieOrder(q.Sort)
	if err != nil {
		return nil, err
	}

	match := matcher(q)
	c.mu.RLock()
	out := make([]*models.Movie, 0, len(c.movies))
	for _, m := range c.movies {
		if match(&m.Entity) {
			out = append(out, m.Clone())
		}
	}
	c.mu.RUnlock()

	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// Categories returns AnyCategory followed by the distinct categories of a
// kind in sorted order
func (c *Catalog) Categories(kind models.Kind) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	switch kind {
	case models.KindSeries:
		for _, s := range c.series {
			seen[s.Category] = struct{}{}
		}
	case models.KindMovies:
		for _, m := range c.movies {
			seen[m.Category] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	categories := make([]string, 0, len(seen))
	for cat := range seen {
		if cat != "" {
			categories = append(categories, cat)
		}
	}
	slices.Sort(categories)
	return append([]string{AnyCategory}, categories...), nil
}

// matcher builds the category and search predicate of a query. A Caser is
// stateful, so each query folds with its own.
func matcher(q CatalogQuery) func(e *models.Entity) bool {
	folder := cases.Fold()
	term := folder.String(strings.TrimSpace(q.Search))
	return func(e *models.Entity) bool {
		if q.Category != "" && q.Category != AnyCategory && e.Category != q.Category {
			return false
		}
		if term == "" {
			return true
		}
		for _, field := range []string{e.Name, e.Director, e.Actors} {
			if strings.Contains(folder.String(field), term) {
				return true
			}
		}
		return false
	}
}

// The helpers below expect c.mu to be held.

func (c *Catalog) seriesNamed(name string) *models.Series {
	for _, s := range c.series {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (c *Catalog) movieNamed(name string) *models.Movie {
	for _, m := range c.movies {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (c *Catalog) kindsOf(name string) []models.Kind {
	var kinds []models.Kind
	if c.seriesNamed(name) != nil {
		kinds = append(kinds, models.KindSeries)
	}
	if c.movieNamed(name) != nil {
		kinds = append(kinds, models.KindMovies)
	}
	return kinds
}

func seriesOrder(opt SortOption) (func(a, b *models.Series) bool, error) {
	switch opt {
	case SortNone:
		return nil, nil
	case SortIMDbLow:
		return func(a, b *models.Series) bool { return a.IMDb < b.IMDb }, nil
	case SortIMDbHigh:
		return func(a, b *models.Series) bool { return a.IMDb > b.IMDb }, nil
	case SortReleaseOld:
		return func(a, b *models.Series) bool { return a.ReleaseYear < b.ReleaseYear }, nil
	case SortReleaseNew:
		return func(a, b *models.Series) bool { return a.ReleaseYear > b.ReleaseYear }, nil
	case SortLastReleaseOld:
		return func(a, b *models.Series) bool { return a.LastReleaseYear < b.LastReleaseYear }, nil
	case SortLastReleaseNew:
		return func(a, b *models.Series) bool { return a.LastReleaseYear > b.LastReleaseYear }, nil
	case SortSeasonLow:
		return func(a, b *models.Series) bool { return a.Seasons < b.Seasons }, nil
	case SortSeasonHigh:
		return func(a, b *models.Series) bool { return a.Seasons > b.Seasons }, nil
	default:
		return nil, fmt.Errorf("%w: %q on series", ErrUnsupportedSort, opt)
	}
}

func movieOrder(opt SortOption) (func(a, b *models.Movie) bool, error) {
	switch opt {
	case SortNone:
		return nil, nil
	case SortIMDbLow:
		return func(a, b *models.Movie) bool { return a.IMDb < b.IMDb }, nil
	case SortIMDbHigh:
		return func(a, b *models.Movie) bool { return a.IMDb > b.IMDb }, nil
	case SortReleaseOld:
		return func(a, b *models.Movie) bool { return a.ReleaseYear < b.ReleaseYear }, nil
	case SortReleaseNew:
		return func(a, b *models.Movie) bool { return a.ReleaseYear > b.ReleaseYear }, nil
	case SortRuntimeLow:
		return func(a, b *models.Movie) bool { return a.Runtime < b.Runtime }, nil
	case SortRuntimeHigh:
		return func(a, b *models.Movie) bool { return a.Runtime > b.Runtime }, nil
	default:
		return nil, fmt.Errorf("%w: %q on movies", ErrUnsupportedSort, opt)
	}
}
