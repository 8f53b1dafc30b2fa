package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liamwears/reeldiary/internal/docstore"
	"github.com/liamwears/reeldiary/internal/models"
)

const importedActors = 5

// Importer writes catalog parent documents from TMDB metadata. Re-importing
// merges over the existing document and never touches ratings or comments.
type Importer struct {
	tmdb     *TMDBService
	store    docstore.Store
	timeout  time.Duration
	logger   *log.Logger
	hydrator *Hydrator
	catalog  *Catalog
}

// NewImporter creates a new Importer
func NewImporter(tmdb *TMDBService, store docstore.Store, timeout time.Duration, logger *log.Logger) *Importer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Importer{tmdb: tmdb, store: store, timeout: timeout, logger: logger}
}

// WithCatalog makes every import also refresh the item in a loaded catalog
func (i *Importer) WithCatalog(hydrator *Hydrator, catalog *Catalog) *Importer {
	i.hydrator = hydrator
	i.catalog = catalog
	return i
}

// Import fetches one title by TMDB id and stores it under its kind
func (i *Importer) Import(ctx context.Context, kind models.Kind, tmdbID int) (string, error) {
	var name string
	var data map[string]any
	switch kind {
	case models.KindMovies:
		m, err := i.tmdb.GetMovie(ctx, tmdbID)
		if err != nil {
			return "", remoteErr(fmt.Sprintf("fetch movie %d", tmdbID), err)
		}
		name, data = movieDocument(m, i.tmdb.GetImageURL(m.PosterPath))
	case models.KindSeries:
		tv, err := i.tmdb.GetTV(ctx, tmdbID)
		if err != nil {
			return "", remoteErr(fmt.Sprintf("fetch series %d", tmdbID), err)
		}
		name, data = seriesDocument(tv, i.tmdb.GetImageURL(tv.PosterPath))
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %s %d is titled %q", ErrUnusableName, kind, tmdbID, name)
	}

	setCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	if err := i.store.Set(setCtx, docstore.Join(kind.String(), name), data, true); err != nil {
		return "", remoteErr("store "+kind.String()+"/"+name, err)
	}
	i.logger.Printf("Imported %s %q (tmdb %d)", kind, name, tmdbID)

	// The document is stored either way; the next hydration picks it up
	if err := i.refresh(ctx, kind, name); err != nil {
		i.logger.Printf("Failed to refresh %s/%s in catalog: %v", kind, name, err)
	}
	return name, nil
}

func (i *Importer) refresh(ctx context.Context, kind models.Kind, name string) error {
	if i.catalog == nil || i.hydrator == nil || !i.catalog.Loaded() {
		return nil
	}
	switch kind {
	case models.KindSeries:
		s, err := i.hydrator.SeriesItem(ctx, name)
		if err != nil {
			return err
		}
		i.catalog.PutSeries(s)
	case models.KindMovies:
		m, err := i.hydrator.MovieItem(ctx, name)
		if err != nil {
			return err
		}
		i.catalog.PutMovie(m)
	}
	return nil
}

func movieDocument(m *TMDBMovie, posterURL string) (string, map[string]any) {
	id := m.IMDbID
	if id == "" {
		id = "tmdb-" + strconv.Itoa(m.ID)
	}
	var directors []string
	for _, c := range m.Credits.Crew {
		if c.Job == "Director" {
			directors = append(directors, c.Name)
		}
	}
	return m.Title, map[string]any{
		"id":          id,
		"category":    firstGenre(m.Genres),
		"description": m.Overview,
		"director":    strings.Join(directors, ", "),
		"imdb":        roundScore(m.VoteAverage),
		"imdbCount":   formatVotes(m.VoteCount),
		"releaseYear": yearOf(m.ReleaseDate),
		"runtime":     m.Runtime,
		"posterURL":   posterURL,
		"actors":      topActors(m.Credits),
		"country":     firstCountry(m.ProductionCountries),
	}
}

func seriesDocument(tv *TMDBTV, posterURL string) (string, map[string]any) {
	creators := make([]string, 0, len(tv.CreatedBy))
	for _, c := range tv.CreatedBy {
		creators = append(creators, c.Name)
	}
	return tv.Name, map[string]any{
		"id":              "tmdb-" + strconv.Itoa(tv.ID),
		"category":        firstGenre(tv.Genres),
		"description":     tv.Overview,
		"director":        strings.Join(creators, ", "),
		"imdb":            roundScore(tv.VoteAverage),
		"imdbCount":       formatVotes(tv.VoteCount),
		"releaseYear":     yearOf(tv.FirstAirDate),
		"lastReleaseYear": yearOf(tv.LastAirDate),
		"season":          tv.NumberOfSeasons,
		"posterURL":       posterURL,
		"actors":          topActors(tv.Credits),
		"country":         firstCountry(tv.ProductionCountries),
	}
}

func firstGenre(genres []tmdbGenre) string {
	if len(genres) == 0 {
		return ""
	}
	return genres[0].Name
}

func firstCountry(countries []tmdbCountry) string {
	if len(countries) == 0 {
		return ""
	}
	return countries[0].Name
}

func topActors(c tmdbCredits) string {
	cast := c.Cast
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	names := make([]string, 0, importedActors)
	for _, member := range cast {
		if len(names) == importedActors {
			break
		}
		names = append(names, member.Name)
	}
	return strings.Join(names, ", ")
}

// yearOf reads the year of a YYYY-MM-DD date, 0 when absent
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}

// formatVotes renders a vote count the way it is displayed: 950, 12K, 1.2M
func formatVotes(n int) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(math.Round(float64(n)/100_000)/10, 'f', -1, 64) + "M"
	case n >= 1_000:
		return strconv.Itoa(int(math.Round(float64(n)/1_000))) + "K"
	default:
		return strconv.Itoa(n)
	}
}
