package models

// Kind identifies which catalog collection an item belongs to
type Kind string

const (
	KindSeries Kind = "series"
	KindMovies Kind = "movies"
)

// Kinds lists every catalog kind in hydration order
var Kinds = []Kind{KindSeries, KindMovies}

// String returns the collection name of the kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind names a catalog collection
func (k Kind) IsValid() bool {
	return k == KindSeries || k == KindMovies
}

// Entity holds the fields shared by series and movies. Name is the natural
// key: equality, lookups and joins with user facts all go through it.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ReleaseYear int       `json:"releaseYear"`
	Category    string    `json:"category"`
	Director    string    `json:"director"`
	Actors      string    `json:"actors"`
	Description string    `json:"description"`
	Country     string    `json:"country"`
	Awards      string    `json:"awards"`
	PosterURL   string    `json:"posterURL"`
	IMDb        float64   `json:"imdb"`
	IMDbCount   string    `json:"imdbCount"`
	Comments    []Comment `json:"comments"`
	Ratings     []Rating  `json:"ratings"`
}

// AverageRating returns the mean of all rating scores, 0 when unrated
func (e *Entity) AverageRating() float64 {
	if len(e.Ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range e.Ratings {
		sum += r.Score
	}
	return sum / float64(len(e.Ratings))
}

// Equal reports whether two entities share the same natural key
func (e *Entity) Equal(other *Entity) bool {
	return other != nil && e.Name == other.Name
}

func (e Entity) clone() Entity {
	out := e
	out.Comments = append([]Comment(nil), e.Comments...)
	out.Ratings = append([]Rating(nil), e.Ratings...)
	return out
}

// Series is a TV series with its nested comments and ratings
type Series struct {
	Entity
	LastReleaseYear int `json:"lastReleaseYear"`
	Seasons         int `json:"seasons"`
}

// Clone returns a deep copy of the series
func (s *Series) Clone() *Series {
	out := *s
	out.Entity = s.Entity.clone()
	return &out
}

// Movie is a film with its nested comments and ratings
type Movie struct {
	Entity
	Runtime int `json:"runtime"`
}

// Clone returns a deep copy of the movie
func (m *Movie) Clone() *Movie {
	out := *m
	out.Entity = m.Entity.clone()
	return &out
}
