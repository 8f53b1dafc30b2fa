package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TMDBService reads catalog metadata from The Movie Database API
type TMDBService struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	imageBaseURL string
}

// TMDBConfig holds TMDB service configuration
type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Timeout      time.Duration
}

// NewTMDBService creates a new TMDB service
func NewTMDBService(cfg TMDBConfig) *TMDBService {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TMDBService{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

type tmdbGenre struct {
	Name string `json:"name"`
}

type tmdbCountry struct {
	Name string `json:"name"`
}

type tmdbCredits struct {
	Cast []struct {
		Name  string `json:"name"`
		Order int    `json:"order"`
	} `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Job  string `json:"job"`
	} `json:"crew"`
}

// TMDBMovie is a movie with the details needed for a catalog entry
type TMDBMovie struct {
	ID                  int           `json:"id"`
	IMDbID              string        `json:"imdb_id"`
	Title               string        `json:"title"`
	PosterPath          *string       `json:"poster_path"`
	ReleaseDate         string        `json:"release_date"`
	Runtime             int           `json:"runtime"`
	VoteAverage         float64       `json:"vote_average"`
	VoteCount           int           `json:"vote_count"`
	Overview            string        `json:"overview"`
	Genres              []tmdbGenre   `json:"genres"`
	ProductionCountries []tmdbCountry `json:"production_countries"`
	Credits             tmdbCredits   `json:"credits"`
}

// TMDBTV is a TV series with the details needed for a catalog entry
type TMDBTV struct {
	ID                  int           `json:"id"`
	Name                string        `json:"name"`
	PosterPath          *string       `json:"poster_path"`
	FirstAirDate        string        `json:"first_air_date"`
	LastAirDate         string        `json:"last_air_date"`
	NumberOfSeasons     int           `json:"number_of_seasons"`
	VoteAverage         float64       `json:"vote_average"`
	VoteCount           int           `json:"vote_count"`
	Overview            string        `json:"overview"`
	Genres              []tmdbGenre   `json:"genres"`
	ProductionCountries []tmdbCountry `json:"production_countries"`
	CreatedBy           []struct {
		Name string `json:"name"`
	} `json:"created_by"`
	Credits tmdbCredits `json:"credits"`
}

// doRequest performs an HTTP request to TMDB API
func (s *TMDBService) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s%s", s.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	q.Add("language", "en-US")
	for key, value := range params {
		q.Add(key, value)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDB API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// GetMovie retrieves a movie with its credits
func (s *TMDBService) GetMovie(ctx context.Context, movieID int) (*TMDBMovie, error) {
	body, err := s.doRequest(ctx, fmt.Sprintf("/3/movie/%d", movieID), map[string]string{"append_to_response": "credits"})
	if err != nil {
		return nil, err
	}

	var movie TMDBMovie
	if err := json.Unmarshal(body, &movie); err != nil {
		return nil, fmt.Errorf("failed to unmarshal movie: %w", err)
	}
	return &movie, nil
}

// GetTV retrieves a TV series with its credits
func (s *TMDBService) GetTV(ctx context.Context, tvID int) (*TMDBTV, error) {
	body, err := s.doRequest(ctx, fmt.Sprintf("/3/tv/%d", tvID), map[string]string{"append_to_response": "credits"})
	if err != nil {
		return nil, err
	}

	var tv TMDBTV
	if err := json.Unmarshal(body, &tv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TV series: %w", err)
	}
	return &tv, nil
}

// GetImageURL returns the full URL for an image path
func (s *TMDBService) GetImageURL(path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	return s.imageBaseURL + *path
}
