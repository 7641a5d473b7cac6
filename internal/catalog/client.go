package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

var (
	ErrNotConfigured = errors.New("catalog is not configured")
	ErrUnavailable   = errors.New("catalog is unavailable")
)

// Result is one movie or TV title as the rest of the app sees it.
type Result struct {
	ExternalID   int64            `json:"external_id"`
	MediaType    models.MediaType `json:"media_type"`
	Title        string           `json:"title"`
	Overview     string           `json:"overview,omitempty"`
	PosterPath   string           `json:"poster_path,omitempty"`
	BackdropPath string           `json:"backdrop_path,omitempty"`
	ReleaseDate  string           `json:"release_date,omitempty"`
	Popularity   float64          `json:"popularity"`
}

type SearchResponse struct {
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
	Results      []Result `json:"results"`
}

// Searcher looks titles up by free text.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*SearchResponse, error)
}

// Client talks to the TMDB v3 API.
type Client struct {
	APIKey   string
	BaseURL  string
	Language string
	HTTP     *http.Client
}

func New(apiKey, base, language string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		APIKey:   apiKey,
		BaseURL:  strings.TrimRight(base, "/"),
		Language: language,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type multiResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
}

type multiResponse struct {
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Results      []multiResult `json:"results"`
}

// Search runs /search/multi and keeps only movie and TV results.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResponse, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.BaseURL + "/search/multi")
	if err != nil {
		return nil, fmt.Errorf("parsing catalog url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	q.Set("query", query)
	q.Set("include_adult", "false")
	if c.Language != "" {
		q.Set("language", c.Language)
	}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, stripRequestURL(err))
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tmdb status %d", ErrUnavailable, res.StatusCode)
	}

	var raw multiResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	out := &SearchResponse{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResults,
		Results:      make([]Result, 0, len(raw.Results)),
	}
	for _, r := range raw.Results {
		switch r.MediaType {
		case "movie":
			out.Results = append(out.Results, Result{
				ExternalID:   r.ID,
				MediaType:    models.MediaTypeMovie,
				Title:        r.Title,
				Overview:     r.Overview,
				PosterPath:   r.PosterPath,
				BackdropPath: r.BackdropPath,
				ReleaseDate:  r.ReleaseDate,
				Popularity:   r.Popularity,
			})
		case "tv":
			out.Results = append(out.Results, Result{
				ExternalID:   r.ID,
				MediaType:    models.MediaTypeTV,
				Title:        r.Name,
				Overview:     r.Overview,
				PosterPath:   r.PosterPath,
				BackdropPath: r.BackdropPath,
				ReleaseDate:  r.FirstAirDate,
				Popularity:   r.Popularity,
			})
		}
	}
	return out, nil
}

// stripRequestURL drops the request URL from transport errors; it carries
// the api_key query parameter.
func stripRequestURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s tmdb: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
