package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seriescomplete/services/resolver"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDB is the primary structured-data provider. The API key travels as a
// query parameter, so there is no separate authentication step.
type TMDB struct {
	apiKey string
	httpc  *http.Client
}

func NewTMDB(apiKey string, httpc *http.Client) *TMDB {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &TMDB{apiKey: strings.TrimSpace(apiKey), httpc: httpc}
}

func (c *TMDB) ID() string { return "tmdb" }

func (c *TMDB) Authenticate(ctx context.Context) error { return nil }

func (c *TMDB) Search(ctx context.Context, name string, year int) (*resolver.RawResult, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", name)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var resp struct {
		Results []struct {
			ID           int64  `json:"id"`
			Name         string `json:"name"`
			FirstAirDate string `json:"first_air_date"`
		} `json:"results"`
	}
	if err := c.doGET(ctx, tmdbBaseURL+"/search/tv?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	top := resp.Results[0]
	return &resolver.RawResult{
		ID:         strconv.FormatInt(top.ID, 10),
		Title:      top.Name,
		FirstAired: top.FirstAirDate,
	}, nil
}

func (c *TMDB) Details(ctx context.Context, id string) (*resolver.RawResult, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)

	var resp struct {
		Name             string `json:"name"`
		NumberOfSeasons  int    `json:"number_of_seasons"`
		NumberOfEpisodes int    `json:"number_of_episodes"`
		Status           string `json:"status"`
		FirstAirDate     string `json:"first_air_date"`
		LastAirDate      string `json:"last_air_date"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("%s/tv/%s?%s", tmdbBaseURL, id, params.Encode()), &resp); err != nil {
		return nil, err
	}

	return &resolver.RawResult{
		ID:            id,
		Title:         resp.Name,
		TotalSeasons:  resp.NumberOfSeasons,
		TotalEpisodes: resp.NumberOfEpisodes,
		FirstAired:    resp.FirstAirDate,
		LastAired:     resp.LastAirDate,
		Status:        resp.Status,
	}, nil
}

func (c *TMDB) doGET(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &resolver.StatusError{Provider: c.ID(), Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resolver.StatusError{
			Provider:   c.ID(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
