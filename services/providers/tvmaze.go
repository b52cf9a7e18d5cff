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

const tvmazeBaseURL = "https://api.tvmaze.com"

// TVmaze is the keyless last-resort provider.
type TVmaze struct {
	httpc *http.Client
}

func NewTVmaze(httpc *http.Client) *TVmaze {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &TVmaze{httpc: httpc}
}

func (c *TVmaze) ID() string { return "tvmaze" }

func (c *TVmaze) Authenticate(ctx context.Context) error { return nil }

type tvmazeShow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Premiered string `json:"premiered"`
	Ended     string `json:"ended"`
}

func (c *TVmaze) Search(ctx context.Context, name string, year int) (*resolver.RawResult, error) {
	params := url.Values{}
	params.Set("q", name)

	var results []struct {
		Show tvmazeShow `json:"show"`
	}
	if err := c.doGET(ctx, tvmazeBaseURL+"/search/shows?"+params.Encode(), &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	show := &results[0].Show
	if year > 0 {
		show = nil
		for i := range results {
			if premiereYear(results[i].Show.Premiered) == year {
				show = &results[i].Show
				break
			}
		}
		if show == nil {
			return nil, nil
		}
	}

	return &resolver.RawResult{
		ID:         strconv.FormatInt(show.ID, 10),
		Title:      show.Name,
		FirstAired: show.Premiered,
		LastAired:  show.Ended,
		Status:     show.Status,
	}, nil
}

func (c *TVmaze) Details(ctx context.Context, id string) (*resolver.RawResult, error) {
	var show tvmazeShow
	if err := c.doGET(ctx, fmt.Sprintf("%s/shows/%s", tvmazeBaseURL, id), &show); err != nil {
		return nil, err
	}

	var episodes []struct {
		Season int `json:"season"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("%s/shows/%s/episodes", tvmazeBaseURL, id), &episodes); err != nil {
		return nil, err
	}

	seasons := 0
	for _, e := range episodes {
		if e.Season > seasons {
			seasons = e.Season
		}
	}

	return &resolver.RawResult{
		ID:            id,
		Title:         show.Name,
		TotalSeasons:  seasons,
		TotalEpisodes: len(episodes),
		FirstAired:    show.Premiered,
		LastAired:     show.Ended,
		Status:        show.Status,
	}, nil
}

func premiereYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func (c *TVmaze) doGET(ctx context.Context, u string, v any) error {
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
