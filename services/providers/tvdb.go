package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"seriescomplete/services/resolver"
)

const tvdbBaseURL = "https://api4.thetvdb.com/v4"

// TVDB is the secondary structured-data provider. The v4 API issues bearer
// tokens good for roughly a day; the token is refreshed one minute before it
// would expire.
type TVDB struct {
	apiKey string
	httpc  *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewTVDB(apiKey string, httpc *http.Client) *TVDB {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &TVDB{apiKey: strings.TrimSpace(apiKey), httpc: httpc}
}

func (c *TVDB) ID() string { return "tvdb" }

func (c *TVDB) Authenticate(ctx context.Context) error {
	_, err := c.ensureToken(ctx)
	return err
}

func (c *TVDB) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		return c.token, nil
	}

	payload, _ := json.Marshal(map[string]string{"apikey": c.apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tvdbBaseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &resolver.StatusError{Provider: c.ID(), Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &resolver.StatusError{
			Provider:   c.ID(),
			StatusCode: resp.StatusCode,
			Message:    "login failed: " + strings.TrimSpace(string(body)),
		}
	}

	var data struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	c.token = data.Data.Token
	c.tokenExpiry = time.Now().Add(23 * time.Hour)
	return c.token, nil
}

func (c *TVDB) Search(ctx context.Context, name string, year int) (*resolver.RawResult, error) {
	params := url.Values{}
	params.Set("query", name)
	params.Set("type", "series")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var resp struct {
		Data []struct {
			TVDBID string `json:"tvdb_id"`
			Name   string `json:"name"`
			Year   string `json:"year"`
		} `json:"data"`
	}
	if err := c.doGET(ctx, tvdbBaseURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	top := resp.Data[0]
	return &resolver.RawResult{ID: top.TVDBID, Title: top.Name}, nil
}

func (c *TVDB) Details(ctx context.Context, id string) (*resolver.RawResult, error) {
	var resp struct {
		Data struct {
			Name       string `json:"name"`
			FirstAired string `json:"firstAired"`
			LastAired  string `json:"lastAired"`
			Status     struct {
				Name string `json:"name"`
			} `json:"status"`
			Seasons []struct {
				Number int `json:"number"`
				Type   struct {
					Type string `json:"type"`
				} `json:"type"`
			} `json:"seasons"`
			Episodes []struct {
				SeasonNumber int `json:"seasonNumber"`
			} `json:"episodes"`
		} `json:"data"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("%s/series/%s/extended?meta=episodes", tvdbBaseURL, id), &resp); err != nil {
		return nil, err
	}

	// Count official aired seasons only; season 0 is specials.
	seasons := 0
	for _, s := range resp.Data.Seasons {
		if s.Type.Type == "official" && s.Number > 0 {
			seasons++
		}
	}
	episodes := 0
	for _, e := range resp.Data.Episodes {
		if e.SeasonNumber > 0 {
			episodes++
		}
	}

	return &resolver.RawResult{
		ID:            id,
		Title:         resp.Data.Name,
		TotalSeasons:  seasons,
		TotalEpisodes: episodes,
		FirstAired:    resp.Data.FirstAired,
		LastAired:     resp.Data.LastAired,
		Status:        resp.Data.Status.Name,
	}, nil
}

func (c *TVDB) doGET(ctx context.Context, u string, v any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

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
