package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seriescomplete/services/resolver"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.0-flash"
)

// Gemini is the AI-assisted fallback provider. It asks the model for a
// strict-JSON answer and refuses anything it cannot parse; results are
// inherently lower-trust than the structured providers.
type Gemini struct {
	apiKey string
	model  string
	httpc  *http.Client
}

func NewGemini(apiKey, model string, httpc *http.Client) *Gemini {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{apiKey: strings.TrimSpace(apiKey), model: model, httpc: httpc}
}

func (c *Gemini) ID() string { return "gemini" }

func (c *Gemini) Authenticate(ctx context.Context) error { return nil }

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// geminiAnswer is the JSON shape the prompt demands from the model.
type geminiAnswer struct {
	Found         bool   `json:"found"`
	Title         string `json:"title"`
	TotalSeasons  int    `json:"totalSeasons"`
	TotalEpisodes int    `json:"totalEpisodes"`
	Status        string `json:"status"`
	FirstAired    string `json:"firstAired"`
	LastAired     string `json:"lastAired"`
}

func (c *Gemini) Search(ctx context.Context, name string, year int) (*resolver.RawResult, error) {
	yearHint := ""
	if year > 0 {
		yearHint = fmt.Sprintf(" that first aired in %d", year)
	}
	prompt := fmt.Sprintf(`You are a TV metadata database. For the TV series named %q%s, respond with ONLY a JSON object, no markdown, of the shape:
{"found": bool, "title": string, "totalSeasons": int, "totalEpisodes": int, "status": "Continuing"|"Ended"|"Canceled"|"Upcoming"|"Unknown", "firstAired": "YYYY-MM-DD", "lastAired": "YYYY-MM-DD"}
Use "found": false if you do not know the series. Count only regular aired episodes, not specials.`, name, yearHint)

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.1,
			MaxOutputTokens:  256,
			ResponseMIMEType: "application/json",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &resolver.StatusError{Provider: c.ID(), Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &resolver.StatusError{
			Provider:   c.ID(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, err
	}
	if gr.Error != nil {
		return nil, &resolver.StatusError{Provider: c.ID(), StatusCode: gr.Error.Code, Message: gr.Error.Message}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}

	answer, err := parseGeminiAnswer(gr.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, fmt.Errorf("gemini: unparseable answer: %w", err)
	}
	if !answer.Found || answer.TotalSeasons <= 0 {
		return nil, nil
	}

	return &resolver.RawResult{
		Title:         answer.Title,
		TotalSeasons:  answer.TotalSeasons,
		TotalEpisodes: answer.TotalEpisodes,
		FirstAired:    answer.FirstAired,
		LastAired:     answer.LastAired,
		Status:        answer.Status,
	}, nil
}

// Details is a no-op: Search already returns the complete answer.
func (c *Gemini) Details(ctx context.Context, id string) (*resolver.RawResult, error) {
	return nil, nil
}

// parseGeminiAnswer tolerates models that wrap the JSON in markdown fences
// despite the instructions.
func parseGeminiAnswer(text string) (*geminiAnswer, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	var answer geminiAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}
