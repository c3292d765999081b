package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"mapsync/internal/catalog"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
)

// GeminiConfig configures GeminiClient. Zero fields take the defaults.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// GeminiClient calls the Generative Language generateContent endpoint and
// asks for a JSON array of suggestions.
type GeminiClient struct {
	cfg  GeminiConfig
	http *resty.Client

	// newBackOff is overridden in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewGeminiClient returns a client for cfg.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultRetries
	}

	c := &GeminiClient{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", cfg.APIKey),
	}
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = cfg.Timeout
		return backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
	}
	return c
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var responseSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"targetFieldId":     map[string]any{"type": "STRING"},
			"sourceHeader":      map[string]any{"type": "STRING"},
			"confidence":        map[string]any{"type": "NUMBER", "description": "0 to 1 score of semantic fit"},
			"semanticReasoning": map[string]any{"type": "STRING", "description": "Detailed contextual explanation"},
		},
		"required": []string{"targetFieldId", "semanticReasoning"},
	},
}

// BuildPrompt renders the matching instructions for schema.
func BuildPrompt(headers []string, schema catalog.Schema) string {
	fields := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = fmt.Sprintf("%s (%s: %s)", f.ID, f.Label, f.Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Perform an intelligent semantic mapping between source spreadsheet headers and target data fields for a %s data store.\n\n", schema.Name)
	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("1. DO NOT map fields just because types match. (e.g., 'LastName' is a string, but it is NOT a 'Contact/Phone' field).\n")
	fmt.Fprintf(&b, "2. Analyze the context of the entity (%s).\n", schema.Name)
	b.WriteString("3. Identify synonyms and abbreviations (e.g., 'Dept' matches 'Department', 'FName' matches 'First Name').\n")
	b.WriteString("4. Use each target field id at most once and only headers from the list below.\n\n")
	fmt.Fprintf(&b, "Source Headers: %s\n", strings.Join(headers, ", "))
	fmt.Fprintf(&b, "Target Fields: %s\n\n", strings.Join(fields, ", "))
	b.WriteString("Return a JSON array. For each target field, identify the best semantic match.\n")
	b.WriteString("Provide a 'semanticReasoning' field explaining why it fits or if it is a risky match.")
	return b.String()
}

// retryableError marks failures worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Suggest sends one generateContent call, retrying transport errors, 429 and
// 5xx responses with exponential backoff.
func (c *GeminiClient) Suggest(ctx context.Context, headers []string, schema catalog.Schema) ([]Suggestion, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: BuildPrompt(headers, schema)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}
	path := "/models/" + c.cfg.Model + ":generateContent"

	var body []byte
	op := func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(req).Post(path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &retryableError{err: fmt.Errorf("suggest: gemini request: %w", err)}
		}
		status := resp.StatusCode()
		switch {
		case status == http.StatusTooManyRequests || status >= 500:
			return &retryableError{err: fmt.Errorf("suggest: gemini returned %d", status)}
		case status >= 300:
			return backoff.Permanent(fmt.Errorf("suggest: gemini returned %d: %s", status, truncate(resp.String(), 200)))
		}
		body = resp.Body()
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		var re *retryableError
		if errors.As(err, &re) {
			return nil, re.err
		}
		return nil, err
	}
	return decodeSuggestions(body)
}

func decodeSuggestions(body []byte) ([]Suggestion, error) {
	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("suggest: decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("suggest: response has no candidates")
	}
	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	var out []Suggestion
	if err := json.Unmarshal([]byte(text.String()), &out); err != nil {
		return nil, fmt.Errorf("suggest: decode suggestions: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
