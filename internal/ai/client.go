// Package ai calls the OpenAI API for natural-language rule extraction and
// campaign copy suggestions. Both calls are treated as an unreliable
// upstream: bounded retries, fixed timeout, and failures surfaced as
// retryable errors rather than generic ones.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/minicrm/internal/pkg/httpretry"
	"github.com/ignite/minicrm/internal/segment"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	rulesModel = "gpt-4o-mini"
	copyModel  = "gpt-4.1-mini"
)

// Sentinel errors for the AI layer.
var (
	// ErrUpstream marks transport failures and non-2xx responses from the
	// provider; callers should present these as retryable.
	ErrUpstream = errors.New("ai service unavailable")
	// ErrMalformed marks syntactically broken or contract-violating model
	// output.
	ErrMalformed = errors.New("malformed ai response")
)

// Client talks to the OpenAI chat completions endpoint.
type Client struct {
	http    httpretry.HTTPDoer
	baseURL string
	apiKey  string
}

// NewClient creates an AI client. A nil doer gets a retrying client with a
// 60s per-attempt timeout and 3 retries.
func NewClient(apiKey string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 60 * time.Second}, 3)
	}
	return &Client{http: doer, baseURL: defaultBaseURL, apiKey: apiKey}
}

// WithBaseURL points the client at a different endpoint. Tests use this to
// target an httptest server.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// ExtractRules turns free text into a segment-rule object. The model is
// asked for fields {totalSpend, visits, lastActive, city, tags}; the result
// is parsed but not trusted. Callers must run it through the same
// validation and sanitization as user-supplied rules.
func (c *Client) ExtractRules(ctx context.Context, text string) (segment.Rules, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	prompt := fmt.Sprintf(`Return ONLY a JSON object. Fields allowed: totalSpend, visits, lastActive, city, tags.
Operators: $gte,$gt,$lte,$lt,$eq,$ne (numbers); $gte,$lte (dates ISO-8601); $eq/$in/$nin (strings/arrays).
Normalize "5k", "2 lakh", "1.5m" to absolute numbers.
"haven't shopped in 6 months" means lastActive {"$lte": ISO of 6 months ago}.
"in the last 30 days" means lastActive {"$gte": ISO of 30 days ago}.
If a field isn't implied, omit it. No comments, just JSON.

Text: """%s"""`, text)

	content, err := c.complete(ctx, rulesModel, prompt, 0)
	if err != nil {
		return nil, err
	}

	rules, err := segment.ParseRules([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rules, nil
}

// CopyRequest describes the campaign the copy should promote.
type CopyRequest struct {
	Objective string   `json:"objective"`
	Audience  string   `json:"audience"`
	Brand     string   `json:"brand"`
	Tone      string   `json:"tone"`
	Channels  []string `json:"channels"`
}

// CopyVariant is one suggested message.
type CopyVariant struct {
	Headline string `json:"headline"`
	Channel  string `json:"channel"`
	Copy     string `json:"copy"`
}

var defaultChannels = []string{"sms", "email", "push", "whatsapp"}

// SuggestCopy returns 2-3 message variants for the given objective.
// Responses that violate the contract (wrong count, empty copy, channel
// outside the requested set) are rejected with ErrMalformed.
func (c *Client) SuggestCopy(ctx context.Context, req CopyRequest) ([]CopyVariant, error) {
	if strings.TrimSpace(req.Objective) == "" {
		return nil, fmt.Errorf("objective is required")
	}
	if req.Audience == "" {
		req.Audience = "general users"
	}
	if req.Brand == "" {
		req.Brand = "Your Brand"
	}
	if req.Tone == "" {
		req.Tone = "friendly, action-oriented"
	}
	if len(req.Channels) == 0 {
		req.Channels = defaultChannels
	}

	prompt := strings.Join([]string{
		"You are a CRM copywriting assistant for SMS/WhatsApp/push/email.",
		"Objective: " + req.Objective,
		"Audience: " + req.Audience,
		"Brand: " + req.Brand,
		"Tone: " + req.Tone,
		"Allowed channels: " + strings.Join(req.Channels, ", "),
		`Return ONLY a JSON object {"variants": [...]} with 2 or 3 variants,`,
		`each {"headline": string, "channel": one allowed channel, "copy": string}.`,
		"SMS and push shorter; email can be a bit longer. Clear CTA, simple language.",
	}, "\n")

	content, err := c.complete(ctx, copyModel, prompt, 0.3)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Variants []CopyVariant `json:"variants"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parsed.Variants) < 2 {
		return nil, fmt.Errorf("%w: expected 2-3 variants, got %d", ErrMalformed, len(parsed.Variants))
	}
	if len(parsed.Variants) > 3 {
		parsed.Variants = parsed.Variants[:3]
	}

	allowed := make(map[string]bool, len(req.Channels))
	for _, ch := range req.Channels {
		allowed[ch] = true
	}
	for i, v := range parsed.Variants {
		if strings.TrimSpace(v.Copy) == "" {
			return nil, fmt.Errorf("%w: variant %d has empty copy", ErrMalformed, i+1)
		}
		if !allowed[v.Channel] {
			return nil, fmt.Errorf("%w: variant %d uses unknown channel %q", ErrMalformed, i+1, v.Channel)
		}
	}
	return parsed.Variants, nil
}

// chat completions request/response envelopes, trimmed to what we use.

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    temperature,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformed)
	}
	return parsed.Choices[0].Message.Content, nil
}
