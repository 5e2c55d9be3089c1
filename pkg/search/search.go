// Package search answers web queries through the Tavily Search API and
// exposes them to the realtime assistant as the search_web tool.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

const (
	defaultBaseURL = "https://api.tavily.com"

	// ToolName is the name the assistant calls.
	ToolName = "search_web"

	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDepth sets the search depth, "basic" or "advanced".
func WithDepth(depth string) Option {
	return func(c *Client) { c.depth = depth }
}

// WithMaxResults sets how many results the answer is synthesized from.
func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = n }
}

// Client is a Tavily search client.
type Client struct {
	apiKey     string
	baseURL    string
	http       *http.Client
	depth      string
	maxResults int
}

// New returns a client with basic depth and five results.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		http:       http.DefaultClient,
		depth:      DepthBasic,
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	Topic         string `json:"topic,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Answer returns a synthesized answer for query. When the API returns no
// answer, the result snippets are joined instead.
func (c *Client) Answer(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(searchRequest{
		Query:         query,
		SearchDepth:   c.depth,
		Topic:         "general",
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("search: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("search: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("search: decode response: %w", err)
	}
	if out.Answer != "" {
		return out.Answer, nil
	}
	var b strings.Builder
	for _, r := range out.Results {
		fmt.Fprintf(&b, "%s (%s): %s\n", r.Title, r.URL, r.Content)
	}
	if b.Len() == 0 {
		return "No results found.", nil
	}
	return b.String(), nil
}

// ToolArgs are the search_web arguments.
type ToolArgs struct {
	Query string `json:"query" jsonschema:"the search query"`
}

// Tool returns the search_web definition and handler for a realtime client.
func (c *Client) Tool() (realtime.ToolDefinition, realtime.ToolHandler, error) {
	return realtime.NewTool(ToolName,
		"Searches the web for up-to-date information and returns a short answer.",
		func(ctx context.Context, args ToolArgs) (any, error) {
			if strings.TrimSpace(args.Query) == "" {
				return nil, errors.New("search: query is required")
			}
			answer, err := c.Answer(ctx, args.Query)
			if err != nil {
				return nil, err
			}
			return map[string]string{"answer": answer}, nil
		})
}
