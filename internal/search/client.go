// Package search talks to the Leta web-search frontend.
//
// DESIGN: Leta serves SvelteKit data payloads (__data.json): a flat value
// array where objects hold integer indices pointing at their field values.
// gjson walks that structure without committing to a schema - the payload is
// not versioned and partial shapes must degrade, not fail.
//
// Errors are split into transient (worth retrying: timeouts, connection
// failures, 5xx) and permanent (4xx, undecodable payload). The retry policy
// itself lives in the enrich package.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/utils"
)

// Result is one search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
}

// TransientError marks failures worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient search failure: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Client queries the search collaborator over a pooled connection.
type Client struct {
	baseURL    string
	engine     string
	maxResults int
	httpClient *http.Client
}

// NewClient creates a search client. The timeout bounds a single attempt.
func NewClient(cfg config.SearchConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		engine:     cfg.Engine,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Lookup performs one search attempt for query and decodes up to maxResults
// hits. It never retries; callers own the retry policy.
func (c *Client) Lookup(ctx context.Context, query string) ([]Result, error) {
	u := fmt.Sprintf("%s/search/__data.json?q=%s&engine=%s",
		c.baseURL, url.QueryEscape(query), url.QueryEscape(c.engine))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Covers timeouts, connection refused/reset, DNS failures.
		return nil, &TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, &TransientError{Err: fmt.Errorf("search returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxResponseSize))
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	results, err := decodeDataPayload(body, c.maxResults)
	if err != nil {
		log.Debug().
			Err(err).
			Str("query", query).
			Str("body", utils.Truncate(string(body), 200)).
			Msg("search: undecodable payload")
		return nil, err
	}
	return results, nil
}

// decodeDataPayload extracts results from a SvelteKit __data.json payload.
//
// Shape: {"nodes":[...,{"type":"data","data":[flat values...]}]} where the
// data array mixes objects, strings and index arrays. The node we want holds
// an object with a "success" key; the first all-integer array inside it lists
// the indices of result objects, and each result object's title/link/snippet
// fields are integer pointers back into the same flat array.
func decodeDataPayload(body []byte, maxResults int) ([]Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search payload is not valid JSON")
	}

	data, ok := findDataNode(gjson.GetBytes(body, "nodes"))
	if !ok {
		return nil, fmt.Errorf("search payload has no data node")
	}

	indices, ok := findResultIndices(data)
	if !ok {
		return nil, fmt.Errorf("search payload has no result indices")
	}

	var results []Result
	for i := 0; i < len(indices) && len(results) < maxResults; i++ {
		idx := indices[i]
		if idx < 0 || idx >= len(data) || !data[idx].IsObject() {
			continue
		}
		node := data[idx]
		results = append(results, Result{
			Title:   deref(data, node, "title", "Title not found"),
			Link:    deref(data, node, "link", "Link not found"),
			Snippet: deref(data, node, "snippet", "Snippet not found"),
		})
	}
	return results, nil
}

// findDataNode locates the flat value array of the node carrying results.
func findDataNode(nodes gjson.Result) ([]gjson.Result, bool) {
	var data []gjson.Result
	var found bool

	nodes.ForEach(func(_, node gjson.Result) bool {
		if node.Get("type").String() != "data" {
			return true
		}
		arr := node.Get("data")
		if !arr.IsArray() {
			return true
		}
		values := arr.Array()
		for _, v := range values {
			if v.IsObject() && v.Get("success").Exists() {
				data = values
				found = true
				return false
			}
		}
		return true
	})
	return data, found
}

// findResultIndices returns the first all-integer array in data.
func findResultIndices(data []gjson.Result) ([]int, bool) {
	for _, item := range data {
		if !item.IsArray() {
			continue
		}
		elems := item.Array()
		if len(elems) == 0 {
			continue
		}
		indices := make([]int, 0, len(elems))
		allInts := true
		for _, el := range elems {
			if el.Type != gjson.Number {
				allInts = false
				break
			}
			indices = append(indices, int(el.Int()))
		}
		if allInts {
			return indices, true
		}
	}
	return nil, false
}

// deref follows an integer field pointer into the flat value array.
func deref(data []gjson.Result, node gjson.Result, field, fallback string) string {
	ptr := node.Get(field)
	if !ptr.Exists() || ptr.Type != gjson.Number {
		return fallback
	}
	idx := int(ptr.Int())
	if idx < 0 || idx >= len(data) {
		return fallback
	}
	return data[idx].String()
}
