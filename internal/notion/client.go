package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/studioops/scriptpilot/internal/errors"
	"github.com/studioops/scriptpilot/internal/httpclient"
	"github.com/studioops/scriptpilot/internal/logger"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"

	// Notion allows an average of 3 requests per second; the default stays
	// under that so sustained runs never hit the cap.
	DefaultRatePerSec = 2.5

	defaultMaxRetries = 3
	maxPageSize       = 100
)

// Client wraps the Notion API with per-instance rate limiting and retry.
// Throttling is a blocking sleep on the calling goroutine; two Client
// instances sharing one integration key are limited independently and can
// jointly exceed the intended rate.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  httpclient.HTTPClient
	minInterval time.Duration
	maxRetries  int

	lastRequest time.Time
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewClient creates a Client. ratePerSec <= 0 selects DefaultRatePerSec;
// a nil httpClient selects the default implementation.
func NewClient(apiKey string, ratePerSec float64, client httpclient.HTTPClient) (*Client, error) {
	if apiKey == "" {
		return nil, errors.ErrWorkspaceKeyMissing
	}
	if ratePerSec <= 0 {
		ratePerSec = DefaultRatePerSec
	}
	if client == nil {
		client = httpclient.NewDefaultHTTPClient()
	}

	return &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		httpClient:  client,
		minInterval: time.Duration(float64(time.Second) / ratePerSec),
		maxRetries:  defaultMaxRetries,
		now:         time.Now,
		sleep:       time.Sleep,
	}, nil
}

// throttle blocks until at least minInterval has passed since the previous
// request started.
func (c *Client) throttle() {
	elapsed := c.now().Sub(c.lastRequest)
	if elapsed < c.minInterval {
		c.sleep(c.minInterval - elapsed)
	}
	c.lastRequest = c.now()
}

// request issues one rate-limited, retryable call. Rate-limit responses and
// transport failures retry with the server hint or 2^attempt seconds of
// backoff; 404 and other HTTP errors fail immediately with a typed error.
func (c *Client) request(ctx context.Context, method, endpoint string, payload interface{}) (map[string]interface{}, error) {
	url := c.baseURL + endpoint

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.throttle()

		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, errors.NewAppError(errors.TypeInternal, "error serializing request payload", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, errors.NewAppError(errors.TypeInternal, "error building request", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == c.maxRetries-1 {
				apiErr := errors.NewAPIError(
					fmt.Sprintf("request failed after %d attempts", c.maxRetries), 0, nil)
				apiErr.Err = err
				return nil, apiErr
			}
			backoff := time.Duration(1<<attempt) * time.Second
			logger.Warn(ctx, "workspace request failed, retrying",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"retry_after", backoff,
				"error", err)
			c.sleep(backoff)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, errors.NewAPIError("error reading response body", resp.StatusCode, nil)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(1<<attempt) * time.Second
			if s := resp.Header.Get("Retry-After"); s != "" {
				if secs, err := strconv.Atoi(s); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			if attempt == c.maxRetries-1 {
				return nil, errors.NewRateLimitError(retryAfter)
			}
			logger.Warn(ctx, "workspace rate limited, retrying",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"retry_after", retryAfter)
			c.sleep(retryAfter)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.NewNotFoundError(fmt.Sprintf("page or database not found: %s", endpoint))
		}

		if resp.StatusCode >= 400 {
			var errBody map[string]interface{}
			if len(data) > 0 {
				_ = json.Unmarshal(data, &errBody)
			}
			return nil, errors.NewAPIError(
				fmt.Sprintf("workspace API error %d: %s", resp.StatusCode, string(data)),
				resp.StatusCode, errBody)
		}

		var out map[string]interface{}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, errors.NewAPIError("error decoding response body", resp.StatusCode, nil)
		}
		return out, nil
	}

	return nil, errors.NewAPIError("max retries exceeded", 0, nil)
}

// Query describes a database query. A zero PageSize requests the maximum.
type Query struct {
	Filter      map[string]interface{}
	Sorts       []map[string]interface{}
	StartCursor string
	PageSize    int
}

// QueryResult is one page of a paginated listing.
type QueryResult struct {
	Results    []map[string]interface{}
	HasMore    bool
	NextCursor string
}

// QueryDatabase queries a database with filters, sorting and pagination.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q Query) (*QueryResult, error) {
	if q.PageSize > maxPageSize {
		return nil, errors.NewValidationError("page_size", fmt.Sprintf("must be at most %d", maxPageSize))
	}
	if q.PageSize <= 0 {
		q.PageSize = maxPageSize
	}

	payload := map[string]interface{}{"page_size": q.PageSize}
	if q.Filter != nil {
		payload["filter"] = q.Filter
	}
	if len(q.Sorts) > 0 {
		payload["sorts"] = q.Sorts
	}
	if q.StartCursor != "" {
		payload["start_cursor"] = q.StartCursor
	}

	resp, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/databases/%s/query", databaseID), payload)
	if err != nil {
		return nil, err
	}
	return parseListing(resp), nil
}

// GetDatabase retrieves database metadata (schema, title).
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, "/databases/"+databaseID, nil)
}

// GetPage retrieves a page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, "/pages/"+pageID, nil)
}

// CreatePage creates a page in a database, optionally with body blocks.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}, children []map[string]interface{}) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}
	if len(children) > 0 {
		payload["children"] = children
	}

	return c.request(ctx, http.MethodPost, "/pages", payload)
}

// UpdatePage partially updates page properties. A non-nil archived toggles
// the page's archived (soft-deleted) state.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]interface{}, archived *bool) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if properties != nil {
		payload["properties"] = properties
	}
	if archived != nil {
		payload["archived"] = *archived
	}

	return c.request(ctx, http.MethodPatch, "/pages/"+pageID, payload)
}

// GetBlockChildren lists the children blocks of a page or block.
func (c *Client) GetBlockChildren(ctx context.Context, blockID, startCursor string, pageSize int) (*QueryResult, error) {
	if pageSize > maxPageSize {
		return nil, errors.NewValidationError("page_size", fmt.Sprintf("must be at most %d", maxPageSize))
	}
	if pageSize <= 0 {
		pageSize = maxPageSize
	}

	endpoint := fmt.Sprintf("/blocks/%s/children?page_size=%d", blockID, pageSize)
	if startCursor != "" {
		endpoint = fmt.Sprintf("/blocks/%s/children?start_cursor=%s&page_size=%d", blockID, startCursor, pageSize)
	}

	resp, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return parseListing(resp), nil
}

// AppendBlockChildren appends blocks to a page or block.
func (c *Client) AppendBlockChildren(ctx context.Context, blockID string, children []map[string]interface{}) (map[string]interface{}, error) {
	payload := map[string]interface{}{"children": children}
	return c.request(ctx, http.MethodPatch, fmt.Sprintf("/blocks/%s/children", blockID), payload)
}

// Property returns a named property from a page object, or a
// MissingPropertyError identifying the page when it is absent.
func Property(page map[string]interface{}, name string) (map[string]interface{}, error) {
	container, _ := page["id"].(string)
	if container == "" {
		container = "page"
	}

	props, ok := page["properties"].(map[string]interface{})
	if !ok {
		return nil, errors.NewMissingPropertyError(name, container)
	}
	prop, ok := props[name].(map[string]interface{})
	if !ok {
		return nil, errors.NewMissingPropertyError(name, container)
	}
	return prop, nil
}

func parseListing(resp map[string]interface{}) *QueryResult {
	result := &QueryResult{}

	if raw, ok := resp["results"].([]interface{}); ok {
		result.Results = make([]map[string]interface{}, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]interface{}); ok {
				result.Results = append(result.Results, m)
			}
		}
	}
	if hasMore, ok := resp["has_more"].(bool); ok {
		result.HasMore = hasMore
	}
	if cursor, ok := resp["next_cursor"].(string); ok {
		result.NextCursor = cursor
	}

	return result
}
