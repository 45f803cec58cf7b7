package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	apperrors "github.com/studioops/scriptpilot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

type fakeHTTPClient struct {
	requests  []*http.Request
	bodies    []string
	responses []fakeResponse
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]

	if r.err != nil {
		return nil, r.err
	}

	resp := &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     http.Header{},
	}
	for k, v := range r.headers {
		resp.Header.Set(k, v)
	}
	return resp, nil
}

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (fc *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range fc.slept {
		sum += d
	}
	return sum
}

func newTestClient(t *testing.T, fake *fakeHTTPClient, ratePerSec float64) (*Client, *fakeClock) {
	t.Helper()

	client, err := NewClient("secret-test-key", ratePerSec, fake)
	require.NoError(t, err)

	fc := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	client.now = func() time.Time { return fc.t }
	client.sleep = func(d time.Duration) {
		fc.slept = append(fc.slept, d)
		fc.t = fc.t.Add(d)
	}
	return client, fc
}

func okResponse(body string) fakeResponse {
	return fakeResponse{status: http.StatusOK, body: body}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("", 2.5, &fakeHTTPClient{})
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceKeyMissing)
}

func TestClient_RequestHeaders(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{"id":"p1"}`)}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)

	req := fake.requests[0]
	assert.Equal(t, "Bearer secret-test-key", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "2022-06-28", req.Header.Get("Notion-Version"))
	assert.Equal(t, "https://api.notion.com/v1/pages/p1", req.URL.String())
}

func TestClient_RateLimiterSpacing(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{}`)}}
	client, clock := newTestClient(t, fake, 2.5)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := client.GetPage(context.Background(), "p1")
		require.NoError(t, err)
	}

	// The first request goes through immediately; every later one waits out
	// the full 1/rate interval because the fake requests are instantaneous.
	minSpacing := time.Duration(float64(time.Second) / 2.5)
	assert.GreaterOrEqual(t, clock.total(), time.Duration(n-1)*minSpacing)
}

func TestClient_Request_ThrottledThenSuccess(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{status: http.StatusTooManyRequests, headers: map[string]string{"Retry-After": "3"}},
		{status: http.StatusTooManyRequests, headers: map[string]string{"Retry-After": "3"}},
		okResponse(`{"id":"p1","object":"page"}`),
	}}
	client, clock := newTestClient(t, fake, 2.5)

	page, err := client.GetPage(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", page["id"])
	assert.Len(t, fake.requests, 3)
	// Two throttled attempts slept the server hint.
	count := 0
	for _, d := range clock.slept {
		if d == 3*time.Second {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestClient_Request_ThrottleExhausted(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{status: http.StatusTooManyRequests, headers: map[string]string{"Retry-After": "7"}},
	}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "p1")

	var rlErr *apperrors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 7*time.Second, rlErr.RetryAfter)
	assert.Len(t, fake.requests, 3)
}

func TestClient_Request_ThrottleBackoffWithoutHint(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{status: http.StatusTooManyRequests},
		{status: http.StatusTooManyRequests},
		okResponse(`{}`),
	}}
	client, clock := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)

	// No Retry-After header: backoff doubles per attempt.
	assert.Contains(t, clock.slept, 1*time.Second)
	assert.Contains(t, clock.slept, 2*time.Second)
}

func TestClient_Request_NotFoundNoRetry(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{status: http.StatusNotFound, body: `{"object":"error","status":404}`},
	}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "missing")

	assert.True(t, apperrors.IsNotFound(err))
	assert.Len(t, fake.requests, 1)
}

func TestClient_Request_APIErrorNoRetry(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{status: http.StatusBadRequest, body: `{"object":"error","code":"validation_error"}`},
	}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "p1")

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Response["code"])
	assert.Len(t, fake.requests, 1)
}

func TestClient_Request_NetworkErrorRetriesThenSucceeds(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{err: fmt.Errorf("connection reset")},
		{err: fmt.Errorf("connection reset")},
		okResponse(`{"id":"p1"}`),
	}}
	client, clock := newTestClient(t, fake, 2.5)

	page, err := client.GetPage(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", page["id"])
	assert.Contains(t, clock.slept, 1*time.Second)
	assert.Contains(t, clock.slept, 2*time.Second)
}

func TestClient_Request_NetworkErrorExhausted(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		{err: fmt.Errorf("dial tcp: connection refused")},
	}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.GetPage(context.Background(), "p1")

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Len(t, fake.requests, 3)
}

func TestClient_QueryDatabase(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		okResponse(`{"results":[{"id":"p1"},{"id":"p2"}],"has_more":true,"next_cursor":"cur-2"}`),
	}}
	client, _ := newTestClient(t, fake, 2.5)

	result, err := client.QueryDatabase(context.Background(), "db1", Query{
		Filter:      map[string]interface{}{"property": "Status", "select": map[string]interface{}{"equals": "New"}},
		StartCursor: "cur-1",
		PageSize:    50,
	})

	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "p2", result.Results[1]["id"])
	assert.True(t, result.HasMore)
	assert.Equal(t, "cur-2", result.NextCursor)

	assert.Equal(t, http.MethodPost, fake.requests[0].Method)
	assert.Equal(t, "https://api.notion.com/v1/databases/db1/query", fake.requests[0].URL.String())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &payload))
	assert.Equal(t, float64(50), payload["page_size"])
	assert.Equal(t, "cur-1", payload["start_cursor"])
	assert.Contains(t, payload, "filter")
}

func TestClient_QueryDatabase_PageSizeTooLarge(t *testing.T) {
	client, _ := newTestClient(t, &fakeHTTPClient{responses: []fakeResponse{okResponse(`{}`)}}, 2.5)

	_, err := client.QueryDatabase(context.Background(), "db1", Query{PageSize: 101})

	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "page_size", valErr.Field)
}

func TestClient_QueryDatabase_DefaultPageSize(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{"results":[],"has_more":false}`)}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.QueryDatabase(context.Background(), "db1", Query{})
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &payload))
	assert.Equal(t, float64(100), payload["page_size"])
	assert.NotContains(t, payload, "filter")
	assert.NotContains(t, payload, "start_cursor")
}

func TestClient_CreatePage(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{"id":"new-page"}`)}}
	client, _ := newTestClient(t, fake, 2.5)

	page, err := client.CreatePage(context.Background(), "db1",
		map[string]interface{}{"Name": map[string]interface{}{"title": []interface{}{}}},
		[]map[string]interface{}{{"type": "paragraph"}})

	require.NoError(t, err)
	assert.Equal(t, "new-page", page["id"])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &payload))
	parent := payload["parent"].(map[string]interface{})
	assert.Equal(t, "db1", parent["database_id"])
	assert.Contains(t, payload, "children")
}

func TestClient_UpdatePage_Archive(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{"id":"p1","archived":true}`)}}
	client, _ := newTestClient(t, fake, 2.5)

	archived := true
	_, err := client.UpdatePage(context.Background(), "p1", nil, &archived)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, fake.requests[0].Method)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &payload))
	assert.Equal(t, true, payload["archived"])
	assert.NotContains(t, payload, "properties")
}

func TestClient_GetBlockChildren_Pagination(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{
		okResponse(`{"results":[{"id":"b1"}],"has_more":false,"next_cursor":null}`),
	}}
	client, _ := newTestClient(t, fake, 2.5)

	result, err := client.GetBlockChildren(context.Background(), "blk1", "cur-9", 25)

	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.False(t, result.HasMore)
	assert.Empty(t, result.NextCursor)
	assert.Equal(t,
		"https://api.notion.com/v1/blocks/blk1/children?start_cursor=cur-9&page_size=25",
		fake.requests[0].URL.String())
}

func TestClient_AppendBlockChildren(t *testing.T) {
	fake := &fakeHTTPClient{responses: []fakeResponse{okResponse(`{"results":[{"id":"b1"}]}`)}}
	client, _ := newTestClient(t, fake, 2.5)

	_, err := client.AppendBlockChildren(context.Background(), "blk1",
		[]map[string]interface{}{{"type": "paragraph"}})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, fake.requests[0].Method)
	assert.Equal(t, "https://api.notion.com/v1/blocks/blk1/children", fake.requests[0].URL.String())
}

func TestProperty(t *testing.T) {
	page := map[string]interface{}{
		"id": "p1",
		"properties": map[string]interface{}{
			"Status": map[string]interface{}{"type": "select"},
		},
	}

	prop, err := Property(page, "Status")
	require.NoError(t, err)
	assert.Equal(t, "select", prop["type"])

	_, err = Property(page, "Script")
	var missingErr *apperrors.MissingPropertyError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "Script", missingErr.Property)
	assert.Equal(t, "p1", missingErr.Container)
}
