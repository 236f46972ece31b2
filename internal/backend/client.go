package backend

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
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/metrics"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 15 * time.Second

	routeSavedSearches = "/saved-searches/"
	routeSavedSearch   = "/saved-searches/{id}"
	routeRun           = "/saved-searches/{id}/run"
	routeMarkSeen      = "/saved-searches/{id}/mark-seen"
	routeResults       = "/saved-searches/{id}/results"
	routeStatus        = "/admin/scheduler/status"
	routeAction        = "/admin/scheduler/{action}"
	routeSearch        = "/search"
	routeHealth        = "/health"

	maxErrorBody = 64 * 1024
)

// Client talks to the job-search backend. It holds no user state; the
// bearer token is passed per call by the component that owns the session.
type Client struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

func NewClient(logger *logrus.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	baseURL = strings.TrimRight(baseURL, "/")
	logger.Debugf("Backend base URL: %s", baseURL)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}

	return &Client{
		logger:  logger,
		client:  client,
		baseURL: baseURL,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	route  string
	path   string
	token  string
	query  url.Values
	body   interface{}
	out    interface{}
}

func (c *Client) do(ctx context.Context, r request) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s body", r.route)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return errors.Wrapf(err, "failed to create request for %s", r.route)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(r.route, r.method, "error").Inc()
		c.logger.WithFields(logrus.Fields{
			"method": r.method,
			"route":  r.route,
			"error":  err.Error(),
		}).Error("Backend request failed")
		return errors.Network(err, "%s %s", r.method, r.route)
	}
	defer resp.Body.Close()

	metrics.BackendRequestsTotal.WithLabelValues(r.route, r.method, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.WithFields(logrus.Fields{
		"method":     r.method,
		"path":       r.path,
		"status":     resp.StatusCode,
		"duration":   time.Since(start).String(),
		"request_id": req.Header.Get("X-Request-ID"),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.NewServerError(resp.StatusCode, ExtractDetail(raw))
	}

	if r.out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Network(err, "failed to read %s response", r.route)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, r.out); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to decode %s response", r.route), errors.ErrServer)
	}
	return nil
}

// ExtractDetail pulls the user-facing message out of an error body. A JSON
// body with a string "detail" yields that string; a FastAPI validation list
// yields its "msg" entries; anything else yields the raw text.
func ExtractDetail(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return text
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return detail
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return text
}

func searchPath(id int64, suffix string) string {
	return fmt.Sprintf("/saved-searches/%d%s", id, suffix)
}

func (c *Client) ListSavedSearches(ctx context.Context, token string) ([]types.SavedSearch, error) {
	searches := make([]types.SavedSearch, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  routeSavedSearches,
		path:   routeSavedSearches,
		token:  token,
		out:    &searches,
	})
	if err != nil {
		return nil, err
	}
	return searches, nil
}

func (c *Client) GetSavedSearch(ctx context.Context, token string, id int64) (*types.SavedSearch, error) {
	var search types.SavedSearch
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  routeSavedSearch,
		path:   searchPath(id, ""),
		token:  token,
		out:    &search,
	})
	if err != nil {
		return nil, err
	}
	return &search, nil
}

func (c *Client) CreateSavedSearch(ctx context.Context, token string, draft types.Draft) (*types.SavedSearch, error) {
	var created types.SavedSearch
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  routeSavedSearches,
		path:   routeSavedSearches,
		token:  token,
		body:   draft,
		out:    &created,
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSavedSearch sends a PUT carrying only the fields set on patch.
func (c *Client) UpdateSavedSearch(ctx context.Context, token string, id int64, patch types.Patch) (*types.SavedSearch, error) {
	var updated types.SavedSearch
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  routeSavedSearch,
		path:   searchPath(id, ""),
		token:  token,
		body:   patch,
		out:    &updated,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteSavedSearch(ctx context.Context, token string, id int64) error {
	var ack types.Ack
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  routeSavedSearch,
		path:   searchPath(id, ""),
		token:  token,
		out:    &ack,
	})
}

func (c *Client) RunSavedSearch(ctx context.Context, token string, id int64) (*types.RunResult, error) {
	var result types.RunResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  routeRun,
		path:   searchPath(id, "/run"),
		token:  token,
		out:    &result,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) MarkSeen(ctx context.Context, token string, id int64) error {
	var ack types.Ack
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  routeMarkSeen,
		path:   searchPath(id, "/mark-seen"),
		token:  token,
		out:    &ack,
	})
}

func (c *Client) SearchResults(ctx context.Context, token string, id int64, newOnly bool) (*types.ResultsPage, error) {
	var page types.ResultsPage
	query := url.Values{}
	if newOnly {
		query.Set("new_only", "true")
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  routeResults,
		path:   searchPath(id, "/results"),
		token:  token,
		query:  query,
		out:    &page,
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SchedulerStatus(ctx context.Context, token string) (*types.SchedulerStatus, error) {
	var status types.SchedulerStatus
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  routeStatus,
		path:   routeStatus,
		token:  token,
		out:    &status,
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) SchedulerAction(ctx context.Context, token string, action types.SchedulerAction) (*types.Ack, error) {
	if !action.Valid() {
		return nil, errors.Validationf("unknown scheduler action %q", action)
	}
	var ack types.Ack
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  routeAction,
		path:   "/admin/scheduler/" + string(action),
		token:  token,
		out:    &ack,
	})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Search runs an ad-hoc query. The endpoint is public.
func (c *Client) Search(ctx context.Context, query types.AdhocQuery) ([]string, error) {
	urls := make([]string, 0)
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  routeSearch,
		path:   routeSearch,
		body:   query,
		out:    &urls,
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// Health returns nil when the backend answers its health probe with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		route:  routeHealth,
		path:   routeHealth,
	})
}
