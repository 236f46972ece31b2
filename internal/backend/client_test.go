package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(logger, ts.URL, 2*time.Second)
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "string detail", body: `{"detail":"Saved search not found"}`, expected: "Saved search not found"},
		{name: "validation list", body: `{"detail":[{"loc":["body","count"],"msg":"ensure this value is less than or equal to 100"}]}`, expected: "ensure this value is less than or equal to 100"},
		{name: "plain text", body: "Internal Server Error", expected: "Internal Server Error"},
		{name: "json without detail", body: `{"error":"boom"}`, expected: `{"error":"boom"}`},
		{name: "empty", body: "  ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDetail([]byte(tt.body)))
		})
	}
}

func TestClient_ListSavedSearches(t *testing.T) {
	tests := []struct {
		name         string
		responseCode int
		responseBody string
		expectedLen  int
		expectedErr  error
		expectedMsg  string
	}{
		{
			name:         "successful list",
			responseCode: http.StatusOK,
			responseBody: `[{"id":2,"name":"b","job_title":"SRE","experience_level":"senior level","count":10,"is_active":true,"notification_email":null,"last_run_at":null,"created_at":"2024-05-02T10:00:00","new_results_count":3},
				{"id":1,"name":"a","job_title":"Go","experience_level":"intern","count":25,"is_active":false,"created_at":"2024-05-01T10:00:00","new_results_count":0}]`,
			expectedLen: 2,
		},
		{
			name:         "empty list",
			responseCode: http.StatusOK,
			responseBody: `[]`,
			expectedLen:  0,
		},
		{
			name:         "unauthorized",
			responseCode: http.StatusUnauthorized,
			responseBody: `{"detail":"Could not validate credentials"}`,
			expectedErr:  errors.ErrServer,
			expectedMsg:  "Could not validate credentials",
		},
		{
			name:         "malformed response",
			responseCode: http.StatusOK,
			responseBody: `{"not":"a list"`,
			expectedErr:  errors.ErrServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/saved-searches/", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
				w.WriteHeader(tt.responseCode)
				_, _ = w.Write([]byte(tt.responseBody))
			})

			searches, err := client.ListSavedSearches(context.Background(), "tok")
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr))
				if tt.expectedMsg != "" {
					assert.Equal(t, tt.expectedMsg, errors.Message(err))
				}
				assert.Nil(t, searches)
				return
			}
			require.NoError(t, err)
			assert.Len(t, searches, tt.expectedLen)
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewClient(logger, url, time.Second)

	_, err := client.SchedulerStatus(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetwork))
	assert.Equal(t, "network", errors.Kind(err))
}

func TestClient_UpdateSendsOnlyPatchedFields(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/saved-searches/7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":7,"name":"x","job_title":"Go","experience_level":"intern","count":25,"is_active":false,"created_at":"2024-05-01T10:00:00","new_results_count":0}`))
	})

	updated, err := client.UpdateSavedSearch(context.Background(), "tok", 7, types.ActivePatch(false))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"is_active": false}, body)
	assert.False(t, updated.IsActive)
}

func TestClient_RunSavedSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/saved-searches/3/run", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"Search completed","total_results":12,"new_results":4}`))
	})

	result, err := client.RunSavedSearch(context.Background(), "tok", 3)
	require.NoError(t, err)
	assert.Equal(t, 12, result.TotalResults)
	assert.Equal(t, 4, result.NewResults)
}

func TestClient_SearchResultsNewOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/saved-searches/3/results", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("new_only"))
		_, _ = w.Write([]byte(`{"search_name":"a","total_results":1,"results":[{"id":1,"url":"https://jobs.example/1","found_at":"2024-05-01T10:00:00","is_new":true}]}`))
	})

	page, err := client.SearchResults(context.Background(), "tok", 3, true)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.True(t, page.Results[0].IsNew)
}

func TestClient_SchedulerStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/scheduler/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"running":true,"next_run":"2024-05-01 12:30:00.123456+00:00","jobs_count":3}`))
	})

	status, err := client.SchedulerStatus(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.JobsCount)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, 30, status.NextRun.Minute())
}

func TestClient_SchedulerAction(t *testing.T) {
	t.Run("posts the action", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/admin/scheduler/run-now", r.URL.Path)
			_, _ = w.Write([]byte(`{"message":"Triggered 3 searches"}`))
		})

		ack, err := client.SchedulerAction(context.Background(), "tok", types.ActionRunNow)
		require.NoError(t, err)
		assert.Equal(t, "Triggered 3 searches", ack.Message)
	})

	t.Run("empty body is accepted", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		ack, err := client.SchedulerAction(context.Background(), "tok", types.ActionStop)
		require.NoError(t, err)
		assert.Empty(t, ack.Message)
	})

	t.Run("unknown action is rejected locally", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})

		_, err := client.SchedulerAction(context.Background(), "tok", types.SchedulerAction("pause"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
		assert.Equal(t, 0, calls)
	})
}

func TestClient_SearchWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var q types.AdhocQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "golang", q.Text)
		_, _ = w.Write([]byte(`["https://jobs.example/1","https://jobs.example/2"]`))
	})

	urls, err := client.Search(context.Background(), types.AdhocQuery{Text: "golang", Level: types.LevelIntern, Count: 2})
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}
