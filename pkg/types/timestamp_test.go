package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "rfc3339 utc",
			input:    "2024-01-01T00:00:00Z",
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "rfc3339 with offset",
			input:    "2024-01-01T02:00:00+02:00",
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "naive iso with micros",
			input:    "2024-03-05T10:20:30.123456",
			expected: time.Date(2024, 3, 5, 10, 20, 30, 123456000, time.UTC),
		},
		{
			name:     "python str form",
			input:    "2024-03-05 10:50:00",
			expected: time.Date(2024, 3, 5, 10, 50, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "next tuesday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestSchedulerStatusDecodesNullNextRun(t *testing.T) {
	var status SchedulerStatus
	err := json.Unmarshal([]byte(`{"running":false,"next_run":null,"jobs_count":3}`), &status)
	require.NoError(t, err)

	assert.False(t, status.Running)
	assert.Nil(t, status.NextRun)
	assert.Equal(t, 3, status.JobsCount)
}

func TestSavedSearchDecodesNaiveDatetimes(t *testing.T) {
	body := `{"id":7,"name":"Senior FE","job_title":"Frontend Developer","experience_level":"senior level",
		"count":25,"is_active":true,"notification_email":null,"last_run_at":"2024-01-02T08:00:00.5",
		"created_at":"2024-01-01T00:00:00Z","new_results_count":0}`

	var search SavedSearch
	require.NoError(t, json.Unmarshal([]byte(body), &search))

	assert.Equal(t, int64(7), search.ID)
	assert.Equal(t, LevelSenior, search.ExperienceLevel)
	assert.Empty(t, search.Email())
	require.NotNil(t, search.LastRunAt)
	assert.Equal(t, 500*time.Millisecond, time.Duration(search.LastRunAt.Nanosecond()))
	assert.True(t, search.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestExperienceLevelValid(t *testing.T) {
	for _, level := range ExperienceLevels {
		assert.True(t, level.Valid(), string(level))
	}
	assert.False(t, ExperienceLevel("principal").Valid())
	assert.False(t, ExperienceLevel("").Valid())
}

func TestRunResultSummary(t *testing.T) {
	r := RunResult{TotalResults: 40, NewResults: 5}
	assert.Equal(t, "Search completed! Found 40 total results, 5 new.", r.Summary())
}

func TestPatchFromDraftSendsEveryField(t *testing.T) {
	p := PatchFromDraft(Draft{Name: "a", JobTitle: "b", ExperienceLevel: LevelIntern, Count: 10})
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Len(t, fields, 5)
	assert.NotContains(t, fields, "is_active")

	data, err = json.Marshal(ActivePatch(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_active":false}`, string(data))
}
