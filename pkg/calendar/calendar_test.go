package calendar

import (
	"net/url"
	"testing"
	"time"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEventURL(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name        string
		title       string
		startTime   time.Time
		endTime     time.Time
		expectError bool
	}{
		{
			name:      "valid event",
			title:     "Test Event",
			startTime: now,
			endTime:   now.Add(time.Hour),
		},
		{
			name:        "empty title",
			title:       "",
			startTime:   now,
			endTime:     now.Add(time.Hour),
			expectError: true,
		},
		{
			name:        "end time before start time",
			title:       "Test Event",
			startTime:   now,
			endTime:     now.Add(-time.Hour),
			expectError: true,
		},
		{
			name:        "same start and end time",
			title:       "Test Event",
			startTime:   now,
			endTime:     now,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := CreateEventURL(tt.title, "details", tt.startTime, tt.endTime)
			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, link)
				return
			}
			require.NoError(t, err)
			u, err := url.Parse(link)
			require.NoError(t, err)
			assert.Equal(t, "calendar.google.com", u.Host)
			assert.Equal(t, "TEMPLATE", u.Query().Get("action"))
			assert.Equal(t, tt.title, u.Query().Get("text"))
		})
	}
}

func TestNextRunURL(t *testing.T) {
	next := types.NewTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	link, err := NextRunURL(&types.SchedulerStatus{Running: true, NextRun: &next, JobsCount: 1})
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "20240501T120000Z/20240501T121500Z", u.Query().Get("dates"))
	assert.Equal(t, "Scheduled run of 1 saved search", u.Query().Get("details"))

	_, err = NextRunURL(&types.SchedulerStatus{Running: false, NextRun: &next})
	assert.Error(t, err)
	_, err = NextRunURL(&types.SchedulerStatus{Running: true})
	assert.Error(t, err)
	_, err = NextRunURL(nil)
	assert.Error(t, err)
}
