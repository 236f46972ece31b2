package notifications

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

func newTestService(t *testing.T, status int) (*NotificationService, <-chan SlackMessage) {
	t.Helper()
	received := make(chan SlackMessage, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg SlackMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			received <- msg
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	slack, err := NewSlackService(logger, ts.URL)
	require.NoError(t, err)
	return NewNotificationService(slack), received
}

func TestNewSlackServiceRequiresURL(t *testing.T) {
	_, err := NewSlackService(logrus.New(), "")
	assert.Error(t, err)
}

func TestNotifyNewResults(t *testing.T) {
	svc, received := newTestService(t, http.StatusOK)
	svc.location = time.UTC

	ran := types.NewTimestamp(time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC))
	search := types.SavedSearch{
		ID:              7,
		Name:            "senior fe",
		JobTitle:        "Frontend Developer",
		ExperienceLevel: types.LevelSenior,
		NewResultsCount: 5,
		LastRunAt:       &ran,
	}

	require.NoError(t, svc.NotifyNewResults(context.Background(), search, 2))

	msg := <-received
	assert.Equal(t, "🔎 2 new results for Senior Fe", msg.Text)
	require.Len(t, msg.Attachments, 1)
	fields := msg.Attachments[0].Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "Senior Level", fields[1].Value)
	assert.Equal(t, "5", fields[2].Value)
	assert.Equal(t, "May 1, 2024, 02:30 PM", fields[3].Value)
	assert.Equal(t, "Saved search #7", msg.Attachments[0].Footer)
}

func TestNotifySchedulerAction(t *testing.T) {
	svc, received := newTestService(t, http.StatusOK)

	require.NoError(t, svc.NotifySchedulerAction(context.Background(), types.ActionRunNow, "Triggered 3 searches", nil))
	msg := <-received
	assert.Equal(t, "✅ Scheduler Update", msg.Text)
	assert.Equal(t, "good", msg.Attachments[0].Color)
	assert.Equal(t, "Triggered 3 searches", msg.Attachments[0].Fields[2].Value)

	require.NoError(t, svc.NotifySchedulerAction(context.Background(), types.ActionStop, "", errors.New("boom")))
	msg = <-received
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "boom", msg.Attachments[0].Fields[2].Value)
}

func TestSendSlackMessageNon200(t *testing.T) {
	svc, _ := newTestService(t, http.StatusInternalServerError)

	err := svc.NotifyNewResults(context.Background(), types.SavedSearch{Name: "x"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
