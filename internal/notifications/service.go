// Package notifications posts saved-search and scheduler events to Slack.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/0xPuncker/job-watcher/pkg/utils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type NotificationService struct {
	slackService *SlackService
	location     *time.Location
}

func NewNotificationService(slackService *SlackService) *NotificationService {
	return &NotificationService{
		slackService: slackService,
		location:     time.Local,
	}
}

// NotifyNewResults reports that search gained delta unseen results.
func (s *NotificationService) NotifyNewResults(ctx context.Context, search types.SavedSearch, delta int) error {
	return s.slackService.SendSlackMessage(ctx, s.formatNewResults(search, delta))
}

func (s *NotificationService) formatNewResults(search types.SavedSearch, delta int) *SlackMessage {
	fields := []Field{
		{
			Title: "Job Title",
			Value: search.JobTitle,
			Short: true,
		},
		{
			Title: "Experience Level",
			Value: utils.LevelLabel(search.ExperienceLevel),
			Short: true,
		},
		{
			Title: "New Results",
			Value: fmt.Sprintf("%d", search.NewResultsCount),
			Short: true,
		},
		{
			Title: "Last Run",
			Value: utils.FormatTimestamp(search.LastRunAt, s.location),
			Short: true,
		},
	}

	noun := "results"
	if delta == 1 {
		noun = "result"
	}

	return &SlackMessage{
		Text: fmt.Sprintf("🔎 %d new %s for %s", delta, noun, cases.Title(language.English).String(search.Name)),
		Attachments: []Attachment{
			{
				Color:  "#36a64f",
				Fields: fields,
				Footer: fmt.Sprintf("Saved search #%d", search.ID),
				Ts:     time.Now().Unix(),
			},
		},
	}
}

// NotifySchedulerAction reports the outcome of a scheduler control action.
func (s *NotificationService) NotifySchedulerAction(ctx context.Context, action types.SchedulerAction, message string, actionErr error) error {
	return s.slackService.SendSlackMessage(ctx, s.formatSchedulerAction(action, message, actionErr))
}

func (s *NotificationService) formatSchedulerAction(action types.SchedulerAction, message string, actionErr error) *SlackMessage {
	color, icon, status := "good", "✅", "success"
	if actionErr != nil {
		color, icon, status = "danger", "❌", "failed"
		message = actionErr.Error()
	}

	fields := []Field{
		{
			Title: "Action",
			Value: string(action),
			Short: true,
		},
		{
			Title: "Status",
			Value: status,
			Short: true,
		},
	}
	if message != "" {
		fields = append(fields, Field{
			Title: "Details",
			Value: message,
			Short: false,
		})
	}

	return &SlackMessage{
		Text: fmt.Sprintf("%s Scheduler Update", icon),
		Attachments: []Attachment{
			{
				Color:  color,
				Fields: fields,
				Ts:     time.Now().Unix(),
			},
		},
	}
}
