package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/sirupsen/logrus"
)

type SlackService struct {
	logger     *logrus.Logger
	webhookURL string
	client     *http.Client
}

type SlackMessage struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color  string  `json:"color,omitempty"`
	Text   string  `json:"text,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	Ts     int64   `json:"ts,omitempty"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewSlackService(logger *logrus.Logger, webhookURL string) (*SlackService, error) {
	if webhookURL == "" {
		return nil, errors.New("slack webhook URL is not set")
	}

	return &SlackService{
		logger:     logger,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *SlackService) SendSlackMessage(ctx context.Context, message *SlackMessage) error {
	jsonMessage, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "error marshaling slack message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonMessage))
	if err != nil {
		return errors.Wrap(err, "error creating slack request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Network(err, "error sending slack message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("slack API returned non-200 status code: %d", resp.StatusCode)
	}

	s.logger.Debug("Successfully sent message to Slack")
	return nil
}
