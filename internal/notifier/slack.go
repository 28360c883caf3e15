package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends run summaries to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration // used when a 5xx carries no Retry-After
}

// NewSlackNotifier returns a notifier that posts each summary to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Notify sends the summary as one Block Kit message. A 429 or 5xx reply is
// retried once, honouring Retry-After.
func (s *SlackNotifier) Notify(summary model.RunSummary) error {
	body, err := json.Marshal(buildPayload(summary))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(body)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		wait := retryAfter
		if wait <= 0 {
			wait = s.retryDelay
		}
		s.logger.Warn("slack unavailable, retrying", "status", status, "retry_after", wait)
		time.Sleep(wait)

		status, _, err = s.post(body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack message sent", "subject", summary.Subject, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack message sent", "subject", summary.Subject)
	return nil
}

func (s *SlackNotifier) post(body []byte) (int, time.Duration, error) {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a dummy run summary to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	return n.Notify(model.RunSummary{
		Mode:      "test",
		Subject:   "qgen test",
		Topic:     "Integration",
		Subtopic:  "Notification verified",
		Model:     "none",
		Requested: 1,
		Generated: 1,
		Duration:  time.Second,
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(s model.RunSummary) slackPayload {
	icon := "✅"
	if s.Failed > 0 {
		icon = "⚠️"
	}
	if s.Generated == 0 && s.Requested > 0 {
		icon = "❌"
	}

	title := capitalize(s.Subject)
	if s.Subtopic != "" {
		title += ": " + s.Subtopic
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: icon + " " + title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Mode:*\n" + capitalize(s.Mode)},
				{Type: "mrkdwn", Text: "*Model:*\n" + s.Model},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Generated:*\n%d of %d (%d failed)", s.Generated, s.Requested, s.Failed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Tokens:*\n%d in %s", s.Usage.TotalTokens, s.Duration.Round(time.Second))},
			},
		},
	}

	if len(s.Errors) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Failures:*\n• " + strings.Join(s.Errors, "\n• ")},
		})
	}
	if s.OutputPath != "" {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "Saved to `" + s.OutputPath + "`"}},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}
