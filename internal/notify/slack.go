package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

// Poster posts chat messages. *slack.Client satisfies it.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type SlackNotifier struct {
	client  Poster
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return NewSlackNotifierWithPoster(slack.New(token), channel)
}

func NewSlackNotifierWithPoster(client Poster, channel string) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel}
}

// ReportFinished posts the outcome of a generation attempt.
func (s *SlackNotifier) ReportFinished(ctx context.Context, r *models.Report) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(reportAttachment(r, time.Now())))
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

func reportAttachment(r *models.Report, now time.Time) slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Type", Value: r.Type.DisplayName(), Short: true},
		{Title: "Format", Value: string(r.Format), Short: true},
		{Title: "Status", Value: string(r.Status), Short: true},
	}
	if r.ErrorMessage != "" {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: r.ErrorMessage})
	}

	return slack.Attachment{
		Color:  statusColor(r.Status),
		Title:  fmt.Sprintf("Report %s: %s", r.Status, r.Title),
		Fields: fields,
		Footer: "Decommissioning Reports",
		Ts:     json.Number(strconv.FormatInt(now.Unix(), 10)),
	}
}

func statusColor(status models.ReportStatus) string {
	switch status {
	case models.ReportStatusCompleted:
		return "#36a64f"
	case models.ReportStatusFailed:
		return "#ff0000"
	case models.ReportStatusInProgress:
		return "#ffcc00"
	default:
		return "#808080"
	}
}
