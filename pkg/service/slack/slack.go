package slack

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/slack-go/slack"
)

const sinkName = "slack"

// Service posts alerts to a Slack channel as block kit messages with one
// button per analyst action.
type Service struct {
	client    interfaces.SlackClient
	channelID string

	maxRetries    int
	retryInterval time.Duration
}

var _ interfaces.AlertNotifier = &Service{}

// ServiceOption represents a configuration option for Service
type ServiceOption func(*Service)

// WithRetry sets how often a rate limited update is retried and the base
// interval used when Slack does not send Retry-After.
func WithRetry(maxRetries int, interval time.Duration) ServiceOption {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.retryInterval = interval
	}
}

func New(client interfaces.SlackClient, channelID string, opts ...ServiceOption) *Service {
	s := &Service{
		client:        client,
		channelID:     channelID,
		maxRetries:    3,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (x *Service) Name() string { return sinkName }

func (x *Service) NotifyAlert(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
	var channelID, ts string
	err := x.withRetry(ctx, func() error {
		var err error
		channelID, ts, err = x.client.PostMessageContext(ctx, x.channelID,
			slack.MsgOptionText(alert.Title(), false),
			slack.MsgOptionBlocks(buildOpenAlertBlocks(alert)...),
		)
		return err
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to post alert to slack",
			goerr.T(errs.TagSlackError), classify(err),
			goerr.TV(errs.AlertIDKey, alert.ID),
			goerr.V("channel_id", x.channelID))
	}

	return &incident.NotificationRef{
		Sink:      sinkName,
		ChannelID: channelID,
		MessageID: ts,
	}, nil
}

// NotifyResolution rewrites the alert message without its buttons and with
// the outcome appended.
func (x *Service) NotifyResolution(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
	err := x.withRetry(ctx, func() error {
		_, _, _, err := x.client.UpdateMessageContext(ctx, ref.ChannelID, ref.MessageID,
			slack.MsgOptionText(alert.Title(), false),
			slack.MsgOptionBlocks(buildResolvedAlertBlocks(alert, outcome)...),
		)
		return err
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update slack message",
			goerr.T(errs.TagSlackError), classify(err),
			goerr.TV(errs.AlertIDKey, alert.ID),
			goerr.V("channel_id", ref.ChannelID),
			goerr.V("ts", ref.MessageID))
	}

	logging.From(ctx).Debug("alert message updated",
		"alert_id", alert.ID,
		"channel_id", ref.ChannelID,
		"ts", ref.MessageID)
	return nil
}

func (x *Service) NotifyMitigation(ctx context.Context, report raid.Report) error {
	err := x.withRetry(ctx, func() error {
		_, _, err := x.client.PostMessageContext(ctx, x.channelID,
			slack.MsgOptionText(report.Summary(), false),
			slack.MsgOptionBlocks(buildMitigationBlocks(report)...),
		)
		return err
	})
	if err != nil {
		return goerr.Wrap(err, "failed to post mitigation report to slack",
			goerr.T(errs.TagSlackError), classify(err),
			goerr.TV(errs.CommunityIDKey, report.CommunityID))
	}
	return nil
}

// withRetry retries fn only while Slack answers with rate_limited.
func (x *Service) withRetry(ctx context.Context, fn func() error) error {
	logger := logging.From(ctx)

	var err error
	for attempt := 0; attempt <= x.maxRetries; attempt++ {
		if err = fn(); err == nil || !isRateLimitError(err) {
			return err
		}
		if attempt == x.maxRetries {
			break
		}

		waitTime := extractRetryAfter(err)
		if waitTime == 0 {
			waitTime = time.Duration(attempt+1) * x.retryInterval
		}
		logger.Warn("rate limited by slack, waiting before retry",
			"wait_time", waitTime,
			"attempt", attempt+1,
			"max_retries", x.maxRetries)

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "context done while waiting for slack rate limit", goerr.T(errs.TagTimeout))
		case <-time.After(waitTime):
		}
	}
	return err
}

func classify(err error) goerr.Option {
	if isRateLimitError(err) {
		return goerr.T(errs.TagRateLimit)
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch slackErr.Err {
		case "channel_not_found", "message_not_found":
			return goerr.T(errs.TagNotFound)
		case "not_in_channel", "missing_scope", "not_authed", "invalid_auth", "cant_update_message":
			return goerr.T(errs.TagForbidden)
		}
	}
	return goerr.T(errs.TagExternal)
}

func isRateLimitError(err error) bool {
	var rateLimitErr *slack.RateLimitedError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == "rate_limited"
	}
	return false
}

func extractRetryAfter(err error) time.Duration {
	var rateLimitErr *slack.RateLimitedError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) && len(slackErr.ResponseMetadata.Messages) > 0 {
		if seconds, parseErr := strconv.Atoi(slackErr.ResponseMetadata.Messages[0]); parseErr == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
