package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/review-service/internal/config"
	"github.com/spec-kit/review-service/internal/events"
)

// NotificationService turns submission events into outbound notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSubmissionCreated, n.handleSubmissionCreated)
	n.dispatcher.Subscribe(events.EventSubmissionTransitioned, n.handleSubmissionTransitioned)
	n.dispatcher.Subscribe(events.EventSubmissionDeleted, n.handleSubmissionDeleted)
}

func (n *NotificationService) handleSubmissionCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("SubmissionCreated", zap.String("submission_id", event.SubmissionID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// A status change made by someone other than the owner is mailed to the owner.
func (n *NotificationService) handleSubmissionTransitioned(ctx context.Context, event events.Event) error {
	n.logger.Info("SubmissionTransitioned", zap.String("submission_id", event.SubmissionID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.SubmissionTransitionedPayload); ok && payload.OwnerID != event.Actor.UserID {
		n.sendEmailNotificationStub(ctx, event, payload.OwnerID)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSubmissionDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("SubmissionDeleted", zap.String("submission_id", event.SubmissionID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, recipientID string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", recipientID),
		zap.String("submission_id", event.SubmissionID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("submission_id", event.SubmissionID),
		zap.String("event_type", string(event.Type)))
}
