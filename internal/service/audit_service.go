package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/flightapp/flight-auth/internal/events"
)

// AuditService writes authentication events to the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleInfo)
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleInfo)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleWarn)
	a.dispatcher.Subscribe(events.EventRegistrationRejected, a.handleWarn)
	a.dispatcher.Subscribe(events.EventTokenRejected, a.handleDebug)
}

func (a *AuditService) handleInfo(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) handleWarn(_ context.Context, event events.Event) error {
	a.logger.Warn(string(event.Type), a.fields(event)...)
	return nil
}

// Token rejections are noisy under scanning traffic; keep them below info.
func (a *AuditService) handleDebug(_ context.Context, event events.Event) error {
	a.logger.Debug(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Time("at", event.Timestamp),
	}
	if event.Username != "" {
		fields = append(fields, zap.String("username", event.Username))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	return fields
}
