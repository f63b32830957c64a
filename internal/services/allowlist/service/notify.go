package service

import (
	"context"

	"rolesync/internal/platform/logger"
	"rolesync/internal/services/allowlist/domain"
)

// Notifier tells a member their role was just granted. Delivery is best effort
type Notifier interface {
	Notify(ctx context.Context, m domain.Membership)
}

type messengerSink struct{ m domain.Messenger }

// Notify swallows delivery failures; closed DMs are common and not a fault
func (s messengerSink) Notify(ctx context.Context, m domain.Membership) {
	if err := s.m.Congratulate(ctx, m); err != nil {
		logger.C(ctx).Debug().Err(err).Msg("congratulation not delivered")
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Membership) {}

// NewNotifier adapts a Messenger; nil gives a notifier that does nothing
func NewNotifier(m domain.Messenger) Notifier {
	if m == nil {
		return nopNotifier{}
	}
	return messengerSink{m: m}
}
