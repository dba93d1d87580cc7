package handlers

import (
	"context"

	"github.com/maruel/ksid"
	"github.com/maruel/plancart/internal/notify"
	"github.com/maruel/plancart/internal/server/dto"
)

// NotificationHandler serves visible notifications and push subscriptions.
type NotificationHandler struct {
	center *notify.Center
	pusher *notify.Pusher
}

// NewNotificationHandler creates a NotificationHandler. pusher may be nil,
// which disables the push endpoints.
func NewNotificationHandler(center *notify.Center, pusher *notify.Pusher) *NotificationHandler {
	return &NotificationHandler{center: center, pusher: pusher}
}

// List returns the session's notifications that are still on screen.
func (h *NotificationHandler) List(_ context.Context, session ksid.ID, _ *dto.ListNotificationsRequest) (*dto.NotificationsResponse, error) {
	return &dto.NotificationsResponse{
		Notifications: notificationsToDTO(h.center.Active(session.String())),
		DelayMS:       h.center.Delay().Milliseconds(),
	}, nil
}

// VAPIDKey returns the application server key for pushManager.subscribe.
func (h *NotificationHandler) VAPIDKey(_ context.Context, _ *dto.GetVAPIDKeyRequest) (*dto.VAPIDKeyResponse, error) {
	if h.pusher == nil {
		return nil, dto.NotImplemented("push notifications")
	}
	return &dto.VAPIDKeyResponse{PublicKey: h.pusher.PublicKey()}, nil
}

// Subscribe stores a browser push subscription for the session.
func (h *NotificationHandler) Subscribe(ctx context.Context, session ksid.ID, req *dto.SubscribePushRequest) (*dto.PushSubscriptionResponse, error) {
	if h.pusher == nil {
		return nil, dto.NotImplemented("push notifications")
	}
	sub, err := h.pusher.Subscribe(session.String(), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		return nil, dto.InternalWithError("failed to store subscription", err)
	}
	return &dto.PushSubscriptionResponse{ID: sub.ID.String()}, nil
}
