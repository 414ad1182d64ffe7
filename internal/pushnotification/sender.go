package pushnotification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/atelierhub/portal/internal/config"
	"github.com/atelierhub/portal/internal/pushsubscription"
)

// NotificationPayload is the JSON body handed to the browser's service
// worker.
type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Notifier delivers a payload to every registered subscription.
type Notifier interface {
	SendToAll(ctx context.Context, payload *NotificationPayload)
}

// Sender pushes payloads over the Web Push protocol. Delivery is best
// effort: failures are logged, and endpoints that report 410 Gone are
// unregistered.
type Sender struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	logger   *slog.Logger
}

func NewSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, logger *slog.Logger) *Sender {
	return &Sender{vapidEnv: vapidEnv, repo: repo, logger: logger}
}

func (s *Sender) SendToAll(ctx context.Context, payload *NotificationPayload) {
	if s.vapidEnv.VAPIDPrivateKey == "" || s.vapidEnv.VAPIDPublicKey == "" {
		s.logger.WarnContext(ctx, "push notification skipped: VAPID keys not configured")
		return
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list push subscriptions",
			slog.String("error", err.Error()))
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal push payload",
			slog.String("error", err.Error()))
		return
	}

	for _, sub := range subs {
		s.sendToSubscription(ctx, sub, data)
	}
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotification(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapidEnv.VAPIDPublicKey,
		VAPIDPrivateKey: s.vapidEnv.VAPIDPrivateKey,
		Subscriber:      s.vapidEnv.VAPIDContact,
		TTL:             86400,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send push notification",
			slog.String("endpoint", sub.Endpoint), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		s.logger.InfoContext(ctx, "push subscription expired, removing",
			slog.String("endpoint", sub.Endpoint))
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete expired push subscription",
				slog.String("id", sub.ID), slog.String("error", err.Error()))
		}
		return
	}

	if resp.StatusCode >= 400 {
		s.logger.WarnContext(ctx, "push endpoint returned unexpected status",
			slog.String("endpoint", sub.Endpoint), slog.Int("status", resp.StatusCode))
	}
}
