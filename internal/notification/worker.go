package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"gardenshop-tracker/internal/model"
	"gardenshop-tracker/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// RestockEvent announces a new listing for a shop.
type RestockEvent struct {
	Key   model.ShopKey
	Items []model.Item
}

// Message renders the notification text for the event.
func (e RestockEvent) Message() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("%s restocked", e.Key.DisplayName())
	}
	names := make([]string, len(e.Items))
	for i, item := range e.Items {
		names[i] = fmt.Sprintf("%s x%d", item.Name, item.Quantity)
	}
	return fmt.Sprintf("%s restocked: %s", e.Key.DisplayName(), strings.Join(names, ", "))
}

// WorkerPool manages a pool of workers for sending restock notifications.
type WorkerPool struct {
	size    int
	jobs    chan RestockEvent
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan RestockEvent, queueSize),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case event := <-wp.jobs:
			log.Debug().Int("worker", id).Str("shop", string(event.Key)).Msg("processing restock")
			wp.notifySubscribers(ctx, event)
		case <-ctx.Done():
			log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues an event without blocking. It reports false when the
// queue is full and the event was dropped.
func (wp *WorkerPool) Dispatch(event RestockEvent) bool {
	select {
	case wp.jobs <- event:
		return true
	default:
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan RestockEvent {
	return wp.jobs
}

func (wp *WorkerPool) notifySubscribers(ctx context.Context, event RestockEvent) {
	subscriptions, err := wp.store.SubscribersFor(ctx, event.Key)
	if err != nil {
		log.Error().Err(err).Str("shop", string(event.Key)).Msg("failed to load subscribers")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Info().Int("count", len(subscriptions)).Str("shop", string(event.Key)).Msg("sending restock notifications")

	message := []byte(event.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired; deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
