package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/metrics"
	"craftMaxxingAPI/internal/notification"
	types "craftMaxxingAPI/internal/types/notification"
)

const (
	dispatchQueueSize = 100
	enqueueTimeout    = 5 * time.Second
	jobTimeout        = 10 * time.Second
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []types.DeviceToken, n *types.Notification) error
}

// LiveSender delivers to clients connected right now.
type LiveSender interface {
	Send(n *types.Notification) error
}

// NotificationDispatcher persists notifications and fans them out to push and
// live channels on a fixed pool of workers.
type NotificationDispatcher struct {
	store        NotificationStore
	pushProvider PushNotificationProvider
	live         LiveSender
	workers      int
	jobQueue     chan *types.Notification
	stopChan     chan struct{}
	wg           sync.WaitGroup

	// mu orders enqueues before shutdown: Notify holds it shared while it
	// enqueues, Stop exclusively while it flips stopped.
	mu      sync.RWMutex
	stopped bool
}

func NewNotificationDispatcher(store NotificationStore, workers int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 5
	}
	d := &NotificationDispatcher{
		store:    store,
		workers:  workers,
		jobQueue: make(chan *types.Notification, dispatchQueueSize),
		stopChan: make(chan struct{}),
	}
	d.startWorkers()
	return d
}

// SetPushProvider injects the FCM provider from main.go.
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) SetLiveSender(live LiveSender) {
	d.live = live
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.jobQueue:
			d.processJob(n)
		case <-d.stopChan:
			// drain what is already queued
			for {
				select {
				case n := <-d.jobQueue:
					d.processJob(n)
				default:
					return
				}
			}
		}
	}
}

func (d *NotificationDispatcher) processJob(n *types.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := d.store.CreateNotification(ctx, n); err != nil {
		log.Error().Err(err).Str("user_id", n.UserID).Str("type", string(n.Type)).Msg("processJob: failed to store notification")
		metrics.NotificationsDispatched.WithLabelValues("store_failed").Inc()
		return
	}

	if d.pushProvider != nil {
		tokens, err := d.store.ListDeviceTokens(ctx, n.UserID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("user_id", n.UserID).Msg("processJob: failed to load device tokens")
		case len(tokens) > 0:
			if err := d.pushProvider.SendPush(ctx, tokens, n); err != nil {
				log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("processJob: push failed")
				metrics.NotificationsDispatched.WithLabelValues("push_failed").Inc()
			}
		}
	}

	if d.live != nil {
		if err := d.live.Send(n); err != nil && !errors.Is(err, notification.ErrNotConnected) {
			log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("processJob: live delivery failed")
		}
	}

	metrics.NotificationsDispatched.WithLabelValues("stored").Inc()
}

// Notify queues n for delivery. A full queue drops n after a short wait.
func (d *NotificationDispatcher) Notify(n *types.Notification) {
	if n == nil || n.UserID == "" {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		log.Warn().Str("notification_id", n.ID.String()).Msg("Notify: dispatcher stopped, dropping notification")
		metrics.NotificationsDispatched.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case d.jobQueue <- n:
		log.Debug().Str("notification_id", n.ID.String()).Str("type", string(n.Type)).Msg("Notify: queued")
	case <-time.After(enqueueTimeout):
		log.Error().Str("notification_id", n.ID.String()).Msg("Notify: queue full, dropping notification")
		metrics.NotificationsDispatched.WithLabelValues("dropped").Inc()
	}
}

// Stop drains the queue and waits for the workers to exit. Notifications
// queued before Stop returns are all processed; later ones are dropped.
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
