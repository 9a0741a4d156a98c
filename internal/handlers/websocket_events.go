package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"golang.org/x/time/rate"
)

// EventSubscriber relays job lifecycle events from the event bus to
// WebSocket clients, with config-driven whitelisting and throttling.
type EventSubscriber struct {
	handler       *WebSocketHandler
	eventService  interfaces.EventService
	logger        arbor.ILogger
	allowedEvents map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[string]*rate.Limiter // Rate limiters for high-frequency events
}

// NewEventSubscriber creates the subscriber and registers it for every job
// lifecycle event. Event payloads are typed structs published by the jobs
// service, so a single relay handler serves all event types.
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:      handler,
		eventService: eventService,
		logger:       logger,
	}

	// Empty whitelist means allow all events
	s.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}
	}

	s.throttlers = make(map[string]*rate.Limiter)
	if config != nil && len(config.ThrottleIntervals) > 0 {
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
				continue
			}
			// 1 event per interval, burst of 1
			s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Throttler initialized for event type")
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	s.SubscribeAll()
	return s
}

// SubscribeAll registers subscriptions for all job lifecycle events
func (s *EventSubscriber) SubscribeAll() {
	if s.eventService == nil {
		s.logger.Warn().Msg("Cannot subscribe to events - eventService is nil")
		return
	}

	eventTypes := []interfaces.EventType{
		interfaces.EventJobSubmitted,
		interfaces.EventJobStarted,
		interfaces.EventJobProgress,
		interfaces.EventJobRetrying,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
		interfaces.EventJobCancelled,
		interfaces.EventMaintenance,
	}
	for _, eventType := range eventTypes {
		if err := s.eventService.Subscribe(eventType, s.relay); err != nil {
			s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe to event")
		}
	}

	s.logger.Info().Msg("EventSubscriber registered for all job lifecycle events")
}

// relay broadcasts an event payload to all clients under its event type name
func (s *EventSubscriber) relay(ctx context.Context, event interfaces.Event) error {
	if !s.shouldBroadcastEvent(string(event.Type)) {
		return nil
	}
	s.handler.BroadcastEvent(string(event.Type), event.Payload)
	return nil
}

// shouldBroadcastEvent checks the whitelist and the per-event rate limiter
func (s *EventSubscriber) shouldBroadcastEvent(eventType string) bool {
	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return false
	}

	if limiter, ok := s.throttlers[eventType]; ok {
		if !limiter.Allow() {
			s.logger.Debug().
				Str("event_type", eventType).
				Msg("Event throttled - rate limit exceeded")
			return false
		}
	}

	return true
}
