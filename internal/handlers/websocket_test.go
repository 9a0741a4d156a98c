package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/services/events"
)

func newTestHub(t *testing.T) (*WebSocketHandler, *httptest.Server) {
	t.Helper()
	handler := NewWebSocketHandler(arbor.NewLogger(), "test")
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	return handler, server
}

func dialTestClient(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// collectMessages reads frames until the deadline passes or stop returns true
func collectMessages(conn *websocket.Conn, deadline time.Duration, stop func([]WSMessage) bool) []WSMessage {
	var messages []WSMessage
	conn.SetReadDeadline(time.Now().Add(deadline))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return messages
		}
		messages = append(messages, msg)
		if stop != nil && stop(messages) {
			return messages
		}
	}
}

func countByType(messages []WSMessage, msgType string) int {
	n := 0
	for _, msg := range messages {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

// waitFor polls a condition until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestWebSocketHelloOnConnect(t *testing.T) {
	_, server := newTestHub(t)
	conn := dialTestClient(t, server)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read hello frame: %v", err)
	}

	if msg.Type != "hello" {
		t.Fatalf("Expected first frame type 'hello', got %q", msg.Type)
	}

	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected hello payload type: %T", msg.Payload)
	}
	instanceID, _ := payload["server_instance_id"].(string)
	if instanceID == "" {
		t.Error("Expected non-empty server_instance_id")
	}
	if payload["version"] != "test" {
		t.Errorf("Expected version 'test', got %v", payload["version"])
	}
}

func TestBroadcastLogFanOut(t *testing.T) {
	handler, server := newTestHub(t)

	numSubscribers := 3
	conns := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conns[i] = dialTestClient(t, server)
	}

	waitFor(t, 2*time.Second, func() bool { return handler.ClientCount() == numSubscribers })

	logs := []LogEntry{
		{Timestamp: "10:00:01", Level: "info", Message: "Job submitted"},
		{Timestamp: "10:00:02", Level: "warn", Message: "Attempt failed"},
		{Timestamp: "10:00:03", Level: "info", Message: "Job completed"},
	}

	// Send concurrently to exercise the per-connection write mutexes
	var wg sync.WaitGroup
	for _, entry := range logs {
		wg.Add(1)
		go func(e LogEntry) {
			defer wg.Done()
			handler.BroadcastLog(e)
		}(entry)
	}
	wg.Wait()

	for i, conn := range conns {
		messages := collectMessages(conn, 2*time.Second, func(msgs []WSMessage) bool {
			return countByType(msgs, "log") >= len(logs)
		})
		if got := countByType(messages, "log"); got != len(logs) {
			t.Errorf("Subscriber %d received %d log frames, expected %d", i, got, len(logs))
		}
	}

	// Disconnects must clean up the client and mutex maps
	for _, conn := range conns {
		conn.Close()
	}
	waitFor(t, 2*time.Second, func() bool { return handler.ClientCount() == 0 })
}

func TestBroadcastEventReachesClients(t *testing.T) {
	handler, server := newTestHub(t)
	conn := dialTestClient(t, server)

	waitFor(t, 2*time.Second, func() bool { return handler.ClientCount() == 1 })

	handler.BroadcastEvent("job_progress", map[string]interface{}{
		"job_id":   "abc-123",
		"progress": 40,
	})

	messages := collectMessages(conn, 2*time.Second, func(msgs []WSMessage) bool {
		return countByType(msgs, "job_progress") >= 1
	})

	var found *WSMessage
	for i := range messages {
		if messages[i].Type == "job_progress" {
			found = &messages[i]
			break
		}
	}
	if found == nil {
		t.Fatal("Never received job_progress frame")
	}

	payload, ok := found.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected payload type: %T", found.Payload)
	}
	if payload["job_id"] != "abc-123" {
		t.Errorf("Expected job_id 'abc-123', got %v", payload["job_id"])
	}
	if payload["progress"] != float64(40) {
		t.Errorf("Expected progress 40, got %v", payload["progress"])
	}
}

func TestEventSubscriberWhitelist(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger(), "test")
	subscriber := NewEventSubscriber(handler, nil, arbor.NewLogger(), &common.WebSocketConfig{
		AllowedEvents: []string{"job_completed", "job_failed"},
	})

	if !subscriber.shouldBroadcastEvent("job_completed") {
		t.Error("Whitelisted event should broadcast")
	}
	if subscriber.shouldBroadcastEvent("job_progress") {
		t.Error("Non-whitelisted event should not broadcast")
	}
}

func TestEventSubscriberAllowsAllWhenWhitelistEmpty(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger(), "test")
	subscriber := NewEventSubscriber(handler, nil, arbor.NewLogger(), &common.WebSocketConfig{})

	for _, eventType := range []string{"job_submitted", "job_progress", "maintenance_completed"} {
		if !subscriber.shouldBroadcastEvent(eventType) {
			t.Errorf("Event %q should broadcast with empty whitelist", eventType)
		}
	}
}

func TestEventSubscriberThrottlesHighFrequencyEvents(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger(), "test")
	subscriber := NewEventSubscriber(handler, nil, arbor.NewLogger(), &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{"job_progress": "1s"},
	})

	if !subscriber.shouldBroadcastEvent("job_progress") {
		t.Error("First event should pass the throttle")
	}
	if subscriber.shouldBroadcastEvent("job_progress") {
		t.Error("Immediate second event should be throttled")
	}
	// Other event types are unaffected
	if !subscriber.shouldBroadcastEvent("job_completed") {
		t.Error("Unthrottled event type should broadcast")
	}
}

func TestEventSubscriberRelaysBusEvents(t *testing.T) {
	handler, server := newTestHub(t)

	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()
	NewEventSubscriber(handler, eventService, arbor.NewLogger(), &common.WebSocketConfig{})

	conn := dialTestClient(t, server)
	waitFor(t, 2*time.Second, func() bool { return handler.ClientCount() == 1 })

	err := eventService.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventJobSubmitted,
		Payload: events.JobEventPayload{
			JobID:   "abc-123",
			JobType: "prior_art",
			Status:  "pending",
		},
	})
	if err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	messages := collectMessages(conn, 2*time.Second, func(msgs []WSMessage) bool {
		return countByType(msgs, "job_submitted") >= 1
	})
	if countByType(messages, "job_submitted") == 0 {
		t.Fatal("Never received job_submitted frame")
	}

	for _, msg := range messages {
		if msg.Type != "job_submitted" {
			continue
		}
		payload, ok := msg.Payload.(map[string]interface{})
		if !ok {
			t.Fatalf("Unexpected payload type: %T", msg.Payload)
		}
		if payload["job_id"] != "abc-123" {
			t.Errorf("Expected job_id 'abc-123', got %v", payload["job_id"])
		}
		if payload["status"] != "pending" {
			t.Errorf("Expected status 'pending', got %v", payload["status"])
		}
	}
}

func TestLogStreamerStreamsFilteredLogs(t *testing.T) {
	handler, server := newTestHub(t)

	streamer := NewLogStreamer(handler, arbor.NewLogger(), &common.WebSocketConfig{
		MinLevel:        "warn",
		ExcludePatterns: []string{"heartbeat"},
	})
	if err := streamer.Start(); err != nil {
		t.Fatalf("Failed to start streamer: %v", err)
	}
	defer streamer.Stop()

	// Dedicated logger wired to the streamer channel, separate from the
	// hub's own logger so connection noise stays out of the stream.
	streamLogger := arbor.NewLogger()
	streamLogger.SetChannel("context", streamer.GetChannel())

	conn := dialTestClient(t, server)
	waitFor(t, 2*time.Second, func() bool { return handler.ClientCount() == 1 })

	streamLogger.Info().Msg("queue ready")       // below min level
	streamLogger.Warn().Msg("heartbeat skipped") // excluded pattern
	streamLogger.Warn().Msg("queue depth high")
	streamLogger.Error().Msg("worker crashed")

	messages := collectMessages(conn, 3*time.Second, func(msgs []WSMessage) bool {
		seen := logEntriesByMessage(msgs)
		return hasMessage(seen, "queue depth high") && hasMessage(seen, "worker crashed")
	})
	seen := logEntriesByMessage(messages)

	if !hasMessage(seen, "queue depth high") {
		t.Error("Expected warn log to be streamed")
	}
	if !hasMessage(seen, "worker crashed") {
		t.Error("Expected error log to be streamed")
	}
	if hasMessage(seen, "queue ready") {
		t.Error("Info log should have been filtered by min level")
	}
	if hasMessage(seen, "heartbeat skipped") {
		t.Error("Excluded pattern should have been filtered")
	}

	for message, level := range seen {
		switch {
		case strings.Contains(message, "queue depth high") && level != "warn":
			t.Errorf("Expected level 'warn' for %q, got %q", message, level)
		case strings.Contains(message, "worker crashed") && level != "error":
			t.Errorf("Expected level 'error' for %q, got %q", message, level)
		}
	}
}

func TestLogLevelMapping(t *testing.T) {
	stringTests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range stringTests {
		if got := mapLevel(parseLogLevel(tt.in)); got != tt.want {
			t.Errorf("mapLevel(parseLogLevel(%q)) = %q, want %q", tt.in, got, tt.want)
		}
	}

	plogTests := []struct {
		in   plog.Level
		want string
	}{
		{plog.DebugLevel, "debug"},
		{plog.InfoLevel, "info"},
		{plog.WarnLevel, "warn"},
		{plog.ErrorLevel, "error"},
		{plog.TraceLevel, "info"}, // unmapped levels fall back to info
	}
	for _, tt := range plogTests {
		if got := mapLevel(plogToArborLevel(tt.in)); got != tt.want {
			t.Errorf("mapLevel(plogToArborLevel(%v)) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// logEntriesByMessage indexes streamed log frames by message text
func logEntriesByMessage(messages []WSMessage) map[string]string {
	entries := make(map[string]string)
	for _, msg := range messages {
		if msg.Type != "log" {
			continue
		}
		data, err := json.Marshal(msg.Payload)
		if err != nil {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries[entry.Message] = entry.Level
	}
	return entries
}

// hasMessage reports whether any streamed message contains the given text
func hasMessage(entries map[string]string, text string) bool {
	for message := range entries {
		if strings.Contains(message, text) {
			return true
		}
	}
	return false
}
