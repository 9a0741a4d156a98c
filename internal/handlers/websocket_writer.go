package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/assero/internal/common"
)

// logChannelBuffer bounds the number of batches arbor can queue before it
// drops them; log streaming must never block the logger.
const logChannelBuffer = 10

// defaultExcludePatterns filters connection/request noise that would loop
// through the stream or drown out job activity.
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"Publishing event",
}

// LogStreamer drains log batches from arbor's context channel and broadcasts
// filtered lines to WebSocket clients. Wire it with
// logger.SetChannel("context", streamer.GetChannel()).
type LogStreamer struct {
	handler         *WebSocketHandler
	logger          arbor.ILogger
	channel         chan []arbormodels.LogEvent
	minLevel        levels.LogLevel
	excludePatterns []string
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// NewLogStreamer creates a log streamer over the WebSocket hub. A nil config
// falls back to info level and the default exclude patterns.
func NewLogStreamer(handler *WebSocketHandler, logger arbor.ILogger, wsConfig *common.WebSocketConfig) *LogStreamer {
	minLevel := levels.InfoLevel
	excludePatterns := defaultExcludePatterns
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LogStreamer{
		handler:         handler,
		logger:          logger,
		channel:         make(chan []arbormodels.LogEvent, logChannelBuffer),
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// GetChannel returns the channel for arbor to send log batches to
func (s *LogStreamer) GetChannel() chan []arbormodels.LogEvent {
	return s.channel
}

// Start launches the consumer goroutine
func (s *LogStreamer) Start() error {
	s.wg.Add(1)
	go s.consume()
	return nil
}

// Stop gracefully shuts down the streamer
func (s *LogStreamer) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Log streamer stopped")
	return nil
}

// consume processes log batches until the channel closes or Stop is called
func (s *LogStreamer) consume() {
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("LogStreamer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-s.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				if !s.shouldStream(event) {
					continue
				}
				s.handler.BroadcastLog(toLogEntry(event))
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// shouldStream applies the level threshold and exclude patterns
func (s *LogStreamer) shouldStream(event arbormodels.LogEvent) bool {
	if plogToArborLevel(event.Level) < s.minLevel {
		return false
	}
	for _, pattern := range s.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return false
		}
	}
	return true
}

// toLogEntry converts an arbor log event to the wire shape. Structured
// fields are folded into the message so clients see job_id, tool names and
// the like without a custom payload per field.
func toLogEntry(event arbormodels.LogEvent) LogEntry {
	message := event.Message
	for key, value := range event.Fields {
		message += fmt.Sprintf(" %s=%v", key, value)
	}

	return LogEntry{
		Timestamp: event.Timestamp.Format("15:04:05"),
		Level:     mapLevel(plogToArborLevel(event.Level)),
		Message:   message,
	}
}

// plogToArborLevel converts phuslu/log.Level to arbor levels.LogLevel
func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// parseLogLevel converts string log level to arbor levels.LogLevel
func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// mapLevel maps arbor log levels to UI strings
func mapLevel(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.InfoLevel:
		return "info"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
