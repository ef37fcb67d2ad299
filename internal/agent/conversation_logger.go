package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ConversationLogger records run transcripts for later review. Implementations
// must be safe for concurrent use and must never block the caller.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// ConversationLogEvent is one NDJSON line in a session transcript. Events
// carry message content only; credentials never reach the logger.
type ConversationLogEvent struct {
	Timestamp  string         `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	Content    string         `json:"content"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogConfig configures the file-backed logger.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// FileConversationLogger appends events to one NDJSON file per session. A
// single background goroutine drains a bounded queue; when the queue is full
// the event is dropped and counted rather than stalling a run.
type FileConversationLogger struct {
	dir    string
	queue  chan ConversationLogEvent
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	dropped int
}

// NewConversationLogger builds the file-backed logger, creating the log
// directory if needed.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (*FileConversationLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &FileConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	l.wg.Add(1)
	go l.drain()
	return l, nil
}

// Log enqueues an event. It never blocks; on a full queue the event is
// dropped and the drop is counted.
func (l *FileConversationLogger) Log(event ConversationLogEvent) {
	if event.ContentRaw == "" {
		event.ContentRaw = event.Content
	}
	event.Content = cleanForReadability(event.ContentRaw)

	select {
	case l.queue <- event:
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		l.logger.Warn("Conversation log queue full, dropping event",
			"session_id", event.SessionID,
			"dropped_total", dropped,
		)
	}
}

// Close stops the drain goroutine after flushing queued events.
func (l *FileConversationLogger) Close() error {
	close(l.done)
	l.wg.Wait()
	return nil
}

func (l *FileConversationLogger) drain() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.queue:
			l.write(event)
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.write(event)
				default:
					return
				}
			}
		}
	}
}

func (l *FileConversationLogger) write(event ConversationLogEvent) {
	session := sanitizeSessionID(event.SessionID)
	path := filepath.Join(l.dir, session+".ndjson")

	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("Failed to marshal conversation event", "error", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("Failed to open conversation log file", "path", path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Warn("Failed to write conversation log line", "path", path, "error", err)
	}
}

// sanitizeSessionID keeps session-derived filenames flat and filesystem-safe.
func sanitizeSessionID(id string) string {
	if id == "" {
		return "anonymous"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// cleanForReadability strips ANSI escapes and collapses control characters
// so transcripts stay greppable.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }
