// Package usage reads agent session logs and rolls them up into
// time-windowed cost and token totals.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/j-veylop/mission-control/internal/logger"
)

// Session is one agent session as stored in a sessions.json file.
type Session struct {
	Status   string    `json:"status"`
	Messages []Message `json:"messages"`
}

// Message is a session message. Only the fields relevant to usage are decoded.
type Message struct {
	Timestamp Timestamp       `json:"timestamp"`
	Usage     *MessageUsage   `json:"usage"`
	Cost      json.RawMessage `json:"cost"`
	Thinking  json.RawMessage `json:"thinking"`
	ToolCalls json.RawMessage `json:"toolCalls"`
	Model     string          `json:"model"`
	Role      string          `json:"role"`
}

// MessageUsage is the token block of a message.
type MessageUsage struct {
	Cost       json.RawMessage `json:"cost"`
	Input      float64         `json:"input"`
	Output     float64         `json:"output"`
	CacheRead  float64         `json:"cacheRead"`
	CacheWrite float64         `json:"cacheWrite"`
}

// Timestamp accepts RFC 3339 strings and epoch milliseconds.
// The zero value means the field was absent; Invalid marks an unparseable value.
type Timestamp struct {
	Time    time.Time
	Set     bool
	Invalid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	t.Set = true

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			t.Invalid = true
			return nil
		}
		if s == "" {
			t.Set = false
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = time.UnixMilli(int64(ms))
			return nil
		}
		t.Invalid = true
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		t.Invalid = true
		return nil
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

// Source yields the sessions of one agent.
type Source interface {
	Name() string
	Sessions(ctx context.Context) (map[string]Session, error)
}

// FileSource reads a single sessions.json file.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a source for the given sessions file.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

// Name returns the agent name of the source.
func (s *FileSource) Name() string {
	return s.name
}

// Path returns the sessions file path.
func (s *FileSource) Path() string {
	return s.path
}

// Sessions reads and decodes the sessions file.
func (s *FileSource) Sessions(ctx context.Context) (map[string]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse sessions file: %w", err)
	}

	sessions := make(map[string]Session, len(raw))
	for key, body := range raw {
		session, err := decodeSession(body)
		if err != nil {
			logger.Warn("skipping malformed session", "source", s.name, "session", key, "error", err)
			continue
		}
		sessions[key] = session
	}
	return sessions, nil
}

// decodeSession decodes one session, dropping messages that fail to decode
// rather than the whole session.
func decodeSession(body json.RawMessage) (Session, error) {
	var envelope struct {
		Status   string            `json:"status"`
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Session{}, err
	}

	session := Session{Status: envelope.Status}
	if envelope.Messages == nil {
		return session, nil
	}
	session.Messages = make([]Message, 0, len(envelope.Messages))
	for i, rawMsg := range envelope.Messages {
		var msg Message
		if err := json.Unmarshal(rawMsg, &msg); err != nil {
			logger.Warn("skipping malformed session message", "index", i, "error", err)
			continue
		}
		session.Messages = append(session.Messages, msg)
	}
	return session, nil
}

// SessionsFile returns the sessions.json path of an agent under root.
func SessionsFile(root, agent string) string {
	return filepath.Join(root, "agents", agent, "sessions", "sessions.json")
}

// Discover returns a FileSource for every agent under root/agents that has a
// sessions file. A missing root yields no sources.
func Discover(root string) ([]Source, error) {
	if root == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(filepath.Join(root, "agents"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var sources []Source
	for _, name := range names {
		path := SessionsFile(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		sources = append(sources, NewFileSource(name, path))
	}
	return sources, nil
}
