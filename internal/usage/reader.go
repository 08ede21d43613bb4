package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/models"
)

// DefaultSourceTimeout bounds a single source read.
const DefaultSourceTimeout = 2 * time.Second

// mainAgent is the agent whose latest session is reported as session stats.
const mainAgent = "main"

// Reader collects usage records from every available source.
type Reader struct {
	now     func() time.Time
	root    string
	extra   []Source
	timeout time.Duration
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithClock overrides the reader's time source.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// WithTimeout sets the per-source read timeout.
func WithTimeout(d time.Duration) ReaderOption {
	return func(r *Reader) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSources adds sources beyond those discovered under the root.
func WithSources(sources ...Source) ReaderOption {
	return func(r *Reader) { r.extra = append(r.extra, sources...) }
}

// NewReader creates a reader over the session logs under root. An empty root
// disables discovery.
func NewReader(root string, opts ...ReaderOption) *Reader {
	r := &Reader{
		root:    root,
		now:     time.Now,
		timeout: DefaultSourceTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the session log root.
func (r *Reader) Root() string {
	return r.root
}

// Now returns the reader's current time.
func (r *Reader) Now() time.Time {
	return r.now()
}

// Sources returns the sources a read would visit.
func (r *Reader) Sources() []Source {
	sources, err := Discover(r.root)
	if err != nil {
		logger.Warn("failed to discover session sources", "root", r.root, "error", err)
	}
	return append(sources, r.extra...)
}

// Read returns every qualifying usage record. Unavailable, malformed and slow
// sources are skipped with a warning.
func (r *Reader) Read(ctx context.Context) []models.UsageRecord {
	now := r.now()
	sources := r.Sources()

	results := make([][]models.UsageRecord, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sessions, err := r.readSource(ctx, src)
			if err != nil {
				logger.Warn("skipping session source", "source", src.Name(), "error", err)
				return
			}
			results[i] = Records(sessions, now)
		}(i, src)
	}
	wg.Wait()

	var records []models.UsageRecord
	for _, batch := range results {
		records = append(records, batch...)
	}
	return records
}

// readSource runs a source read bounded by the reader timeout.
func (r *Reader) readSource(ctx context.Context, src Source) (map[string]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		sessions map[string]Session
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("source panicked: %v", p)}
			}
		}()
		sessions, err := src.Sessions(ctx)
		done <- result{sessions: sessions, err: err}
	}()

	select {
	case res := <-done:
		return res.sessions, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("source read timed out after %s: %w", r.timeout, ctx.Err())
	}
}

// SessionStats returns the status of the main agent's most recently active
// session, or nil when there is none.
func (r *Reader) SessionStats(ctx context.Context) *models.SessionStats {
	if r.root == "" {
		return nil
	}

	sessions, err := r.readSource(ctx, NewFileSource(mainAgent, SessionsFile(r.root, mainAgent)))
	if err != nil {
		logger.Debug("session stats unavailable", "error", err)
		return nil
	}
	return LatestSession(sessions)
}

// LatestSession picks the session whose last message is newest. Sessions
// whose last message carries no timestamp are never selected.
func LatestSession(sessions map[string]Session) *models.SessionStats {
	var (
		latest     *Session
		latestTime time.Time
	)
	for key := range sessions {
		session := sessions[key]
		if len(session.Messages) == 0 {
			continue
		}
		last := session.Messages[len(session.Messages)-1].Timestamp
		if !last.Set || last.Invalid || last.Time.UnixMilli() <= 0 {
			continue
		}
		if latest == nil || last.Time.After(latestTime) {
			latest = &session
			latestTime = last.Time
		}
	}
	if latest == nil {
		return nil
	}

	status := latest.Status
	if status == "" {
		status = "idle"
	}
	ts := latestTime.UTC()
	return &models.SessionStats{
		Status:       status,
		LastActivity: &ts,
		MessageCount: len(latest.Messages),
	}
}

// Records normalizes the qualifying messages of the given sessions.
func Records(sessions map[string]Session, now time.Time) []models.UsageRecord {
	var records []models.UsageRecord
	for _, session := range sessions {
		for i := range session.Messages {
			if rec, ok := NormalizeMessage(&session.Messages[i], now); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

// NormalizeMessage converts a message into a usage record. Messages without a
// usage or cost block do not qualify.
func NormalizeMessage(m *Message, now time.Time) (models.UsageRecord, bool) {
	if m.Usage == nil && !truthy(m.Cost) {
		return models.UsageRecord{}, false
	}

	rec := models.UsageRecord{
		Model:   m.Model,
		Feature: InferFeature(m),
		Cost:    messageCost(m),
	}
	if rec.Model == "" {
		rec.Model = models.UnknownModel
	}
	if m.Usage != nil {
		rec.InputTokens = int64(m.Usage.Input)
		rec.OutputTokens = int64(m.Usage.Output)
		rec.CacheReadTokens = int64(m.Usage.CacheRead)
		rec.CacheWriteTokens = int64(m.Usage.CacheWrite)
	}

	switch {
	case m.Timestamp.Invalid:
		// Zero timestamp: counted in lifetime maps, excluded from every window.
	case !m.Timestamp.Set:
		rec.Timestamp = now
	default:
		rec.Timestamp = m.Timestamp.Time
		rec.DaysDiff = DaysBetween(rec.Timestamp, now)
	}
	return rec, true
}

// DaysBetween returns floor((now - ts) / 24h).
func DaysBetween(ts, now time.Time) int {
	return int(math.Floor(now.Sub(ts).Hours() / 24))
}

// messageCost resolves cost.total, then usage.cost (number or {total}), then 0.
func messageCost(m *Message) float64 {
	if total, ok := costTotal(m.Cost, false); ok {
		return total
	}
	if m.Usage != nil {
		if c, ok := costTotal(m.Usage.Cost, true); ok {
			return c
		}
	}
	return 0
}

// costTotal extracts a cost from {"total": n}, or from a bare number when
// allowNumber is set.
func costTotal(raw json.RawMessage, allowNumber bool) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if allowNumber {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
	}
	var obj struct {
		Total *float64 `json:"total"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Total == nil {
		return 0, false
	}
	return *obj.Total, true
}
