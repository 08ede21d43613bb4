package usage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/j-veylop/mission-control/internal/models"
)

// ErrInvalidCost is returned when a reported event carries a negative or
// non-finite cost.
var ErrInvalidCost = errors.New("cost must be a non-negative number")

// Service computes merged usage rollups on demand.
type Service struct {
	reader   *Reader
	reported *ReportedUsage
	opts     AggregateOptions
}

// NewService creates a usage service.
func NewService(reader *Reader, reported *ReportedUsage, opts AggregateOptions) *Service {
	if reported == nil {
		reported = NewReportedUsage()
	}
	return &Service{reader: reader, reported: reported, opts: opts}
}

// Compute reads every source and returns the merged rollup. Every call
// recomputes from scratch.
func (s *Service) Compute(ctx context.Context) *models.UsageRollup {
	now := s.reader.Now()
	rollup := Aggregate(s.reader.Read(ctx), now, s.opts)
	return Merge(rollup, s.reported.Snapshot())
}

// ValidateEvent rejects events the accumulator must never see.
func ValidateEvent(ev models.ReportedEvent) error {
	if ev.Cost < 0 || math.IsNaN(ev.Cost) || math.IsInf(ev.Cost, 0) {
		return fmt.Errorf("%w (got %v)", ErrInvalidCost, ev.Cost)
	}
	return nil
}

// Report validates an event and adds it to the reported-usage accumulator.
func (s *Service) Report(ev models.ReportedEvent) error {
	if err := ValidateEvent(ev); err != nil {
		return err
	}
	s.reported.Add(ev)
	return nil
}

// Reported returns the current reported totals.
func (s *Service) Reported() models.ReportedTotals {
	return s.reported.Snapshot()
}

// SessionStats returns the main agent's latest session, or nil.
func (s *Service) SessionStats(ctx context.Context) *models.SessionStats {
	return s.reader.SessionStats(ctx)
}

// Reader returns the underlying reader.
func (s *Service) Reader() *Reader {
	return s.reader
}
