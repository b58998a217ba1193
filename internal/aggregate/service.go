package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"presence/internal/aggregate/metrics"
	"presence/internal/attendance"
	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

// History is the read-only record query the engine aggregates over.
type History interface {
	List(ctx context.Context, filter attendance.HistoryFilter) ([]domain.AttendanceRecord, error)
}

// Service computes reports and serves them through a TTL cache.
type Service struct {
	history    History
	cache      ReportCache
	thresholds Thresholds

	// freshFor bounds how old a cached report may be before it is flagged
	// stale.
	freshFor time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(history History, cache ReportCache, thresholds Thresholds, freshFor time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		history:    history,
		cache:      cache,
		thresholds: thresholds,
		freshFor:   freshFor,
		logger:     logger,
		metrics:    m,
	}
}

// Summarize returns the report for q, serving a fresh cached copy when one
// exists. With allowStale set, an out-of-date cached copy is returned
// immediately with its staleness flagged instead of blocking on a recompute.
func (s *Service) Summarize(ctx context.Context, q Query, allowStale bool) (Cached, error) {
	now := requestcontext.Now(ctx)

	if cached, err := s.cache.Get(ctx, q.cacheKey()); err == nil {
		age := now.Sub(cached.ComputedAt)
		if age <= s.freshFor {
			s.metrics.IncrementCache("hit")
			return cached, nil
		}
		if allowStale {
			s.metrics.IncrementCache("stale")
			cached.Stale = true
			return cached, nil
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		// Cache trouble must not take reporting down; recompute instead.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "report cache read failed", "error", err)
		}
	}
	s.metrics.IncrementCache("miss")

	report, err := s.compute(ctx, q)
	if err != nil {
		return Cached{}, err
	}

	cached := Cached{Report: report, ComputedAt: now}
	if err := s.cache.Put(ctx, q.cacheKey(), cached); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "report cache write failed", "error", err)
	}
	return cached, nil
}

// Anomalies computes only the anomaly flags for q, bypassing the cache.
func (s *Service) Anomalies(ctx context.Context, q Query) ([]Anomaly, error) {
	recs, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	return detectAnomalies(recs, s.thresholds), nil
}

func (s *Service) load(ctx context.Context, q Query) ([]domain.AttendanceRecord, error) {
	recs, err := s.history.List(ctx, attendance.HistoryFilter{
		SubjectID:  q.SubjectID,
		OccasionID: q.OccasionID,
		From:       q.From,
		To:         q.To,
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return recs, nil
}

// compute derives every section of the report from one history read. The
// sections are independent pure passes, so they fan out.
func (s *Service) compute(ctx context.Context, q Query) (Report, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputeLatency(time.Since(start)) }()

	recs, err := s.load(ctx, q)
	if err != nil {
		return Report{}, err
	}

	report := Report{Query: q}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		report.TotalRecords, report.Counts, report.AttendanceRate, report.PunctualityRate,
			report.TotalHours, report.OvertimeHours = tally(recs)
		return nil
	})
	g.Go(func() error {
		report.Trend = trendSeries(recs)
		return nil
	})
	g.Go(func() error {
		report.Anomalies = detectAnomalies(recs, s.thresholds)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	s.metrics.IncrementReportsComputed()
	return report, nil
}

func tally(recs []domain.AttendanceRecord) (total int, counts StatusCounts, attendanceRate, punctualityRate, totalHours, overtimeHours float64) {
	attended := 0
	onTime := 0
	for _, rec := range recs {
		counts.add(rec.Status)
		totalHours += rec.TotalHours
		overtimeHours += rec.OvertimeHours
		if rec.Status.Attended() {
			attended++
			if rec.Status != domain.StatusLate && !rec.AfterEnd {
				onTime++
			}
		}
	}
	total = len(recs)
	if total > 0 {
		attendanceRate = float64(attended) / float64(total)
	}
	if attended > 0 {
		punctualityRate = float64(onTime) / float64(attended)
	}
	return total, counts, attendanceRate, punctualityRate, totalHours, overtimeHours
}

const movingAvgWindow = 7

// trendSeries buckets records per calendar day and attaches a moving average
// so a single bad day does not read as a trend.
func trendSeries(recs []domain.AttendanceRecord) []TrendPoint {
	type bucket struct {
		total    int
		attended int
	}
	days := make(map[time.Time]*bucket)
	for _, rec := range recs {
		day := recordDay(rec)
		b := days[day]
		if b == nil {
			b = &bucket{}
			days[day] = b
		}
		b.total++
		if rec.Status.Attended() {
			b.attended++
		}
	}

	points := make([]TrendPoint, 0, len(days))
	for day, b := range days {
		points = append(points, TrendPoint{
			Day:      day,
			Total:    b.total,
			Attended: b.attended,
			Rate:     float64(b.attended) / float64(b.total),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })

	for i := range points {
		lo := i - movingAvgWindow + 1
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		for _, p := range points[lo : i+1] {
			sum += p.Rate
		}
		points[i].MovingAvg = sum / float64(i+1-lo)
	}
	return points
}

func recordDay(rec domain.AttendanceRecord) time.Time {
	at := rec.CreatedAt
	if rec.FirstEvent != nil {
		at = *rec.FirstEvent
	}
	return at.UTC().Truncate(24 * time.Hour)
}
