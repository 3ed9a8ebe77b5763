package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
	"github.com/BarkinBalci/story-analytics-service/internal/metrics"
	"github.com/BarkinBalci/story-analytics-service/internal/queue"
	"github.com/BarkinBalci/story-analytics-service/internal/repository"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodTotal = "total"

	DefaultPublicDays = 30

	dateLayout = "2006-01-02"
	day        = 24 * time.Hour
)

// AnalyticsService represents the event tracking and aggregation service
type AnalyticsService struct {
	repository repository.EventRepository
	publisher  queue.EventPublisher
	ids        idgen.Generator
	now        func() time.Time
	log        *zap.Logger
}

// NewAnalyticsService creates a new analytics service. When publisher is non-nil tracked
// events are sent to the queue instead of being written to the repository directly.
func NewAnalyticsService(repo repository.EventRepository, publisher queue.EventPublisher, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		publisher:  publisher,
		ids:        idgen.New(),
		now:        time.Now,
		log:        log,
	}
}

// TrackEvent validates and records one event. Storage failures are logged and counted
// but never returned; only a ValidationError fails the call.
func (s *AnalyticsService) TrackEvent(ctx context.Context, req *dto.TrackEventRequest, ip string) (*domain.AnalyticsEvent, error) {
	event, err := s.buildEvent(req, ip)
	if err != nil {
		s.log.Warn("Invalid analytics event", zap.Error(err))
		return nil, err
	}

	if err := s.store(ctx, event); err != nil {
		metrics.TrackFailures.Inc()
		s.log.Error("Failed to record analytics event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return event, nil
	}

	metrics.EventsTracked.WithLabelValues(string(event.Type)).Inc()
	return event, nil
}

func (s *AnalyticsService) store(ctx context.Context, event *domain.AnalyticsEvent) error {
	if s.publisher != nil {
		return s.publisher.PublishEvent(ctx, event)
	}
	return s.repository.Append(ctx, event)
}

// TrackEvents validates and records a batch of events. It returns the ids of the accepted
// events and one message per rejected event.
func (s *AnalyticsService) TrackEvents(ctx context.Context, reqs []dto.TrackEventRequest, ip string) ([]string, []string, error) {
	var (
		valid     []*domain.AnalyticsEvent
		positions []int
		errs      []string
	)

	for i := range reqs {
		event, err := s.buildEvent(&reqs[i], ip)
		if err != nil {
			errs = append(errs, fmt.Sprintf("event %d: %s", i, err.Error()))
			continue
		}
		valid = append(valid, event)
		positions = append(positions, i)
	}

	failed := s.storeBatch(ctx, valid)

	ids := make([]string, 0, len(valid))
	for j, event := range valid {
		if err, ok := failed[j]; ok {
			errs = append(errs, fmt.Sprintf("event %d: %s", positions[j], err.Error()))
			continue
		}
		ids = append(ids, event.ID)
		metrics.EventsTracked.WithLabelValues(string(event.Type)).Inc()
	}

	if len(failed) > 0 {
		metrics.TrackFailures.Add(float64(len(failed)))
		s.log.Warn("Some analytics events were not recorded",
			zap.Int("accepted", len(ids)),
			zap.Int("failed", len(failed)))
	}

	return ids, errs, nil
}

// storeBatch records the events and returns the failures keyed by position in events
func (s *AnalyticsService) storeBatch(ctx context.Context, events []*domain.AnalyticsEvent) map[int]error {
	failed := make(map[int]error)
	if len(events) == 0 {
		return failed
	}

	if s.publisher != nil {
		for i, event := range events {
			if err := s.publisher.PublishEvent(ctx, event); err != nil {
				failed[i] = err
			}
		}
		return failed
	}

	_, err := s.repository.AppendBatch(ctx, events)
	if err == nil {
		return failed
	}

	var partial *domain.PartialFailureError
	if errors.As(err, &partial) {
		for _, item := range partial.Failed {
			failed[item.Index] = item.Err
		}
		return failed
	}

	s.log.Error("Failed to append analytics batch", zap.Int("event_count", len(events)), zap.Error(err))
	for i := range events {
		failed[i] = errors.New("storage unavailable")
	}
	return failed
}

// buildEvent checks the required fields and shapes the request into a defaulted event
func (s *AnalyticsService) buildEvent(req *dto.TrackEventRequest, ip string) (*domain.AnalyticsEvent, error) {
	switch {
	case strings.TrimSpace(req.Type) == "":
		return nil, domain.NewValidationError("type", "missing required analytics data: type is required")
	case strings.TrimSpace(req.Page) == "":
		return nil, domain.NewValidationError("page", "missing required analytics data: page is required")
	case strings.TrimSpace(req.Timestamp) == "":
		return nil, domain.NewValidationError("timestamp", "missing required analytics data: timestamp is required")
	}

	eventType := domain.EventType(req.Type)
	if !eventType.Valid() {
		return nil, domain.NewValidationError("type",
			"invalid event type %q: must be one of page_view, page_exit, event", req.Type)
	}

	ts, err := parseEventTime(req.Timestamp)
	if err != nil {
		return nil, domain.NewValidationError("timestamp",
			"invalid timestamp %q: must be an RFC 3339 date-time or a millisecond epoch", req.Timestamp)
	}

	event := &domain.AnalyticsEvent{
		Type:      eventType,
		Page:      req.Page,
		SessionID: req.SessionID,
		Timestamp: ts,
		EventType: req.EventType,
		EventData: req.EventData,
		IP:        ip,
	}
	event.ApplyDefaults(s.now().UTC(), s.ids.NewID)

	return event, nil
}

// parseEventTime accepts RFC 3339 or a millisecond epoch. The epoch may arrive in
// float notation (1717243200000.0, 1.7172432e12) as long as it is a whole number.
func parseEventTime(value string) (time.Time, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) ||
			f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
			return time.Time{}, fmt.Errorf("timestamp %s is not a whole millisecond epoch", value)
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// window is the resolved time range of a report. A zero upper bound means open ended.
type window struct {
	period string
	from   time.Time
	to     time.Time
	upper  time.Time
}

func (w window) contains(ts time.Time) bool {
	if ts.Before(w.from) {
		return false
	}
	return w.upper.IsZero() || !ts.After(w.upper)
}

// resolveWindow applies startDate/endDate when both are set, else the rolling period
func resolveWindow(req *dto.GetAnalyticsRequest, now time.Time) (window, error) {
	period := strings.ToLower(strings.TrimSpace(req.Period))
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodTotal:
	default:
		period = PeriodWeek
	}

	w := window{period: period, to: now}

	if req.StartDate != "" && req.EndDate != "" {
		from, err := parseBoundary("startDate", req.StartDate, false)
		if err != nil {
			return window{}, err
		}
		to, err := parseBoundary("endDate", req.EndDate, true)
		if err != nil {
			return window{}, err
		}
		if to.Before(from) {
			return window{}, domain.NewValidationError("endDate", "endDate must not be before startDate")
		}
		w.from, w.to, w.upper = from, to, to
		return w, nil
	}

	switch period {
	case PeriodDay:
		w.from = now.Add(-day)
	case PeriodWeek:
		w.from = now.Add(-week)
	case PeriodMonth:
		w.from = now.Add(-month)
	case PeriodTotal:
		w.from = time.Unix(0, 0).UTC()
	}

	return w, nil
}

// parseBoundary accepts RFC 3339 or a bare date. A bare end date covers the whole day.
func parseBoundary(field, value string, end bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field,
			"invalid %s %q: must be YYYY-MM-DD or an RFC 3339 date-time", field, value)
	}
	if end {
		return date.Add(day - time.Millisecond), nil
	}
	return date, nil
}

// GetAdminAnalytics builds the windowed report. Storage failures yield an empty report.
func (s *AnalyticsService) GetAdminAnalytics(ctx context.Context, req *dto.GetAnalyticsRequest) (*dto.AnalyticsReport, error) {
	now := s.now().UTC()

	w, err := resolveWindow(req, now)
	if err != nil {
		return nil, err
	}

	events, err := s.repository.List(ctx)
	if err != nil {
		s.log.Error("Failed to list analytics events, returning empty report", zap.Error(err))
		events = nil
	}

	page := strings.TrimSpace(req.Page)
	if page == filterAll {
		page = ""
	}

	filtered := make([]*domain.AnalyticsEvent, 0, len(events))
	for _, event := range events {
		if !w.contains(event.Timestamp) {
			continue
		}
		if page != "" && event.Page != page {
			continue
		}
		filtered = append(filtered, event)
	}

	report := aggregate(filtered, w.period)
	report.Period = w.period
	report.From = w.from
	report.To = w.to
	report.Page = page
	report.TotalCount = len(events)

	return report, nil
}

func aggregate(events []*domain.AnalyticsEvent, period string) *dto.AnalyticsReport {
	report := &dto.AnalyticsReport{
		PageBreakdown:  map[string]int{},
		EventBreakdown: map[string]int{},
		TimeBreakdown:  map[string]int{},
		FilteredCount:  len(events),
	}

	sessions := make(map[string]struct{})
	var (
		timeOnPageTotal float64
		timeOnPageCount int
	)

	for _, event := range events {
		sessions[event.SessionID] = struct{}{}

		switch event.Type {
		case domain.EventTypePageView:
			report.Stats.PageViews++
			report.PageBreakdown[event.Page]++
		case domain.EventTypeEvent:
			report.Stats.Events++
			report.EventBreakdown[event.Page+":"+event.EventType]++
		case domain.EventTypePageExit:
			report.Stats.PageExits++
			if ms, ok := event.TimeOnPage(); ok {
				timeOnPageTotal += ms
				timeOnPageCount++
			}
		}

		report.TimeBreakdown[bucketLabel(event.Timestamp, period)]++
	}

	report.Stats.TotalEvents = len(events)
	report.Stats.UniqueSessions = len(sessions)
	if timeOnPageCount > 0 {
		report.AvgTimeOnPage = int64(math.Round(timeOnPageTotal / float64(timeOnPageCount) / 1000))
	}

	return report
}

func bucketLabel(ts time.Time, period string) string {
	ts = ts.UTC()
	if period == PeriodDay {
		return fmt.Sprintf("%02d:00", ts.Hour())
	}
	return ts.Format(dateLayout)
}

// GetPublicAnalytics counts page views per page over the last days. Storage failures yield
// an empty summary.
func (s *AnalyticsService) GetPublicAnalytics(ctx context.Context, req *dto.PublicAnalyticsRequest) (*dto.PublicAnalytics, error) {
	days := req.Days
	if days <= 0 {
		days = DefaultPublicDays
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * day)

	summary := &dto.PublicAnalytics{
		PageStats: map[string]int{},
		Days:      days,
	}

	events, err := s.repository.List(ctx)
	if err != nil {
		s.log.Error("Failed to list analytics events, returning empty summary", zap.Error(err))
		return summary, nil
	}

	for _, event := range events {
		if event.Timestamp.Before(cutoff) {
			continue
		}
		if req.Page != "" && event.Page != req.Page {
			continue
		}
		summary.TotalEvents++
		if event.Type == domain.EventTypePageView {
			summary.PageStats[event.Page]++
		}
	}

	return summary, nil
}
