package forecast

import (
	"context"
	"errors"
	"time"

	"smartfin/internal/analytics"
	"smartfin/internal/core"
	"smartfin/internal/llm"
	"smartfin/internal/log"
	"smartfin/internal/watch"
)

const (
	// MinTransactions is the smallest history worth sending to the model.
	MinTransactions = 4

	DefaultHistoryMonths = 6
	ProjectionMonths     = 3
	BreakdownRows        = 6
)

// Fallback reasons, logged when the model is not used.
const (
	reasonDisabled   = "ai_suggestions_disabled"
	reasonNoProvider = "no_provider"
	reasonTooFew     = "too_few_transactions"
	reasonCompletion = "completion_failed"
	reasonTimeout    = "timeout"
	reasonUnparsable = "unparsable_reply"
)

// Insights is everything the predictions page shows.
type Insights struct {
	Prediction core.PredictionResult    `json:"prediction"`
	History    []core.MonthlyPoint      `json:"history"`
	Projection []core.MonthlyPoint      `json:"projection"`
	Current    analytics.Summary        `json:"current"`
	Categories []analytics.CategoryShare `json:"categories"`
}

// Service is the AI gateway. A nil completer turns it into a pure
// fallback predictor.
type Service struct {
	completer  llm.Completer
	thresholds watch.Thresholds
	timeout    time.Duration
	logger     *log.Logger
}

type Option func(*Service)

func WithThresholds(th watch.Thresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

// WithTimeout bounds each completion call. Zero means no extra bound
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentForecast) }
}

func NewService(completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		completer:  completer,
		thresholds: watch.DefaultThresholds(),
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thresholds returns the watch table in use.
func (s *Service) Thresholds() watch.Thresholds {
	return s.thresholds
}

// Predict returns the model's prediction, or the local estimate when the
// model is disabled, unreachable, slow or unintelligible. It never fails.
func (s *Service) Predict(ctx context.Context, txs []core.Transaction, p core.UserProfile) core.PredictionResult {
	switch {
	case !p.AISuggestions:
		return s.fallback(ctx, txs, reasonDisabled, nil)
	case s.completer == nil:
		return s.fallback(ctx, txs, reasonNoProvider, nil)
	case len(txs) < MinTransactions:
		return s.fallback(ctx, txs, reasonTooFew, nil)
	}

	watchList := s.thresholds.Categories(txs)
	prompt := BuildPrompt(txs, p, watchList)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	text, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		reason := reasonCompletion
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		return s.fallback(ctx, txs, reason, err)
	}

	res, err := ParsePrediction(text)
	if err != nil {
		return s.fallback(ctx, txs, reasonUnparsable, err)
	}
	if len(res.WatchCategories) == 0 {
		res.WatchCategories = watchList
	}
	if len(res.WatchCategories) > watch.MaxCategories {
		res.WatchCategories = res.WatchCategories[:watch.MaxCategories]
	}
	if res.Recommendation == "" {
		res.Recommendation = FallbackRecommendation
	}
	s.logger.InfoContext(ctx, "Prediction received",
		log.FieldOperation, log.OpPredict,
		log.FieldSource, res.Source,
		log.FieldCount, len(txs))
	return res
}

func (s *Service) fallback(ctx context.Context, txs []core.Transaction, reason string, err error) core.PredictionResult {
	fields := log.NewFields().WithOperation(log.OpPredict).WithError(err)
	fields[log.FieldReason] = reason
	fields[log.FieldCount] = len(txs)
	if err != nil {
		s.logger.WarnContext(ctx, "Using fallback prediction", fields.ToSlice()...)
	} else {
		s.logger.DebugContext(ctx, "Using fallback prediction", fields.ToSlice()...)
	}
	return Fallback(txs, s.thresholds)
}

// Insights bundles the prediction with the monthly history ending at ref,
// a three month projection, the current month summary and the top expense
// categories.
func (s *Service) Insights(ctx context.Context, txs []core.Transaction, p core.UserProfile, ref time.Time, months int) Insights {
	if months <= 0 {
		months = DefaultHistoryMonths
	}
	history := analytics.MonthlySeries(txs, months, ref)
	return Insights{
		Prediction: s.Predict(ctx, txs, p),
		History:    history,
		Projection: analytics.ProjectMonths(history, ProjectionMonths, ref),
		Current:    analytics.Summarize(txs, p, ref),
		Categories: analytics.ExpenseBreakdown(txs, BreakdownRows),
	}
}
