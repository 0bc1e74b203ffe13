// Package quota meters calculation runs per organization.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"specsharp/internal/apperr"
	"specsharp/internal/metrics"
)

type Service struct {
	repo    Repository
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService wraps repo. timeout bounds only the quota call; zero means
// the caller's context alone applies. logger and m may be nil.
func NewService(repo Repository, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, timeout: timeout, logger: logger.Named("quota"), metrics: m}
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Consume charges one run to orgID. Exhaustion returns the snapshot and
// an error matching apperr.ErrQuotaExceeded.
func (s *Service) Consume(ctx context.Context, orgID, email string) (Snapshot, error) {
	if orgID == "" {
		return Snapshot{}, apperr.New(apperr.CodeUnauthorized, "organization missing")
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	snap, err := s.repo.CheckAndConsume(ctx, orgID, email)
	if s.metrics != nil {
		s.metrics.QuotaCheckLatency.Observe(time.Since(start).Seconds())
	}

	switch {
	case errors.Is(err, apperr.ErrQuotaExceeded):
		if s.metrics != nil {
			s.metrics.QuotaRejections.Inc()
		}
		s.logger.Info("run quota exhausted",
			zap.String("org_id", orgID),
			zap.String("email", email),
			zap.Int("used", snap.Used),
		)
		return snap, err
	case err != nil:
		s.logger.Error("quota check failed", zap.String("org_id", orgID), zap.Error(err))
		return Snapshot{}, fmt.Errorf("quota check: %w", err)
	}
	return snap, nil
}

func (s *Service) Snapshot(ctx context.Context, orgID string) (Snapshot, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.repo.Get(ctx, orgID)
}
