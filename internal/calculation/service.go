// Package calculation runs quota-guarded engine calculations for
// authenticated organizations and keeps their results.
package calculation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"specsharp/internal/apperr"
	"specsharp/internal/auth"
	"specsharp/internal/classifier"
	"specsharp/internal/engine"
	"specsharp/internal/metrics"
	"specsharp/internal/quota"
)

type Service struct {
	engines   *engine.Provider
	quota     *quota.Service
	repo      Repository
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tolerance float64
}

type Options struct {
	Logger *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// DriftTolerance is the absolute difference, in dollars, above which
	// a recomputed total is reported as drift.
	DriftTolerance float64
}

func NewService(engines *engine.Provider, q *quota.Service, repo Repository, o Options) *Service {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engines:   engines,
		quota:     q,
		repo:      repo,
		logger:    logger.Named("calculation"),
		metrics:   o.Metrics,
		tolerance: o.DriftTolerance,
	}
}

// run charges the quota, then runs the engine. A run that fails inside
// the engine still counts against the quota.
func (s *Service) run(ctx context.Context, p auth.Principal, req engine.Request) (*engine.Result, quota.Snapshot, error) {
	snap, err := s.quota.Consume(ctx, p.OrgID, p.Email)
	if err != nil {
		return nil, snap, err
	}

	res, err := s.engines.Engine().Calculate(req)
	if err != nil {
		s.observeFailure(req, err)
		return nil, snap, err
	}
	s.observe(res)
	return res, snap, nil
}

// CREATE
func (s *Service) Calculate(ctx context.Context, p auth.Principal, req engine.Request) (*Run, quota.Snapshot, error) {
	res, snap, err := s.run(ctx, p, req)
	if err != nil {
		return nil, snap, err
	}

	run := &Run{
		OrgID:           p.OrgID,
		Email:           p.Email,
		BuildingType:    string(res.ProjectInfo.BuildingType),
		Subtype:         res.ProjectInfo.Subtype,
		DecisionStatus:  string(res.DealShield.Status),
		TaxonomyVersion: res.ProjectInfo.TaxonomyVersion,
		Request:         req,
		Totals:          res.Totals,
		Result:          res.Rounded(),
	}
	if err := s.repo.Save(ctx, run); err != nil {
		s.logger.Error("persist calculation failed", zap.String("org_id", p.OrgID), zap.Error(err))
		return nil, snap, fmt.Errorf("persist calculation: %w", err)
	}

	s.logger.Info("calculation stored",
		zap.String("id", run.ID),
		zap.String("org_id", p.OrgID),
		zap.String("profile", run.BuildingType+"/"+run.Subtype),
		zap.String("decision", run.DecisionStatus),
		zap.Float64("total_project_cost", res.Totals.TotalProjectCost),
	)
	return run, snap, nil
}

// PREVIEW
func (s *Service) Preview(ctx context.Context, p auth.Principal, req engine.Request) (*engine.Result, quota.Snapshot, error) {
	res, snap, err := s.run(ctx, p, req)
	if err != nil {
		return nil, snap, err
	}
	return res.Rounded(), snap, nil
}

// CLASSIFY (free, no quota)
func (s *Service) Classify(in classifier.Input) (*classifier.Result, error) {
	return s.engines.Engine().Classify(in)
}

// GET
// The stored run is recomputed against the current taxonomy. Differences
// are logged and returned, never raised.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*Run, []engine.Drift, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, apperr.New(apperr.CodeNotFound, "calculation %s not found", id)
	}
	run, err := s.repo.FindByID(ctx, p.OrgID, id)
	if err != nil {
		return nil, nil, err
	}

	recomputed, err := s.engines.Engine().Calculate(run.Request)
	if err != nil {
		s.logger.Warn("stored calculation no longer computes",
			zap.String("id", run.ID),
			zap.String("org_id", run.OrgID),
			zap.Error(err),
		)
		return run, nil, nil
	}

	drift := engine.CompareTotals(run.Totals, recomputed.Totals, s.tolerance)
	for _, d := range drift {
		s.logger.Warn("calculation drift",
			zap.String("id", run.ID),
			zap.String("org_id", run.OrgID),
			zap.String("field", d.Field),
			zap.Float64("stored", d.Stored),
			zap.Float64("recomputed", d.Recomputed),
			zap.Float64("delta", d.Delta),
			zap.Int("stored_taxonomy_version", run.TaxonomyVersion),
			zap.Int("current_taxonomy_version", recomputed.ProjectInfo.TaxonomyVersion),
		)
		if s.metrics != nil {
			s.metrics.DriftWarnings.WithLabelValues(d.Field).Inc()
		}
	}
	return run, drift, nil
}

func (s *Service) observe(res *engine.Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.Calculations.WithLabelValues(string(res.ProjectInfo.BuildingType), "ok").Inc()
	s.metrics.Decisions.WithLabelValues(string(res.DealShield.Status), string(res.DealShield.ReasonCode)).Inc()
	if res.ConstructionCosts.ClampApplied {
		s.metrics.ClampsApplied.WithLabelValues(string(res.ProjectInfo.BuildingType) + "/" + res.ProjectInfo.Subtype).Inc()
	}
}

func (s *Service) observeFailure(req engine.Request, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternalInvariant {
		s.logger.Error("engine invariant violated", zap.Error(err), zap.Any("request", req))
	} else {
		s.logger.Debug("calculation rejected", zap.String("code", string(code)), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.Calculations.WithLabelValues("unknown", string(code)).Inc()
	}
}
