package calculation

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"specsharp/internal/apperr"
	"specsharp/internal/auth"
	"specsharp/internal/engine"
	"specsharp/internal/metrics"
	"specsharp/internal/quota"
	"specsharp/internal/taxonomy"
)

type fixture struct {
	svc     *Service
	repo    *InMemoryRepository
	quota   *quota.MemoryRepository
	holder  *taxonomy.Holder
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, included int) fixture {
	t.Helper()
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	holder := taxonomy.NewHolder(reg)
	engines, err := engine.NewProvider(holder, engine.DefaultConfig())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	m := metrics.New()
	qrepo := quota.NewMemoryRepository(included)
	repo := NewInMemoryRepository()

	svc := NewService(engines, quota.NewService(qrepo, time.Second, logger, m), repo, Options{
		Logger:         logger,
		Metrics:        m,
		DriftTolerance: 0.01,
	})
	return fixture{svc: svc, repo: repo, quota: qrepo, holder: holder, metrics: m, logs: logs}
}

var member = auth.Principal{OrgID: "org-1", Email: "pm@example.com", Role: auth.RoleMember}

func sportsBar() engine.Request {
	return engine.Request{
		Description:   "sports bar in Nashville",
		SquareFootage: 4200,
		Location:      "Nashville",
	}
}

func TestCalculateStoresRoundedRun(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	run, snap, err := f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)
	assert.Equal(t, "restaurant", run.BuildingType)
	assert.Equal(t, "bar_tavern", run.Subtype)
	assert.Equal(t, "GO", run.DecisionStatus)
	assert.InDelta(t, run.Totals.TotalProjectCost, run.Result.Totals.TotalProjectCost, 0.02)

	stored, err := f.repo.FindByID(ctx, member.OrgID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Totals, stored.Totals)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Calculations.WithLabelValues("restaurant", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Decisions.WithLabelValues("GO", "all_scenarios_feasible")))
}

func TestEveryEngineRunConsumesQuota(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, _, err := f.svc.Preview(ctx, member, sportsBar())
	require.NoError(t, err)

	bad := sportsBar()
	bad.SpecialFeatures = []string{"helipad"}
	_, _, err = f.svc.Calculate(ctx, member, bad)
	require.True(t, errors.Is(err, apperr.ErrUnknownFeature))

	_, _, err = f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)

	_, snap, err := f.svc.Calculate(ctx, member, sportsBar())
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))
	assert.Equal(t, 3, snap.Used)

	// Classification is free.
	_, err = f.svc.Classify(classifierInput("quick service restaurant"))
	assert.NoError(t, err)
}

func TestGetReportsNoDriftForUnchangedRun(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	run, _, err := f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)

	got, drift, err := f.svc.Get(ctx, member, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Empty(t, drift)
	assert.Zero(t, f.logs.FilterMessage("calculation drift").Len())
}

func TestGetLogsDriftAfterStoredTotalsChange(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	run, _, err := f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)

	f.repo.update(run.ID, func(r *Run) { r.Totals.TotalProjectCost -= 250 })

	_, drift, err := f.svc.Get(ctx, member, run.ID)
	require.NoError(t, err, "drift is informational")
	require.Len(t, drift, 1)
	assert.Equal(t, "total_project_cost", drift[0].Field)
	assert.InDelta(t, 250, drift[0].Delta, 1e-6)

	entries := f.logs.FilterMessage("calculation drift").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "total_project_cost", entries[0].ContextMap()["field"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DriftWarnings.WithLabelValues("total_project_cost")))
}

func TestGetDetectsDriftAfterTaxonomyReload(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	run, _, err := f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)

	doc := bytes.Replace(taxonomy.DefaultDocument(), []byte("base_cost_per_sf: 350"), []byte("base_cost_per_sf: 400"), 1)
	reg, err := taxonomy.Load(doc)
	require.NoError(t, err)
	f.holder.Swap(reg)

	_, drift, err := f.svc.Get(ctx, member, run.ID)
	require.NoError(t, err)

	fields := make([]string, len(drift))
	for i, d := range drift {
		fields[i] = d.Field
	}
	assert.Contains(t, fields, "construction_total")
	assert.Contains(t, fields, "total_project_cost")
}

func TestGetIsScopedToOrganization(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	run, _, err := f.svc.Calculate(ctx, member, sportsBar())
	require.NoError(t, err)

	other := auth.Principal{OrgID: "org-2", Email: "x@example.com"}
	_, _, err = f.svc.Get(ctx, other, run.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, _, err = f.svc.Get(ctx, member, "not-a-uuid")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, _, err = f.svc.Get(ctx, member, uuid.NewString())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
