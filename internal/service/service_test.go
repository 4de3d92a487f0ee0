package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/metrics"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/querysql"
	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/store"
	"github.com/roach88/semlayer/internal/testutil"
	"github.com/roach88/semlayer/internal/warehouse"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()

	audit, err := store.Open(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	wh, err := warehouse.Open(filepath.Join(dir, "warehouse.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	_, err = wh.DB().Exec(`CREATE TABLE customers (Income INTEGER, Kidhome INTEGER, Teenhome INTEGER);
		INSERT INTO customers VALUES (80000, 0, 0), (20000, 1, 0), (50000, 0, 2)`)
	require.NoError(t, err)

	extractor := nlu.ExtractorFunc(func(_ context.Context, q string) (*intent.StructuredIntent, error) {
		if q == "how many parents?" {
			return &intent.StructuredIntent{MetricID: "customer_count", Filters: []intent.Filter{intent.SegmentFilter("family_status.parents")}}, nil
		}
		return nil, &nlu.NoMatchError{Question: q, Reason: "unknown"}
	})

	m := testutil.MarketingModel(t, semantic.WithDialect(semantic.SQLiteDialect))
	return &Service{
		Compiler:  querysql.NewCompiler(m),
		Extractor: extractor,
		Warehouse: wh,
		Audit:     audit,
		Metrics:   metrics.New(),
	}
}

func TestCompile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ans, err := s.Compile(ctx, "", &intent.StructuredIntent{MetricID: "customer_count"}, false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS value FROM customers", ans.Query.SQL)
	assert.Nil(t, ans.Result)
	assert.NotEmpty(t, ans.AuditID)

	rec, err := s.Audit.Read(ctx, ans.AuditID)
	require.NoError(t, err)
	assert.Equal(t, ans.Query.SQL, rec.SQL)
	assert.Equal(t, 1.0, promtest.ToFloat64(s.Metrics.CompileTotal.WithLabelValues("SCALAR", "")))
}

func TestCompile_Execute(t *testing.T) {
	s := newTestService(t)

	ans, err := s.Compile(context.Background(), "", &intent.StructuredIntent{MetricID: "customer_count"}, true)
	require.NoError(t, err)
	require.NotNil(t, ans.Result)
	v, err := ans.Result.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestCompile_RejectedIsAudited(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Compile(ctx, "", &intent.StructuredIntent{MetricID: "nope"}, false)
	require.Error(t, err)
	assert.True(t, semantic.HasCode(err, semantic.CodeMetricNotFound))

	failed, err := s.Audit.List(ctx, store.Filter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, semantic.CodeMetricNotFound, failed[0].ErrorCode)
	assert.Equal(t, 1.0, promtest.ToFloat64(s.Metrics.CompileTotal.WithLabelValues("", "METRIC_NOT_FOUND")))
}

func TestCompile_NoWarehouse(t *testing.T) {
	s := newTestService(t)
	s.Warehouse = nil

	_, err := s.Compile(context.Background(), "", &intent.StructuredIntent{MetricID: "customer_count"}, true)
	assert.ErrorIs(t, err, ErrNoWarehouse)
}

func TestCompile_MinimalService(t *testing.T) {
	s := &Service{Compiler: querysql.NewCompiler(testutil.MarketingModel(t))}

	ans, err := s.Compile(context.Background(), "", &intent.StructuredIntent{MetricID: "total_spending"}, false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+testutil.TotalSpendingSQL+" AS value FROM customers", ans.Query.SQL)
	assert.Empty(t, ans.AuditID)
}

func TestAsk(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ans, err := s.Ask(ctx, "how many parents?", true)
	require.NoError(t, err)
	assert.Equal(t, "how many parents?", ans.Question)
	assert.Equal(t, []string{"family_status.parents"}, ans.Query.UsedSegments)
	v, err := ans.Result.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	rec, err := s.Audit.Read(ctx, ans.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "how many parents?", rec.Question)
	assert.Equal(t, 1.0, promtest.ToFloat64(s.Metrics.ExtractTotal.WithLabelValues(metrics.OutcomeOK)))
}

func TestAsk_NoMatch(t *testing.T) {
	s := newTestService(t)

	_, err := s.Ask(context.Background(), "will it rain?", false)
	assert.True(t, errors.Is(err, nlu.ErrNoMatch))
	assert.Equal(t, 1.0, promtest.ToFloat64(s.Metrics.ExtractTotal.WithLabelValues(metrics.OutcomeNoMatch)))

	last, err := s.Audit.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last, "no-matches never reach the compiler")
}

func TestAsk_NoExtractor(t *testing.T) {
	s := newTestService(t)
	s.Extractor = nil

	_, err := s.Ask(context.Background(), "how many parents?", false)
	assert.ErrorIs(t, err, ErrNoExtractor)
}
