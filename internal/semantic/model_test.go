package semantic_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/ir"
	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/testutil"
)

func TestBuild_MarketingModel(t *testing.T) {
	m := testutil.MarketingModel(t)

	assert.Equal(t, "customers", m.BaseTable())
	assert.Equal(t, 20, m.Columns().Len())
	assert.Equal(t, 10, m.Taxonomy().Len())
	assert.Equal(t, 14, m.Metrics().Len())
	assert.Equal(t, semantic.GenericDialect, m.Dialect())
}

func TestBuild_BaseTableOverride(t *testing.T) {
	m := testutil.MarketingModel(t, semantic.WithBaseTable("campaign customers"))
	assert.Equal(t, `"campaign customers"`, m.BaseTableSQL())
}

func TestSegmentSQL(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"family_status.parents", "(Kidhome > 0 OR Teenhome > 0)"},
		{"family_status.no_children", "(Kidhome = 0 AND Teenhome = 0)"},
		{"value_tiers.high_value", "Income >= 69000"},
		{"value_tiers.mid_value", "(Income >= 35000 AND Income < 69000)"},
		{"marital.partnered", "Marital_Status IN ('Married', 'Together')"},
		{"tenure.recent_joiners", "Dt_Customer >= DATE '2014-01-01'"},
	}

	m := testutil.MarketingModel(t)
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sql, err := m.Taxonomy().CompileToSQL(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sql)
		})
	}
}

func TestSegmentSQL_SQLiteDateLiteral(t *testing.T) {
	m := testutil.MarketingModel(t, semantic.WithDialect(semantic.SQLiteDialect))

	sql, err := m.Taxonomy().CompileToSQL("tenure.recent_joiners")
	require.NoError(t, err)
	assert.Equal(t, "Dt_Customer >= '2014-01-01'", sql)
}

func TestMetricSQL_SQLiteCastsDividend(t *testing.T) {
	m := testutil.MarketingModel(t, semantic.WithDialect(semantic.SQLiteDialect))
	total := testutil.TotalSpendingSQL
	inner := total[1 : len(total)-1]

	tests := map[string]string{
		"response_rate":           "CAST(SUM(Response) AS REAL) / NULLIF(COUNT(*), 0)",
		"customer_lifetime_value": "(CAST(" + inner + " AS REAL) / NULLIF(COUNT(*), 0))",
		"income_thousands":        "(CAST(AVG(Income) AS REAL) / NULLIF(1000, 0))",
		"total_spending":          total,
	}
	for id, expected := range tests {
		t.Run(id, func(t *testing.T) {
			sql, err := m.Metrics().CompileToSQL(id)
			require.NoError(t, err)
			assert.Equal(t, expected, sql)
		})
	}
}

func TestMetricSQL(t *testing.T) {
	total := testutil.TotalSpendingSQL
	tests := []struct {
		id       string
		expected string
	}{
		{"wine_spending", "SUM(MntWines)"},
		{"customer_count", "COUNT(*)"},
		{"average_income", "AVG(Income)"},
		{"total_spending", total},
		{"customer_lifetime_value", "(" + total + " / NULLIF(COUNT(*), 0))"},
		{"response_rate", "(SUM(Response)) / NULLIF(COUNT(*), 0)"},
		{"web_purchase_share", "(SUM(NumWebPurchases)) / NULLIF(SUM(NumWebPurchases + NumStorePurchases), 0)"},
		{"spending_per_purchase", "(" + total + " / NULLIF(SUM(NumWebPurchases + NumStorePurchases), 0))"},
		{"income_thousands", "(AVG(Income) / NULLIF(1000, 0))"},
	}

	m := testutil.MarketingModel(t)
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sql, err := m.Metrics().CompileToSQL(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sql)
		})
	}
}

func TestMetricSQL_EveryDivisionIsGuarded(t *testing.T) {
	m := testutil.MarketingModel(t)

	for _, metric := range m.Metrics().Metrics() {
		sql, err := m.Metrics().CompileToSQL(metric.ID)
		require.NoError(t, err)

		parts := strings.Split(sql, " / ")
		for _, after := range parts[1:] {
			assert.True(t, strings.HasPrefix(after, "NULLIF("), "metric %s divides without zero-guard: %s", metric.ID, sql)
		}
	}
}

func TestMetricDependencies(t *testing.T) {
	m := testutil.MarketingModel(t)

	deps, err := m.Metrics().Dependencies("customer_lifetime_value")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"customer_count", "fish_spending", "fruit_spending", "gold_spending",
		"meat_spending", "sweet_spending", "total_spending", "wine_spending",
	}, deps)

	deps, err = m.Metrics().Dependencies("wine_spending")
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, err = m.Metrics().Dependencies("nope")
	assert.True(t, semantic.HasCode(err, semantic.CodeUnknownMetric))
}

func TestLookups_UnknownIDs(t *testing.T) {
	m := testutil.MarketingModel(t)

	_, err := m.Column("income")
	assert.Equal(t, semantic.CodeUnknownColumn, semantic.CodeOf(err))
	assert.Contains(t, err.Error(), `"income"`)

	_, err = m.Segment("family_status.grandparents")
	assert.Equal(t, semantic.CodeUnknownSegment, semantic.CodeOf(err))

	_, err = m.Metric("revenue")
	assert.Equal(t, semantic.CodeUnknownMetric, semantic.CodeOf(err))
	assert.True(t, semantic.IsDefinitionError(err))
	assert.False(t, semantic.IsIntentError(err))
}

func TestTaxonomyRegister_UnresolvedColumnLeavesRegistryUnchanged(t *testing.T) {
	m := testutil.MarketingModel(t)
	before := m.Taxonomy().Len()

	err := m.Taxonomy().Register(semantic.Segment{
		ID: "family_status.big_family",
		Predicate: expr.And{Predicates: []expr.Predicate{
			expr.Compare{Column: "Kidhome", Op: expr.OpGt, Value: ir.IRInt(1)},
			expr.Compare{Column: "Pets", Op: expr.OpGt, Value: ir.IRInt(0)},
		}},
	})
	require.Error(t, err)

	var de *semantic.DefinitionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, semantic.CodeUnresolvedColumnReference, de.Code)
	assert.Equal(t, "Pets", de.Column)
	assert.Equal(t, "family_status.big_family", de.Segment)

	assert.Equal(t, before, m.Taxonomy().Len())
	_, err = m.Taxonomy().Resolve("family_status.big_family")
	assert.Equal(t, semantic.CodeUnknownSegment, semantic.CodeOf(err))
}

func TestTaxonomyRegister_Errors(t *testing.T) {
	tests := []struct {
		name     string
		segment  semantic.Segment
		wantCode semantic.ErrorCode
		wantMsg  string
	}{
		{
			name:     "missing family",
			segment:  semantic.Segment{ID: "parents", Predicate: expr.IsNull{Column: "Income"}},
			wantCode: semantic.CodeInvalidSegmentID,
		},
		{
			name:     "too many dots",
			segment:  semantic.Segment{ID: "a.b.c", Predicate: expr.IsNull{Column: "Income"}},
			wantCode: semantic.CodeInvalidSegmentID,
		},
		{
			name:     "duplicate",
			segment:  semantic.Segment{ID: "family_status.parents", Predicate: expr.IsNull{Column: "Income"}},
			wantCode: semantic.CodeDuplicateSegment,
		},
		{
			name: "ordering on categorical",
			segment: semantic.Segment{ID: "x.edu", Predicate: expr.Compare{
				Column: "Education", Op: expr.OpGt, Value: ir.IRString("Basic")}},
			wantCode: semantic.CodeInvalidPredicate,
			wantMsg:  "operator > is not valid on categorical column",
		},
		{
			name: "string on numeric",
			segment: semantic.Segment{ID: "x.rich", Predicate: expr.Compare{
				Column: "Income", Op: expr.OpGt, Value: ir.IRString("lots")}},
			wantCode: semantic.CodeInvalidPredicate,
			wantMsg:  "string literal is not valid for numeric column",
		},
		{
			name: "bad date",
			segment: semantic.Segment{ID: "x.new", Predicate: expr.Compare{
				Column: "Dt_Customer", Op: expr.OpGe, Value: ir.IRString("2014/01/01")}},
			wantCode: semantic.CodeInvalidPredicate,
			wantMsg:  "YYYY-MM-DD",
		},
		{
			name:     "empty any",
			segment:  semantic.Segment{ID: "x.none", Predicate: expr.Or{}},
			wantCode: semantic.CodeInvalidPredicate,
		},
		{
			name:     "empty in",
			segment:  semantic.Segment{ID: "x.none", Predicate: expr.In{Column: "Education"}},
			wantCode: semantic.CodeInvalidPredicate,
		},
		{
			name:     "nil predicate",
			segment:  semantic.Segment{ID: "x.none"},
			wantCode: semantic.CodeInvalidPredicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.MarketingModel(t)
			err := m.Taxonomy().Register(tt.segment)
			require.Error(t, err)
			assert.True(t, semantic.HasCode(err, tt.wantCode), "got %v", err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestTaxonomy_Families(t *testing.T) {
	m := testutil.MarketingModel(t)

	families := m.Taxonomy().Families()
	assert.Equal(t, []string{"family_status.no_children", "family_status.parents"}, families["family_status"])
	assert.Len(t, families, 5)

	ages := m.Taxonomy().Family("customer_age_segments")
	require.Len(t, ages, 3)
	assert.Equal(t, "customer_age_segments.middle_aged", ages[0].ID)
	assert.Equal(t, "Middle Aged", ages[0].DisplayLabel())
	assert.Equal(t, "middle_aged", ages[0].Name())

	assert.Nil(t, m.Taxonomy().Family("nope"))
}

func TestMetricRegister_Errors(t *testing.T) {
	tests := []struct {
		name     string
		metric   semantic.Metric
		wantCode semantic.ErrorCode
		wantMsg  string
	}{
		{
			name: "bare column in derived",
			metric: semantic.Metric{ID: "bad", Kind: semantic.KindDerived, Expr: expr.Arith{
				Op: expr.OpAdd, Operands: []expr.Expr{expr.MetricRef{ID: "wine_spending"}, expr.ColumnRef{Column: "MntFruits"}}}},
			wantCode: semantic.CodeInvalidMetricExpression,
			wantMsg:  "must be wrapped in sum, avg or count",
		},
		{
			name:     "sum over categorical",
			metric:   semantic.Metric{ID: "bad", Kind: semantic.KindSum, Expr: expr.ColumnRef{Column: "Education"}},
			wantCode: semantic.CodeInvalidMetricExpression,
			wantMsg:  "need numeric",
		},
		{
			name: "derived without metric refs",
			metric: semantic.Metric{ID: "bad", Kind: semantic.KindDerived,
				Expr: expr.Aggregate{Func: expr.AggSum, Arg: expr.ColumnRef{Column: "MntWines"}}},
			wantCode: semantic.CodeInvalidMetricExpression,
			wantMsg:  "at least one other metric",
		},
		{
			name:     "ratio without ratio node",
			metric:   semantic.Metric{ID: "bad", Kind: semantic.KindRatio, Expr: expr.MetricRef{ID: "wine_spending"}},
			wantCode: semantic.CodeInvalidMetricExpression,
		},
		{
			name:     "unknown metric reference",
			metric:   semantic.Metric{ID: "bad", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "revenue"}},
			wantCode: semantic.CodeUnknownMetric,
			wantMsg:  `"revenue"`,
		},
		{
			name:     "self reference",
			metric:   semantic.Metric{ID: "bad", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "bad"}},
			wantCode: semantic.CodeCyclicMetricReference,
		},
		{
			name:     "unregistered column",
			metric:   semantic.Metric{ID: "bad", Kind: semantic.KindSum, Expr: expr.ColumnRef{Column: "MntCheese"}},
			wantCode: semantic.CodeUnresolvedColumnReference,
		},
		{
			name:     "duplicate",
			metric:   semantic.Metric{ID: "customer_count", Kind: semantic.KindCount},
			wantCode: semantic.CodeDuplicateMetric,
		},
		{
			name:     "unknown kind",
			metric:   semantic.Metric{ID: "bad", Kind: "MEDIAN", Expr: expr.ColumnRef{Column: "Income"}},
			wantCode: semantic.CodeInvalidMetricExpression,
		},
		{
			name: "numeric default grouping",
			metric: semantic.Metric{ID: "bad", Kind: semantic.KindSum, Expr: expr.ColumnRef{Column: "MntWines"},
				DefaultGroupBy: []string{"Income"}},
			wantCode: semantic.CodeInvalidMetricExpression,
			wantMsg:  "default grouping",
		},
		{
			name: "boolean default grouping",
			metric: semantic.Metric{ID: "bad", Kind: semantic.KindSum, Expr: expr.ColumnRef{Column: "MntWines"},
				DefaultGroupBy: []string{"Complain"}},
			wantCode: semantic.CodeInvalidMetricExpression,
			wantMsg:  "is boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.MarketingModel(t)
			before := m.Metrics().Len()

			err := m.Metrics().Register(tt.metric)
			require.Error(t, err)
			assert.True(t, semantic.HasCode(err, tt.wantCode), "got %v", err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, before, m.Metrics().Len())
		})
	}
}

func TestBuild_CycleReportsFullPath(t *testing.T) {
	defs := testutil.MarketingDefinitions()
	defs.Metrics = append(defs.Metrics,
		semantic.Metric{ID: "a", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "b"}},
		semantic.Metric{ID: "b", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "c"}},
		semantic.Metric{ID: "c", Kind: semantic.KindDerived, Expr: expr.Arith{
			Op: expr.OpAdd, Operands: []expr.Expr{expr.MetricRef{ID: "a"}, expr.MetricRef{ID: "wine_spending"}}}},
		semantic.Metric{ID: "uses_a", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "a"}},
	)

	m, err := semantic.Build(defs)
	require.Error(t, err)
	assert.Nil(t, m)

	var be *semantic.BuildError
	require.True(t, errors.As(err, &be))
	require.Len(t, be.Errors, 1, "dependents of the cycle are not reported separately: %v", be.Errors)

	var de *semantic.DefinitionError
	require.True(t, errors.As(be.Errors[0], &de))
	assert.Equal(t, semantic.CodeCyclicMetricReference, de.Code)
	assert.Equal(t, []string{"a", "b", "c", "a"}, de.Path)
	assert.Contains(t, de.Error(), "a -> b -> c -> a")
}

func TestBuild_SelfCycle(t *testing.T) {
	defs := testutil.MarketingDefinitions()
	defs.Metrics = append(defs.Metrics,
		semantic.Metric{ID: "loop", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "loop"}})

	_, err := semantic.Build(defs)
	require.Error(t, err)

	var de *semantic.DefinitionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"loop", "loop"}, de.Path)
}

func TestBuild_AggregatesEveryError(t *testing.T) {
	defs := testutil.MarketingDefinitions()
	defs.Columns = append(defs.Columns, semantic.Column{Name: "Income", Type: semantic.TypeNumeric})
	defs.Columns = append(defs.Columns, semantic.Column{Name: "Mystery", Type: "blob"})
	defs.Segments = append(defs.Segments, semantic.Segment{
		ID: "pets.dog_owners", Predicate: expr.Compare{Column: "Dogs", Op: expr.OpGt, Value: ir.IRInt(0)}})
	defs.Metrics = append(defs.Metrics, semantic.Metric{
		ID: "revenue_share", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "revenue"}})

	m, err := semantic.Build(defs)
	require.Error(t, err)
	assert.Nil(t, m)

	var be *semantic.BuildError
	require.True(t, errors.As(err, &be))
	require.Len(t, be.Errors, 4)

	assert.True(t, semantic.HasCode(err, semantic.CodeDuplicateColumn))
	assert.True(t, semantic.HasCode(err, semantic.CodeInvalidColumn))
	assert.True(t, semantic.HasCode(err, semantic.CodeUnresolvedColumnReference))
	assert.True(t, semantic.HasCode(err, semantic.CodeUnknownMetric))
	assert.True(t, semantic.IsDefinitionError(err))
	assert.Contains(t, err.Error(), "4 definition error(s)")
}

func TestBuild_DuplicateMetricReportsOnlyTheDuplicate(t *testing.T) {
	defs := testutil.MarketingDefinitions()
	defs.Metrics = append(defs.Metrics,
		semantic.Metric{ID: "aaa_share", Kind: semantic.KindDerived, Expr: expr.MetricRef{ID: "zzz_base"}},
		semantic.Metric{ID: "aaa_share", Kind: semantic.KindCount},
		semantic.Metric{ID: "zzz_base", Kind: semantic.KindCount},
	)

	_, err := semantic.Build(defs)
	require.Error(t, err)

	var be *semantic.BuildError
	require.True(t, errors.As(err, &be))
	require.Len(t, be.Errors, 1, err.Error())
	assert.Equal(t, semantic.CodeDuplicateMetric, semantic.CodeOf(be.Errors[0]))
	assert.False(t, semantic.HasCode(err, semantic.CodeUnknownMetric))
}

func TestBuild_DependencyOrderIndependentOfDefinitionOrder(t *testing.T) {
	forward := testutil.MarketingDefinitions()
	reversed := testutil.MarketingDefinitions()
	for i, j := 0, len(reversed.Metrics)-1; i < j; i, j = i+1, j-1 {
		reversed.Metrics[i], reversed.Metrics[j] = reversed.Metrics[j], reversed.Metrics[i]
	}

	a, err := semantic.Build(forward)
	require.NoError(t, err)
	b, err := semantic.Build(reversed)
	require.NoError(t, err)

	for _, metric := range a.Metrics().Metrics() {
		sqlA, _ := a.Metrics().CompileToSQL(metric.ID)
		sqlB, _ := b.Metrics().CompileToSQL(metric.ID)
		assert.Equal(t, sqlA, sqlB, metric.ID)
	}
}

func TestCompilePredicate(t *testing.T) {
	m := testutil.MarketingModel(t)

	sql, err := m.CompilePredicate(expr.Compare{Column: "Marital_Status", Op: expr.OpEq, Value: ir.IRString("O'Brien")})
	require.NoError(t, err)
	assert.Equal(t, "Marital_Status = 'O''Brien'", sql)

	sql, err = m.CompilePredicate(expr.Not{Predicate: expr.IsNull{Column: "Income"}})
	require.NoError(t, err)
	assert.Equal(t, "(NOT Income IS NULL)", sql)

	sql, err = m.CompilePredicate(expr.Compare{Column: "Complain", Op: expr.OpEq, Value: ir.IRBool(true)})
	require.NoError(t, err)
	assert.Equal(t, "Complain = TRUE", sql)

	_, err = m.CompilePredicate(expr.Compare{Column: "Pets", Op: expr.OpEq, Value: ir.IRInt(1)})
	require.Error(t, err)
	assert.True(t, semantic.IsIntentError(err))
	assert.Equal(t, semantic.CodeUnresolvedColumnReference, semantic.CodeOf(err))
	assert.Contains(t, err.Error(), `"Pets"`)
}

func TestModel_ConcurrentReads(t *testing.T) {
	m := testutil.MarketingModel(t)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sql, err := m.Metrics().CompileToSQL("customer_lifetime_value")
			if err == nil {
				seg, _ := m.Taxonomy().CompileToSQL("family_status.parents")
				results[i] = sql + seg
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}
