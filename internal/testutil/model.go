package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/ir"
	"github.com/roach88/semlayer/internal/semantic"
)

// SpendingColumns are the six product spending columns, in the order the
// total_spending metric adds them.
var SpendingColumns = []string{
	"MntWines", "MntFruits", "MntMeatProducts",
	"MntFishProducts", "MntSweetProducts", "MntGoldProds",
}

// TotalSpendingSQL is the rendered SQL of the total_spending metric.
const TotalSpendingSQL = "(SUM(MntWines) + SUM(MntFruits) + SUM(MntMeatProducts) + SUM(MntFishProducts) + SUM(MntSweetProducts) + SUM(MntGoldProds))"

// MarketingDefinitions returns the marketing-campaign semantic model used
// across package tests: customer columns, four segment families and a set
// of SUM, COUNT, AVG, RATIO and DERIVED metrics.
//
// Each call returns fresh slices, so tests may modify the result.
func MarketingDefinitions() semantic.Definitions {
	return semantic.Definitions{
		BaseTable: "customers",
		Columns:   marketingColumns(),
		Segments:  marketingSegments(),
		Metrics:   marketingMetrics(),
	}
}

// MarketingModel builds MarketingDefinitions with the given options and
// fails the test on any definition error.
func MarketingModel(t testing.TB, opts ...semantic.Option) *semantic.Model {
	t.Helper()
	m, err := semantic.Build(MarketingDefinitions(), opts...)
	require.NoError(t, err)
	return m
}

func marketingColumns() []semantic.Column {
	cols := []semantic.Column{
		{Name: "ID", Type: semantic.TypeNumeric, Description: "Customer identifier", Owner: "crm"},
		{Name: "Year_Birth", Type: semantic.TypeNumeric, DisplayName: "Birth Year", Description: "Customer birth year", Owner: "crm", PII: true},
		{Name: "Education", Type: semantic.TypeCategorical, Description: "Highest education level", Owner: "crm"},
		{Name: "Marital_Status", Type: semantic.TypeCategorical, DisplayName: "Marital Status", Description: "Marital status", Owner: "crm", PII: true},
		{Name: "Income", Type: semantic.TypeNumeric, DisplayName: "Annual Income", Description: "Yearly household income", Owner: "crm", PII: true, QualityNote: "24 customers have no recorded income"},
		{Name: "Kidhome", Type: semantic.TypeNumeric, Description: "Number of small children in household", Owner: "crm"},
		{Name: "Teenhome", Type: semantic.TypeNumeric, Description: "Number of teenagers in household", Owner: "crm"},
		{Name: "Dt_Customer", Type: semantic.TypeDate, DisplayName: "Enrollment Date", Description: "Date of enrollment with the company", Owner: "crm"},
		{Name: "Recency", Type: semantic.TypeNumeric, Description: "Days since last purchase", Owner: "analytics"},
		{Name: "NumWebPurchases", Type: semantic.TypeNumeric, Description: "Purchases made through the website", Owner: "analytics"},
		{Name: "NumStorePurchases", Type: semantic.TypeNumeric, Description: "Purchases made in store", Owner: "analytics"},
		{Name: "Response", Type: semantic.TypeNumeric, Description: "1 if the customer accepted the last campaign", Owner: "marketing"},
		{Name: "Complain", Type: semantic.TypeBoolean, Description: "Customer complained in the last two years", Owner: "support"},
		{Name: "age_segment", Type: semantic.TypeCategorical, DisplayName: "Age Segment", Description: "Age bucket computed at load time", Owner: "analytics"},
	}
	for _, name := range SpendingColumns {
		cols = append(cols, semantic.Column{
			Name: name, Type: semantic.TypeNumeric,
			Description: "Amount spent in the last two years", Owner: "analytics",
		})
	}
	return cols
}

func gt(column string, v int64) expr.Predicate {
	return expr.Compare{Column: column, Op: expr.OpGt, Value: ir.IRInt(v)}
}

func ge(column string, v int64) expr.Predicate {
	return expr.Compare{Column: column, Op: expr.OpGe, Value: ir.IRInt(v)}
}

func lt(column string, v int64) expr.Predicate {
	return expr.Compare{Column: column, Op: expr.OpLt, Value: ir.IRInt(v)}
}

func eq(column string, v int64) expr.Predicate {
	return expr.Compare{Column: column, Op: expr.OpEq, Value: ir.IRInt(v)}
}

func marketingSegments() []semantic.Segment {
	return []semantic.Segment{
		{
			ID: "family_status.parents", Label: "Parents",
			Description: "Households with at least one child or teenager",
			Predicate:   expr.Or{Predicates: []expr.Predicate{gt("Kidhome", 0), gt("Teenhome", 0)}},
		},
		{
			ID: "family_status.no_children", Label: "No Children",
			Description: "Households without children or teenagers",
			Predicate:   expr.And{Predicates: []expr.Predicate{eq("Kidhome", 0), eq("Teenhome", 0)}},
		},
		{
			ID: "value_tiers.high_value", Label: "High Value",
			Description: "Top income tier",
			Predicate:   ge("Income", 69000),
		},
		{
			ID: "value_tiers.mid_value", Label: "Mid Value",
			Description: "Middle income tier",
			Predicate:   expr.And{Predicates: []expr.Predicate{ge("Income", 35000), lt("Income", 69000)}},
		},
		{
			ID: "value_tiers.low_value", Label: "Low Value",
			Description: "Bottom income tier",
			Predicate:   lt("Income", 35000),
		},
		{
			ID: "customer_age_segments.young_adult", Label: "Young Adult",
			Description: "Born 1990 or later",
			Predicate:   ge("Year_Birth", 1990),
		},
		{
			ID: "customer_age_segments.middle_aged", Label: "Middle Aged",
			Description: "Born between 1965 and 1989",
			Predicate:   expr.And{Predicates: []expr.Predicate{ge("Year_Birth", 1965), lt("Year_Birth", 1990)}},
		},
		{
			ID: "customer_age_segments.senior", Label: "Senior",
			Description: "Born before 1965",
			Predicate:   lt("Year_Birth", 1965),
		},
		{
			ID: "marital.partnered", Label: "Partnered",
			Description: "Married or living together",
			Predicate: expr.In{Column: "Marital_Status", Values: []ir.IRValue{
				ir.IRString("Married"), ir.IRString("Together"),
			}},
		},
		{
			ID: "tenure.recent_joiners", Label: "Recent Joiners",
			Description: "Enrolled in 2014 or later",
			Predicate:   expr.Compare{Column: "Dt_Customer", Op: expr.OpGe, Value: ir.IRDate("2014-01-01")},
		},
	}
}

func col(name string) expr.Expr { return expr.ColumnRef{Column: name} }

func ref(id string) expr.Expr { return expr.MetricRef{ID: id} }

func marketingMetrics() []semantic.Metric {
	spending := []struct{ id, column, label string }{
		{"wine_spending", "MntWines", "Wine Spending"},
		{"fruit_spending", "MntFruits", "Fruit Spending"},
		{"meat_spending", "MntMeatProducts", "Meat Spending"},
		{"fish_spending", "MntFishProducts", "Fish Spending"},
		{"sweet_spending", "MntSweetProducts", "Sweet Spending"},
		{"gold_spending", "MntGoldProds", "Gold Spending"},
	}

	// Derived metrics come first so tests exercise dependency ordering.
	metrics := []semantic.Metric{
		{
			ID: "customer_lifetime_value", Kind: semantic.KindDerived, Label: "Customer Lifetime Value",
			Description: "Total spending per customer", Owner: "finance",
			Expr: expr.Ratio{Numerator: ref("total_spending"), Denominator: ref("customer_count")},
		},
		{
			ID: "total_spending", Kind: semantic.KindDerived, Label: "Total Spending",
			Description: "Spending across all product categories", Owner: "finance",
		},
		{
			ID: "customer_count", Kind: semantic.KindCount, Label: "Customers",
			Description: "Number of customers", Owner: "analytics",
		},
		{
			ID: "average_income", Kind: semantic.KindAvg, Label: "Average Income",
			Description: "Mean household income", Owner: "finance",
			Expr: col("Income"), DefaultGroupBy: []string{"Education"},
		},
		{
			ID: "response_rate", Kind: semantic.KindRatio, Label: "Campaign Response Rate",
			Description: "Share of customers who accepted the last campaign", Owner: "marketing",
			Expr: expr.Ratio{
				Numerator:   expr.Aggregate{Func: expr.AggSum, Arg: col("Response")},
				Denominator: expr.Aggregate{Func: expr.AggCount},
			},
		},
		{
			ID: "web_purchase_share", Kind: semantic.KindRatio, Label: "Web Purchase Share",
			Description: "Web purchases as a share of web and store purchases", Owner: "marketing",
			Expr: expr.Ratio{
				Numerator: expr.Aggregate{Func: expr.AggSum, Arg: col("NumWebPurchases")},
				Denominator: expr.Aggregate{Func: expr.AggSum, Arg: expr.Arith{
					Op: expr.OpAdd, Operands: []expr.Expr{col("NumWebPurchases"), col("NumStorePurchases")},
				}},
			},
		},
		{
			ID: "spending_per_purchase", Kind: semantic.KindDerived, Label: "Spending per Purchase",
			Description: "Total spending divided by purchase count", Owner: "finance",
			Expr: expr.Arith{Op: expr.OpDiv, Operands: []expr.Expr{
				ref("total_spending"),
				expr.Aggregate{Func: expr.AggSum, Arg: expr.Arith{
					Op: expr.OpAdd, Operands: []expr.Expr{col("NumWebPurchases"), col("NumStorePurchases")},
				}},
			}},
		},
		{
			ID: "income_thousands", Kind: semantic.KindDerived, Label: "Average Income (k)",
			Description: "Average income in thousands", Owner: "finance",
			Expr: expr.Arith{Op: expr.OpDiv, Operands: []expr.Expr{
				ref("average_income"),
				expr.Number{Value: decimal.NewFromInt(1000)},
			}},
		},
	}

	total := make([]expr.Expr, 0, len(spending))
	for _, s := range spending {
		metrics = append(metrics, semantic.Metric{
			ID: s.id, Kind: semantic.KindSum, Label: s.label,
			Description: "Sum of " + s.column, Owner: "analytics",
			Expr: col(s.column),
		})
		total = append(total, ref(s.id))
	}
	metrics[1].Expr = expr.Arith{Op: expr.OpAdd, Operands: total}

	return metrics
}
