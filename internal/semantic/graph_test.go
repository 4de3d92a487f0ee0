package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/expr"
)

func derived(id string, refs ...string) Metric {
	operands := make([]expr.Expr, len(refs))
	for i, r := range refs {
		operands[i] = expr.MetricRef{ID: r}
	}
	var e expr.Expr
	if len(operands) == 1 {
		e = operands[0]
	} else if len(operands) > 1 {
		e = expr.Arith{Op: expr.OpAdd, Operands: operands}
	}
	return Metric{ID: id, Kind: KindDerived, Expr: e}
}

func TestResolutionOrder_DependenciesFirst(t *testing.T) {
	graph := buildDependencyGraph([]Metric{
		derived("clv", "total", "count"),
		derived("total", "wine", "meat"),
		derived("wine"),
		derived("meat"),
		derived("count"),
	})

	order, cycles := resolutionOrder(graph)
	assert.Empty(t, cycles)
	require.Len(t, order, 5)

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["total"], pos["clv"])
	assert.Less(t, pos["count"], pos["clv"])
	assert.Less(t, pos["wine"], pos["total"])
	assert.Less(t, pos["meat"], pos["total"])
}

func TestResolutionOrder_Deterministic(t *testing.T) {
	metrics := []Metric{derived("b", "a"), derived("a"), derived("c", "a"), derived("d")}

	first, _ := resolutionOrder(buildDependencyGraph(metrics))
	for i := 0; i < 20; i++ {
		again, _ := resolutionOrder(buildDependencyGraph(metrics))
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, first)
}

func TestResolutionOrder_Cycles(t *testing.T) {
	tests := []struct {
		name     string
		metrics  []Metric
		expected [][]string
	}{
		{
			name:     "self loop",
			metrics:  []Metric{derived("x", "x")},
			expected: [][]string{{"x", "x"}},
		},
		{
			name:     "two node",
			metrics:  []Metric{derived("b", "a"), derived("a", "b")},
			expected: [][]string{{"a", "b", "a"}},
		},
		{
			name:     "three node",
			metrics:  []Metric{derived("c", "a"), derived("a", "b"), derived("b", "c")},
			expected: [][]string{{"a", "b", "c", "a"}},
		},
		{
			name:     "two separate cycles",
			metrics:  []Metric{derived("a", "b"), derived("b", "a"), derived("p", "q"), derived("q", "p")},
			expected: [][]string{{"a", "b", "a"}, {"p", "q", "p"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, cycles := resolutionOrder(buildDependencyGraph(tt.metrics))
			assert.Empty(t, order)
			assert.Equal(t, tt.expected, cycles)
		})
	}
}

func TestBuildDependencyGraph_DropsUndefinedTargets(t *testing.T) {
	graph := buildDependencyGraph([]Metric{derived("a", "missing", "b"), derived("b")})
	assert.Equal(t, []string{"b"}, graph["a"])
	assert.Equal(t, []string{}, graph["b"])
}

func TestBuildDependencyGraph_MergesDuplicateIDs(t *testing.T) {
	graph := buildDependencyGraph([]Metric{
		derived("a", "b"),
		{ID: "a", Kind: KindCount},
		derived("a", "c", "b"),
		{ID: "b", Kind: KindCount},
		{ID: "c", Kind: KindCount},
	})
	assert.Equal(t, []string{"b", "c"}, graph["a"])

	order, cycles := resolutionOrder(graph)
	assert.Empty(t, cycles)
	assert.Equal(t, []string{"b", "c", "a"}, order)
}
