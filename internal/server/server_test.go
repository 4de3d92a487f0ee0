package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/metrics"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/querysql"
	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/service"
	"github.com/roach88/semlayer/internal/store"
	"github.com/roach88/semlayer/internal/testutil"
	"github.com/roach88/semlayer/internal/warehouse"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	audit, err := store.Open(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	wh, err := warehouse.Open(filepath.Join(dir, "warehouse.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })
	_, err = wh.ImportDelimited(context.Background(), "customers",
		strings.NewReader("Income,Kidhome,Teenhome\n80000,0,0\n20000,1,0\n50000,0,1\n"), warehouse.LoadOptions{})
	require.NoError(t, err)

	extractor := nlu.ExtractorFunc(func(_ context.Context, q string) (*intent.StructuredIntent, error) {
		if strings.Contains(q, "customers") {
			return &intent.StructuredIntent{MetricID: "customer_count"}, nil
		}
		return nil, &nlu.NoMatchError{Question: q, Reason: "off topic"}
	})

	m := testutil.MarketingModel(t, semantic.WithDialect(semantic.SQLiteDialect))
	svc := &service.Service{
		Compiler:  querysql.NewCompiler(m),
		Extractor: extractor,
		Warehouse: wh,
		Audit:     audit,
		Metrics:   metrics.New(),
	}
	return New(svc, Config{}, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCompile(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodPost, "/api/v1/compile",
		`{"metric":"total_spending","filters":["family_status.parents"]}`)
	require.Equal(t, http.StatusOK, status, body)

	query := body["query"].(map[string]any)
	assert.Equal(t, "SELECT "+testutil.TotalSpendingSQL+" AS value FROM customers WHERE (Kidhome > 0 OR Teenhome > 0)", query["sql"])
	assert.Equal(t, "SCALAR", query["shape"])
	assert.Equal(t, []any{"family_status.parents"}, query["used_segments"])
	assert.NotEmpty(t, body["audit_id"])
	assert.Nil(t, body["result"])
}

func TestCompile_Execute(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodPost, "/api/v1/compile?execute=true",
		`{"metric":"customer_count","filters":["family_status.parents"]}`)
	require.Equal(t, http.StatusOK, status, body)

	result := body["result"].(map[string]any)
	assert.Equal(t, []any{"value"}, result["columns"])
	assert.Equal(t, []any{[]any{2.0}}, result["rows"])
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"metric":`, http.StatusBadRequest, "INVALID_INTENT"},
		{"unknown metric", `{"metric":"nope"}`, http.StatusUnprocessableEntity, "METRIC_NOT_FOUND"},
		{"unknown segment", `{"metric":"customer_count","filters":["family_status.aliens"]}`, http.StatusUnprocessableEntity, "SEGMENT_NOT_FOUND"},
		{"numeric grouping", `{"metric":"customer_count","group_by":["Income"]}`, http.StatusUnprocessableEntity, "INVALID_GROUPING_COLUMN"},
		{"conflicting shape", `{"metric":"customer_count","group_by":["Education"],"breakdown":"value_tiers"}`, http.StatusUnprocessableEntity, "CONFLICTING_SHAPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, newTestServer(t), http.MethodPost, "/api/v1/compile", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAsk(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"how many customers?","execute":true}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "how many customers?", body["question"])
	assert.Equal(t, []any{[]any{3.0}}, body["result"].(map[string]any)["rows"])

	status, body = do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"weather?"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, nlu.CodeNoMatch, body["code"])

	status, _ = do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAsk_NotEnabled(t *testing.T) {
	s := newTestServer(t)
	s.svc.Extractor = nil

	status, _ := do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"how many customers?"}`)
	assert.Equal(t, http.StatusNotImplemented, status)
}

func TestVocabulary(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodGet, "/api/v1/vocabulary", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["families"], 5)
	assert.NotEmpty(t, body["metrics"])
	assert.NotEmpty(t, body["group_by_columns"])
}

func TestMetricAndSegment(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodGet, "/api/v1/metrics/customer_lifetime_value", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Customer Lifetime Value", body["label"])
	assert.Contains(t, body["sql"], "NULLIF(COUNT(*), 0)")
	assert.Contains(t, body["depends_on"], "total_spending")

	status, body = do(t, s, http.MethodGet, "/api/v1/segments/family_status.parents", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "family_status", body["family"])
	assert.Equal(t, "(Kidhome > 0 OR Teenhome > 0)", body["sql"])

	status, _ = do(t, s, http.MethodGet, "/api/v1/metrics/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, s, http.MethodGet, "/api/v1/segments/nope.nope", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAudit(t *testing.T) {
	s := newTestServer(t)

	_, body := do(t, s, http.MethodPost, "/api/v1/compile", `{"metric":"customer_count"}`)
	id := body["audit_id"].(string)
	do(t, s, http.MethodPost, "/api/v1/compile", `{"metric":"nope"}`)

	status, body := do(t, s, http.MethodGet, "/api/v1/audit", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["records"], 2)

	status, body = do(t, s, http.MethodGet, "/api/v1/audit?failed=true", "")
	require.Equal(t, http.StatusOK, status)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "METRIC_NOT_FOUND", records[0].(map[string]any)["error_code"])

	status, body = do(t, s, http.MethodGet, "/api/v1/audit/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "customer_count", body["metric_id"])

	status, _ = do(t, s, http.MethodGet, "/api/v1/audit/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, s, http.MethodGet, "/api/v1/audit/usage", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"customer_count": float64(1)}, body["usage"])

	_, body = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, float64(2), body["audit_seq"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/compile", `{"metric":"customer_count"}`)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `semlayer_compile_total{code="",shape="SCALAR"} 1`)
}
