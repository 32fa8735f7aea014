package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"graphguard/internal/dsl"
	"graphguard/internal/metrics"
	"graphguard/internal/reference"
	"graphguard/internal/storage"
	"graphguard/internal/validation"
	"graphguard/internal/vo"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const billingDSL = `
module billing

entity Invoice:
  caption: "Invoice"
  number: string required unique caption="Number"
  total: decimal required min=0 scale=2
  status: enum catalog=status
  customer: ref[Customer]
  lines: array[ref[Line]] rel=composition
  constraints:
    used_by(Payment.invoice)

entity Line:
  qty: int required min=1

entity Customer:
  name: string required

entity Payment:
  invoice: ref[Invoice] depends_on
`

func init() { gin.SetMode(gin.TestMode) }

func build(_ context.Context, reg *dsl.Registry, enums reference.Catalog) (*Engine, error) {
	store := storage.NewMemory(reg)
	return &Engine{
		Registry:  reg,
		Enums:     enums,
		Finder:    store,
		Validator: validation.New(reg, store, validation.WithEnums(enums)),
	}, nil
}

type fixture struct {
	srv     *Server
	router  http.Handler
	store   *storage.Memory
	metrics *metrics.Collector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg, err := dsl.ParseRegistry(strings.NewReader(billingDSL))
	require.NoError(t, err)
	enums := reference.Catalog{"status": {Name: "status", Items: []reference.EnumItem{{Code: "draft"}, {Code: "paid"}}}}
	eng, err := build(context.Background(), reg, enums)
	require.NoError(t, err)

	m := metrics.NewCollector(prometheus.NewRegistry())
	srv := NewServer(eng, WithMetrics(m), WithReload(build, t.TempDir(), t.TempDir()))
	return fixture{srv: srv, router: srv.Router(), store: eng.Finder.(*storage.Memory), metrics: m}
}

func (f fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f fixture) put(t *testing.T, e *vo.Entity) string {
	t.Helper()
	id, err := f.store.Put(context.Background(), e)
	require.NoError(t, err)
	return id
}

func errorCodes(t *testing.T, out map[string]any) []string {
	t.Helper()
	raw, ok := out["errors"].([]any)
	require.True(t, ok, "no errors in %v", out)
	codes := make([]string, 0, len(raw))
	for _, r := range raw {
		m := r.(map[string]any)
		codes = append(codes, m["code"].(string)+"@"+m["field"].(string))
	}
	return codes
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)
	custID := f.put(t, vo.New("Customer").With("name", "Ann"))
	f.put(t, vo.New("Invoice").With("number", "A-1").With("total", decimal.NewFromInt(1)))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		codes  []string
	}{
		{
			name:   "valid insert",
			path:   "/api/billing/Invoice/_validate",
			body:   `{"number":"B-1","total":"10.50","status":"draft","customer":"` + custID + `","lines":[{"qty":2}]}`,
			status: http.StatusOK,
		},
		{
			name:   "business failures",
			path:   "/api/billing/Invoice/_validate",
			body:   `{"number":"B-2","total":"1.234","lines":[{"qty":0}]}`,
			status: http.StatusUnprocessableEntity,
			codes:  []string{"scale@total", "out_of_range@lines[0].qty"},
		},
		{
			name:   "conflict",
			path:   "/api/billing/Invoice/_validate",
			body:   `{"number":"A-1","total":1}`,
			status: http.StatusConflict,
			codes:  []string{"unique_violation@number"},
		},
		{
			name:   "decode error",
			path:   "/api/billing/Invoice/_validate",
			body:   `{"number":5,"total":"x"}`,
			status: http.StatusBadRequest,
			codes:  []string{"type_mismatch@number", "type_mismatch@total"},
		},
		{
			name:   "identity on insert is critical",
			path:   "/api/billing/Invoice/_validate",
			body:   `{"id":"x","number":"C","total":1}`,
			status: http.StatusInternalServerError,
		},
		{
			name:   "update with forced path",
			path:   "/api/billing/Invoice/_validate?mode=update&force=status",
			body:   `{"id":"x","number":"C","total":1}`,
			status: http.StatusUnprocessableEntity,
			codes:  []string{"required@status"},
		},
		{
			name:   "unknown mode",
			path:   "/api/billing/Invoice/_validate?mode=upsert",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown entity",
			path:   "/api/billing/Nope/_validate",
			body:   `{}`,
			status: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.codes != nil {
				assert.Equal(t, tt.codes, errorCodes(t, out))
			}
			if tt.status == http.StatusOK {
				assert.Equal(t, true, out["valid"])
			}
		})
	}
}

func TestValidateDeleteEndpoint(t *testing.T) {
	f := newFixture(t)
	invID := f.put(t, vo.New("Invoice").With("number", "A-1").With("total", decimal.NewFromInt(1)))
	freeID := f.put(t, vo.New("Invoice").With("number", "A-2").With("total", decimal.NewFromInt(1)))
	f.put(t, vo.New("Payment").With("invoice", vo.Ref("billing.Invoice", invID)))

	rec, out := f.do(t, http.MethodPost, "/api/billing/Invoice/"+invID+"/_validate_delete", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"used_by@"}, errorCodes(t, out))

	rec, _ = f.do(t, http.MethodPost, "/api/billing/Invoice/"+freeID+"/_validate_delete", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetaEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meta", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []metaEntityListItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 4)
	assert.Equal(t, "Customer", list[0].Entity)

	rec, out := f.do(t, http.MethodGet, "/api/meta/billing/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Invoice", out["entity"])
	fields := out["fields"].([]any)
	customer := fields[3].(map[string]any)
	assert.Equal(t, "billing.Customer", customer["refFQN"])
	assert.Equal(t, "association", customer["variant"])
	cons := out["constraints"].(map[string]any)
	assert.Len(t, cons["usedBy"], 1)

	rec, out = f.do(t, http.MethodGet, "/api/meta/catalogs/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 2)

	rec, _ = f.do(t, http.MethodGet, "/api/meta/catalogs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindEndpoints(t *testing.T) {
	f := newFixture(t)
	f.put(t, vo.New("Invoice").With("number", "A-1").With("total", decimal.NewFromInt(5)))
	id := f.put(t, vo.New("Invoice").With("number", "A-2").With("total", decimal.NewFromInt(50)))

	rec, out := f.do(t, http.MethodGet, "/api/billing/Invoice/_find?total__gte=10&sort=-number", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := out["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].(map[string]any)["id"])
	assert.Equal(t, "total >= 10", out["filter"])

	rec, out = f.do(t, http.MethodGet, "/api/billing/Invoice/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A-2", out["number"])

	rec, _ = f.do(t, http.MethodGet, "/api/billing/Invoice/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, http.MethodGet, "/api/admin/schema_lint", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["count"])

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crm.dsl"), []byte("module crm\n\nentity Lead:\n  email: string required\n"), 0o644))
	rec, out = f.do(t, http.MethodPost, "/api/admin/reload", `{"dsl_root":"`+filepath.ToSlash(dir)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), out["entities"])

	rec, out = f.do(t, http.MethodPost, "/api/crm/Lead/_validate", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"required@email"}, errorCodes(t, out))

	// схема с проблемами не заменяет текущую
	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, "x.dsl"), []byte("module x\n\nentity A:\n  b: ref[Missing]\n"), 0o644))
	rec, out = f.do(t, http.MethodPost, "/api/admin/reload", `{"dsl_root":"`+filepath.ToSlash(bad)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema has blocking issues", out["error"])
	assert.Equal(t, 1, f.srv.current().Registry.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/billing/Invoice/_validate", `{}`)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `graphguard_http_requests_total{route="/api/:module/:entity/_validate",status="422"} 1`)
}

func TestStatusForErrors(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusForErrors([]FieldError{ferr("required", "a", ""), ferr("ref_not_found", "b", "")}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForErrors([]FieldError{ferr("required", "a", "")}))
}
