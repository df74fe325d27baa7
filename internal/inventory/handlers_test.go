package inventory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/obs"
)

func TestAdjustStockCountsOutcome(t *testing.T) {
	obs.MustRegisterDomainMetrics("glowtest", prometheus.NewRegistry())

	// no pool behind the service, so the adjustment itself fails
	h := &Handler{Svc: &Service{}, Validate: validator.New()}
	router := chi.NewRouter()
	router.Post("/admin/products/{id}/stock", h.AdjustStock)

	before := testutil.ToFloat64(obs.StockAdjustmentTotal.WithLabelValues("add", "error"))
	req := httptest.NewRequest(http.MethodPost, "/admin/products/"+uuid.New().String()+"/stock",
		strings.NewReader(`{"op":"add","quantity":5}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, before+1, testutil.ToFloat64(obs.StockAdjustmentTotal.WithLabelValues("add", "error")))

	// a malformed op never reaches the adjustment and counts nothing
	req = httptest.NewRequest(http.MethodPost, "/admin/products/"+uuid.New().String()+"/stock",
		strings.NewReader(`{"op":"teleport","quantity":5}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, before+1, testutil.ToFloat64(obs.StockAdjustmentTotal.WithLabelValues("add", "error")))
}
