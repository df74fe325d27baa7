package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/catalog"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/obs"
)

func TestQuoteHandlerCountsOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("glowtest", prometheus.NewRegistry())

	store := newFakeStore()
	productID := uuid.New()
	products := &fakeProducts{products: map[uuid.UUID]catalog.Product{
		productID: {ID: productID, Price: dec("100"), Stock: 10, TrackInventory: true, Status: inventory.StatusActive},
	}}
	svc := newTestService(store, products, nil)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), c.ID, productID, 2)
	require.NoError(t, err)

	h := &Handler{Svc: svc, Validate: validator.New()}
	router := chi.NewRouter()
	router.Post("/carts/{id}/quote", h.Quote)

	okBefore := testutil.ToFloat64(obs.QuoteTotal.WithLabelValues("insideZone", "ok"))
	req := httptest.NewRequest(http.MethodPost, "/carts/"+c.ID.String()+"/quote",
		strings.NewReader(`{"zone":"insideZone"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, okBefore+1, testutil.ToFloat64(obs.QuoteTotal.WithLabelValues("insideZone", "ok")))

	errBefore := testutil.ToFloat64(obs.QuoteTotal.WithLabelValues("outsideZone", "error"))
	req = httptest.NewRequest(http.MethodPost, "/carts/"+uuid.New().String()+"/quote",
		strings.NewReader(`{"zone":"outsideZone"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, errBefore+1, testutil.ToFloat64(obs.QuoteTotal.WithLabelValues("outsideZone", "error")))
}
