package checkout

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/obs"
)

func checkoutBody(cartID uuid.UUID) string {
	return `{"cartId":"` + cartID.String() + `","zone":"insideZone","address":{` +
		`"receiverName":"Nusrat Jahan","phone":"+8801700000000",` +
		`"addressLine":"House 12, Road 5, Dhanmondi","city":"Dhaka","postalCode":"1209"}}`
}

func TestCreateHandlerCountsOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("glowtest", prometheus.NewRegistry())

	userID := uuid.New()
	cartID := uuid.New()
	productID := uuid.New()
	store := &fakeCartStore{
		cart: cart.Cart{ID: cartID, UserID: &userID},
		items: []cart.Item{
			{ID: uuid.New(), CartID: cartID, ProductID: productID, Title: "Serum", Quantity: 1, UnitPrice: dec("250"), Selected: true},
		},
	}
	tx := &fakeTx{products: map[uuid.UUID]stockRow{
		productID: {title: "Serum", stock: 4, track: true, status: inventory.StatusActive},
	}}
	svc := &Service{Pool: &fakeBeginner{tx: tx}, Carts: store, Orders: &fakeOrderStore{}, Currency: "BDT"}
	h := &Handler{Svc: svc, Validate: validator.New()}

	okBefore := testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("ok"))
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody(cartID)))
	req = req.WithContext(common.WithUser(req.Context(), userID.String(), nil))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, okBefore+1, testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("ok")))

	// someone else's cart fails and lands in the error bucket
	errBefore := testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("error"))
	req = httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody(cartID)))
	req = req.WithContext(common.WithUser(req.Context(), uuid.New().String(), nil))
	rr = httptest.NewRecorder()
	h.Create(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, errBefore+1, testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("error")))
}
