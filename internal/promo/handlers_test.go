package promo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/obs"
)

type fakeRuleStore struct {
	rules map[string]Rule
	err   error
}

func (f *fakeRuleStore) GetByCode(_ context.Context, code string) (Rule, error) {
	if f.err != nil {
		return Rule{}, f.err
	}
	r, ok := f.rules[code]
	if !ok {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRuleStore) CountUsageByUser(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRuleStore) UsageExists(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeRuleStore) RecordUsage(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	return nil
}

func (f *fakeRuleStore) Create(_ context.Context, r Rule) (Rule, error) { return r, nil }
func (f *fakeRuleStore) Update(_ context.Context, r Rule) (Rule, error) { return r, nil }
func (f *fakeRuleStore) List(context.Context, int, int) ([]Rule, error) { return nil, nil }

func validateCode(t *testing.T, store Store, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := &Handler{Svc: &Service{Store: store}}
	req := httptest.NewRequest(http.MethodPost, "/promos/validate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ValidateCode(rr, req)
	return rr
}

func TestValidateCodeCountsOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("glowtest", prometheus.NewRegistry())

	store := &fakeRuleStore{rules: map[string]Rule{
		"GLOW10": {ID: uuid.New(), Code: "GLOW10", Type: "percentage", Value: dec("10"), Active: true},
		"OLD":    {ID: uuid.New(), Code: "OLD", Type: "percentage", Value: dec("10"), Active: false},
	}}

	validBefore := testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("valid"))
	rr := validateCode(t, store, `{"code":"GLOW10","orderAmount":"500"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"valid":true`)
	require.Equal(t, validBefore+1, testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("valid")))

	invalidBefore := testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("invalid"))
	rr = validateCode(t, store, `{"code":"OLD","orderAmount":"500"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"valid":false`)
	require.Equal(t, invalidBefore+1, testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("invalid")))

	errBefore := testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("error"))
	rr = validateCode(t, &fakeRuleStore{err: errors.New("connection reset")}, `{"code":"GLOW10","orderAmount":"500"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, errBefore+1, testutil.ToFloat64(obs.PromoValidationTotal.WithLabelValues("error")))
}
