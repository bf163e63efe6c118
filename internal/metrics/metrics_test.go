package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
)

func TestMetrics_ImplementsRecorder(t *testing.T) {
	var _ service.Recorder = New()
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := New()

	m.CouponCreated("ok")
	m.CouponCreated("duplicate")
	m.CouponValidated("expired")
	m.CouponRedeemed("ok", 10)
	m.CouponRedeemed("ok", 25)
	m.CouponRedeemed("already_redeemed", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.created.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.created.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("expired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.redemptions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redemptions.WithLabelValues("already_redeemed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "coupon_ledger_redeemed_discount_percent_count 2",
		"failed redemptions should not observe a discount")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CouponRedeemed("ok", 10)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `coupon_ledger_redemptions_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "coupon_ledger_redeemed_discount_percent_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.CouponCreated("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.created.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.created.WithLabelValues("ok")))
}
