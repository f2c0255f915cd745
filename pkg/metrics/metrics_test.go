package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.LoanCreated(decimal.RequireFromString("10000"))
	m.PaymentApplied("exact", decimal.RequireFromString("500"), 20*time.Millisecond)
	m.PaymentApplied("overpayment", decimal.RequireFromString("600.50"), 30*time.Millisecond)
	m.PaymentFailed("already_paid")
	m.ReminderSent("sent")
	m.HTTPRequest(http.MethodPost, http.StatusCreated)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loansCreated))
	assert.Equal(t, 10000.0, testutil.ToFloat64(m.principalIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("exact")))
	assert.Equal(t, 1100.5, testutil.ToFloat64(m.amountTendered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentFailures.WithLabelValues("already_paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "201")))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "microfin_payments_total"))
	assert.True(t, strings.Contains(body, "microfin_payment_duration_seconds_bucket"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoanCreated(decimal.NewFromInt(1))
		m.PaymentApplied("exact", decimal.NewFromInt(1), time.Second)
		m.PaymentFailed("persistence")
		m.ReminderSent("failed")
		m.HTTPRequest(http.MethodGet, http.StatusOK)
	})
}
