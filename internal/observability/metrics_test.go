package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordDenial("username_is_free")
	m.RecordDenial("username_is_free")
	m.RecordLogin(OutcomeSuccess)
	m.RecordRegistration(OutcomeRejected)
	m.RecordLogout("logged out")

	assert.InDelta(t, 2, testutil.ToFloat64(m.CheckDenials.WithLabelValues("username_is_free")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logouts.WithLabelValues("logged out")), 0)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gatekeep_check_denials_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDenial("x")
		m.RecordLogin(OutcomeSuccess)
		m.RecordRegistration(OutcomeError)
		m.RecordLogout("no session")
	})
}
