package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func TestMetrics_RecordIngest(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.RecordIngest(ctx, "exp", "Control", domain.IngestRecorded)
	m.RecordIngest(ctx, "exp", "Control", domain.IngestRecorded)
	m.RecordIngest(ctx, "exp", "Control", domain.IngestDuplicateIgnored)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingests.WithLabelValues("exp", "Control", "recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingests.WithLabelValues("exp", "Control", "duplicate_ignored")))
}

func TestMetrics_FailuresAndTransitions(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.RecordIngestFailure(ctx, "exp", domain.KindValidation)
	m.RecordIngestFailure(ctx, "exp", "")
	m.RecordTransition(ctx, "exp", domain.StatusDraft, domain.StatusRunning)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestFailures.WithLabelValues("exp", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestFailures.WithLabelValues("exp", "internal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("draft", "running")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/experiments", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lfadmin_http_request_duration_seconds_count"))
	assert.True(t, strings.Contains(body, `route="/api/experiments"`))
}
