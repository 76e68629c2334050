package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(SamplesTotal.WithLabelValues("accepted"))
	SamplesTotal.WithLabelValues("accepted").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SamplesTotal.WithLabelValues("accepted")))

	VisiblePins.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(VisiblePins))
}

func TestHandler(t *testing.T) {
	PassBysTotal.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "serendipity_pass_bys_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
