package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.Request(ResultHit)
	r.Request(ResultHit)
	r.Request(ResultMiss)
	r.StoreError(OpWrite)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Requests().WithLabelValues(ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Requests().WithLabelValues(ResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StoreErrors().WithLabelValues(OpWrite)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.StoreErrors().WithLabelValues(OpLookup)))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Request(ResultError)
		r.StoreError(OpLookup)
		r.Observe(StageTotal, time.Now())
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Request(ResultMiss)
	r.Observe(StageFetch, time.Now())

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `image_handler_requests_total{result="miss"} 1`)
	assert.Contains(t, string(body), `image_handler_render_duration_seconds_count{stage="fetch"} 1`)
}
