package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	var r Recorder

	before := testutil.ToFloat64(questionsTotal.WithLabelValues("compare"))
	r.Question("compare")
	r.Question("compare")
	assert.Equal(t, before+2, testutil.ToFloat64(questionsTotal.WithLabelValues("compare")))

	before = testutil.ToFloat64(answersTotal.WithLabelValues("fallback"))
	r.Answer("fallback")
	assert.Equal(t, before+1, testutil.ToFloat64(answersTotal.WithLabelValues("fallback")))

	before = testutil.ToFloat64(storeFailuresTotal)
	r.StoreFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(storeFailuresTotal))

	r.ObserveGeneration("timeout", 25*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(generationDuration))
}

func TestRequestStarted(t *testing.T) {
	var r Recorder
	done := r.RequestStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(httpInFlight))
	done("POST", "/api/chat", 200)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/chat", "200")))
}
