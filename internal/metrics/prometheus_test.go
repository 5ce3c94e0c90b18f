package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "error", classifyStatus(0))
	assert.Equal(t, "2xx", classifyStatus(204))
	assert.Equal(t, "3xx", classifyStatus(302))
	assert.Equal(t, "4xx", classifyStatus(404))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "99", classifyStatus(99))
}

func TestRecordRun_CountsFoundSkus(t *testing.T) {
	before := testutil.ToFloat64(skusFoundTotal)
	beforeRuns := testutil.ToFloat64(runsTotal.WithLabelValues("succeeded"))

	RecordRun("succeeded", 3, time.Second)

	assert.Equal(t, before+3, testutil.ToFloat64(skusFoundTotal))
	assert.Equal(t, beforeRuns+1, testutil.ToFloat64(runsTotal.WithLabelValues("succeeded")))
}
