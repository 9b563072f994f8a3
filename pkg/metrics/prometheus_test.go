package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordPrediction("regressor", "model")
	r.RecordPrediction("regressor", "model")
	r.RecordPrediction("regressor", "tiered")
	r.RecordTraining("decision", "ok", 1.5)
	r.RecordReload("regressor", "error")
	r.SetActiveModels(3)
	r.RecordError("consumer_invalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions.WithLabelValues("regressor", "model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("regressor", "tiered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainings.WithLabelValues("decision", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reloads.WithLabelValues("regressor", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.activeModels))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("consumer_invalid")))
}
