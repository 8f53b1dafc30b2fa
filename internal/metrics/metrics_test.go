package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsSingleton(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.NotNil(t, a.PendingWrites)
	assert.NotPanics(t, func() {
		a.MutationTotal.WithLabelValues("rate", Status(nil)).Inc()
	})
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "error", Status(errors.New("boom")))
}
