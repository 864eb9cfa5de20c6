package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementEntries()
	m.IncrementEntries()
	m.IncrementRejectedEntries("insufficient_payment")
	m.IncrementPayouts(PayoutResultPaid)
	m.SetRound(2, 3, big.NewInt(75_000_000_000_000_000))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejectedTotal.WithLabelValues("insufficient_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PayoutsTotal.WithLabelValues(PayoutResultPaid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.State))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Entrants))
	assert.Equal(t, 7.5e16, testutil.ToFloat64(m.PoolBalanceWei))
}
