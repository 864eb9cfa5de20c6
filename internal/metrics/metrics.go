package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	PayoutResultPaid   = "paid"
	PayoutResultFailed = "failed"
)

type Metrics struct {
	EntriesTotal            prometheus.Counter
	EntriesRejectedTotal    *prometheus.CounterVec
	DrawsRequestedTotal     prometheus.Counter
	PayoutsTotal            *prometheus.CounterVec
	RejectedCallbacksTotal  prometheus.Counter
	Entrants                prometheus.Gauge
	PoolBalanceWei          prometheus.Gauge
	State                   prometheus.Gauge
	RandomnessRequestErrors prometheus.Counter
}

// New registers the raffle collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_entries_total",
			Help: "Total number of accepted raffle entries",
		}),
		EntriesRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_entries_rejected_total",
			Help: "Total number of rejected raffle entries by reason",
		}, []string{"reason"}),
		DrawsRequestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_draws_requested_total",
			Help: "Total number of draws that placed a randomness request",
		}),
		PayoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_payouts_total",
			Help: "Total number of payout attempts by result",
		}, []string{"result"}),
		RejectedCallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_rejected_callbacks_total",
			Help: "Total number of randomness fulfillments rejected as unknown",
		}),
		Entrants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raffle_entrants",
			Help: "Current number of entries in the running round",
		}),
		PoolBalanceWei: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raffle_pool_balance_wei",
			Help: "Current pool balance in the smallest native unit",
		}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raffle_state",
			Help: "Current raffle state (0 open, 1 closed, 2 calculating, 3 payout failed)",
		}),
		RandomnessRequestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_randomness_request_errors_total",
			Help: "Total number of failed randomness requests",
		}),
	}
}

func (m *Metrics) IncrementEntries() {
	m.EntriesTotal.Inc()
}

func (m *Metrics) IncrementRejectedEntries(reason string) {
	m.EntriesRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementDrawsRequested() {
	m.DrawsRequestedTotal.Inc()
}

func (m *Metrics) IncrementRandomnessRequestErrors() {
	m.RandomnessRequestErrors.Inc()
}

func (m *Metrics) IncrementPayouts(result string) {
	m.PayoutsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementRejectedCallbacks() {
	m.RejectedCallbacksTotal.Inc()
}

// SetRound publishes the current round gauges.
func (m *Metrics) SetRound(state int, entrants int, balance *big.Int) {
	m.State.Set(float64(state))
	m.Entrants.Set(float64(entrants))

	wei, _ := new(big.Float).SetInt(balance).Float64()
	m.PoolBalanceWei.Set(wei)
}
