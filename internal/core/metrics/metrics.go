package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "natpunch"

var (
	relayReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_reservations_total",
			Help:      "Number of relay reservation attempts by result",
		},
		[]string{"result"},
	)
	relayCircuits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_circuits_total",
			Help:      "Number of relay circuits by result",
		},
		[]string{"result"},
	)
	relayedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Number of bytes spliced through relay circuits",
		},
	)
	holePunchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holepunch_outcomes_total",
			Help:      "Number of hole punch attempts by outcome and role",
		},
		[]string{"outcome", "role"},
	)
	holePunchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "holepunch_duration_seconds",
			Help:      "Duration of hole punch attempts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)
	gossipMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_total",
			Help:      "Number of gossip messages by event",
		},
		[]string{"event"},
	)
	identifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identify_total",
			Help:      "Number of identify exchanges by result",
		},
		[]string{"result"},
	)
)

// Collectors 返回本包全部收集器
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		relayReservations,
		relayCircuits,
		relayedBytes,
		holePunchOutcomes,
		holePunchDuration,
		gossipMessages,
		identifyTotal,
	}
}

func init() {
	prometheus.MustRegister(Collectors()...)
}

// ReservationResult 记录一次预约结果
func ReservationResult(result string) {
	relayReservations.WithLabelValues(result).Inc()
}

// CircuitResult 记录一次中继电路结果
func CircuitResult(result string) {
	relayCircuits.WithLabelValues(result).Inc()
}

// RelayedBytes 累加中继转发字节数
func RelayedBytes(n int64) {
	if n > 0 {
		relayedBytes.Add(float64(n))
	}
}

// HolePunchOutcome 记录一次打洞结果
func HolePunchOutcome(outcome, role string) {
	holePunchOutcomes.WithLabelValues(outcome, role).Inc()
}

// HolePunchDuration 记录打洞耗时
func HolePunchDuration(outcome string, d time.Duration) {
	holePunchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// GossipMessage 记录一条 gossip 消息事件
func GossipMessage(event string) {
	gossipMessages.WithLabelValues(event).Inc()
}

// IdentifyResult 记录一次 identify 结果
func IdentifyResult(result string) {
	identifyTotal.WithLabelValues(result).Inc()
}
