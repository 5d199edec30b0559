package relay

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BioHazard786/duobooth/internal/store"
)

const metricsNamespace = "duobooth_relay"

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	RoomsCreated    prometheus.Counter
	RoomsJoined     prometheus.Counter
	RoomsExpired    prometheus.Counter
	MessagesRelayed *prometheus.CounterVec
	Polls           prometheus.Counter
	Failures        *prometheus.CounterVec
	WakeupsDropped  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoomsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created.",
		}),
		RoomsJoined: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rooms_joined_total",
			Help:      "Successful join requests.",
		}),
		RoomsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rooms_expired_total",
			Help:      "Rooms reclaimed after the inactivity window.",
		}),
		MessagesRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_relayed_total",
			Help:      "Signaling messages appended to a room log, by type.",
		}, []string{"type"}),
		Polls: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "polls_total",
			Help:      "Successful poll requests.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Rejected relay operations, by operation and reason.",
		}, []string{"op", "reason"}),
		WakeupsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "wakeups_dropped_total",
			Help:      "WebSocket wake-up notifications dropped because a subscriber was slow.",
		}),
	}
}

// RegisterStoreGauges exposes live room and buffered message counts.
func RegisterStoreGauges(reg prometheus.Registerer, st *store.Store) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "rooms",
		Help:      "Rooms currently held in memory.",
	}, func() float64 {
		rooms, _ := st.Stats()
		return float64(rooms)
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "buffered_messages",
		Help:      "Messages currently buffered across all rooms.",
	}, func() float64 {
		_, messages := st.Stats()
		return float64(messages)
	})
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "not_found"
	case IsValidation(err):
		return "validation"
	default:
		return "internal"
	}
}
