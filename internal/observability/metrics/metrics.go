package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuthenticationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_attempts_total",
			Help: "Authorization header checks by scheme and result.",
		},
		[]string{"scheme", "result"},
	)

	MessagesStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_stored_total",
			Help: "Total number of stored messages.",
		},
	)

	MessagesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_rejected_total",
			Help: "Send requests rejected during validation.",
		},
		[]string{"reason"},
	)

	MessageRecipientDevices = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_recipient_devices",
			Help:    "Number of device keys attached to each stored message.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	MessageCiphertextBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_ciphertext_bytes",
			Help:    "Ciphertext sizes for stored messages.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		},
	)

	DeliveriesClearedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliveries_cleared_total",
			Help: "Per-device deliveries removed by clear or device removal.",
		},
	)

	NotificationsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Events dropped because a subscriber was not keeping up.",
		},
	)

	SocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socket_connections",
			Help: "Currently open notification sockets.",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector on the default registry with a
// constant service label. Repeated calls are no-ops.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			AuthenticationAttemptsTotal,
			MessagesStoredTotal,
			MessagesRejectedTotal,
			MessageRecipientDevices,
			MessageCiphertextBytes,
			DeliveriesClearedTotal,
			NotificationsDroppedTotal,
			SocketConnections,
		)
	})
}
