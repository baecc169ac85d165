package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoride"

var (
	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rides_created_total", Help: "Total rides booked"})

	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Successful ride lifecycle operations"},
		[]string{"op", "status"},
	)

	RideRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_rejections_total", Help: "Rejected ride lifecycle operations by error kind"},
		[]string{"op", "code"},
	)

	DriversAvailable = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "drivers_available", Help: "Number of drivers with status available"})
	LocationUpdates  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "driver_location_updates_total", Help: "Driver position reports accepted"})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "realtime_clients", Help: "Connected realtime clients"})

	RealtimeDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "realtime_events_total", Help: "Events queued to realtime subscribers"},
		[]string{"type"},
	)
	RealtimeDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "realtime_events_dropped_total", Help: "Events dropped from slow subscriber queues"})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "broker_events_published_total", Help: "Messages handed to the message broker"},
		[]string{"broker", "stream", "result"},
	)
	// stream is rides or locations
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "broker_events_dropped_total", Help: "Messages dropped because the publish queue was full"},
		[]string{"broker", "stream"},
	)

	// result is one of stored, stale, invalid, store_error
	ConsumerLocations = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "consumer_locations_total", Help: "Driver location messages handled by the location consumer"},
		[]string{"result"},
	)
	ConsumerReadErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "consumer_read_errors_total", Help: "Failed reads from the location topic"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
