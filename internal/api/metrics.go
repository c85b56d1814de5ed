package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	printRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_print_requests_total",
		Help: "Print requests by printer, input mode, and outcome.",
	}, []string{"printer", "mode", "outcome"})

	printBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_print_bytes_total",
		Help: "ESC/POS payload bytes transmitted per printer.",
	}, []string{"printer"})

	pooledConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_pooled_connections",
		Help: "Idle connections currently held across all printer pools.",
	})
)
