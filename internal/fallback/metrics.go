package fallback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeOffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fallback_offers_stored",
		Help: "Offers currently held by the HTTP fallback store",
	})

	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fallback_requests_total",
		Help: "Fallback API requests by method and status code",
	}, []string{"method", "status"})
)
