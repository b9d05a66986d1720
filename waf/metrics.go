package waf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollguard_blocked_requests_total",
			Help: "Requests denied by the firewall, by pipeline stage and reason",
		},
		[]string{"stage", "reason"},
	)

	threatFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollguard_threat_findings_total",
			Help: "Threat findings produced by the inspector",
		},
		[]string{"kind", "severity"},
	)

	trackedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollguard_tracked_clients",
			Help: "Clients currently tracked by the activity escalation table",
		},
	)
)
