// Package metrics registers the Prometheus instruments for the purchase
// subsystem. Counters are package-level and registered once via
// promauto; the /metrics endpoint serves the default registry.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    // ReservationsTotal counts reservation attempts by outcome:
    // opened, conflict, canceled, gateway_error.
    ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "marketplace_reservations_total",
        Help: "Reservation attempts by outcome",
    }, []string{"outcome"})

    // WebhookEventsTotal counts processed gateway events by type and
    // what happened to them: applied, noop, ignored, dropped, rejected, error.
    WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "marketplace_webhook_events_total",
        Help: "Gateway webhook events by type and outcome",
    }, []string{"type", "outcome"})

    // SweepRunsTotal counts sweeper executions, including skipped ticks.
    SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "marketplace_sweep_runs_total",
        Help: "Expiry sweeper runs by result (completed, skipped, error)",
    }, []string{"result"})

    // SweepReclaimedTotal counts reservations reclaimed by the sweeper.
    SweepReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
        Name: "marketplace_sweep_reclaimed_total",
        Help: "Stale reservations reclaimed and returned to sale",
    })
)
