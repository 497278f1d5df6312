package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trash2cash_request_transitions_total",
		Help: "Request lifecycle transitions, labeled by source and target status",
	}, []string{"from", "to"})

	listingStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trash2cash_listing_status_changes_total",
		Help: "Listing status changes, labeled by target status",
	}, []string{"status"})

	cascadeDeletedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trash2cash_cascade_deleted_requests_total",
		Help: "Requests removed together with their listing",
	})

	lifecycleConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trash2cash_lifecycle_conflicts_total",
		Help: "Lifecycle operations refused because of a concurrent or competing change",
	}, []string{"operation"})
)
