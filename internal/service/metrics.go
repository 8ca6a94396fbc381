package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	curationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curations_created_total",
			Help: "Total number of curation review cycles opened",
		},
		[]string{"kind"},
	)

	curationStatusUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curation_status_updates_total",
			Help: "Total number of curation updates by resulting status",
		},
		[]string{"kind", "status"},
	)

	forumPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_posts_total",
			Help: "Assignee notification posts by result",
		},
		[]string{"result"},
	)

	reconciliationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_reconciliation_duration_seconds",
			Help:    "Duration of content reconciliation runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"result"},
	)
)
