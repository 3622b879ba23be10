package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts service operations by outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_operations_total",
		Help: "Total discussion operations by operation and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discussion_operation_duration_seconds",
		Help:    "Discussion operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"operation"})

	// treeComments tracks how many comments each assembled listing holds.
	treeComments = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discussion_tree_comments",
		Help:    "Number of comments assembled into a listing",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	})
)

func observe(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
