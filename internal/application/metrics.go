package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values for the generation phase.
const (
	phaseSummary = "summary"
	phaseCode    = "code"
)

var (
	generationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitegen_generation_calls_total",
		Help: "Generation attempts per phase and outcome (ok, fallback)",
	}, []string{"phase", "outcome"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "suitegen_generation_duration_seconds",
		Help:    "Duration of one generation pipeline phase",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"phase"})

	subtreeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suitegen_tree_subtree_failures_total",
		Help: "Directory listings that failed during tree builds",
	})

	workflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitegen_workflow_transitions_total",
		Help: "Workflow phase transitions by source and target phase",
	}, []string{"from", "to"})

	suiteWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitegen_suite_store_writes_total",
		Help: "Suite store persistence attempts by result",
	}, []string{"result"})
)
