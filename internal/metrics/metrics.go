// Package metrics exposes the Prometheus counters and gauges scraped
// from the server, modeled on the teacher's ws/metrics.go
// (package-level prometheus.NewCounter/NewGauge vars, registered in
// init, served via promhttp at /metrics).
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kanband_sessions_active",
		Help: "Current number of open server sessions",
	})

	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kanband_sessions_total",
		Help: "Total number of sessions accepted",
	})

	SessionsSlowDisconnected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kanband_sessions_slow_disconnected_total",
		Help: "Total number of sessions dropped for being too slow to keep up",
	})

	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kanband_operations_total",
		Help: "Total operations dispatched by kind and outcome",
	}, []string{"kind", "outcome"})

	SubscriptionFanoutLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kanband_subscription_fanout_seconds",
		Help:    "Time from a store change to it landing on a session's outbound channel",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})

	StoreNodesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kanband_store_nodes_total",
		Help: "Current number of nodes in the content tree",
	})

	StoreRootNodesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kanband_store_root_nodes_total",
		Help: "Current number of top-level nodes in root_list",
	})

	ProcessMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kanband_process_memory_mb",
		Help: "Resident set size of the server process, in megabytes",
	})
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsTotal,
		SessionsSlowDisconnected,
		OperationsTotal,
		SubscriptionFanoutLatency,
		StoreNodesTotal,
		StoreRootNodesTotal,
		ProcessMemoryMB,
	)
}

// Handler serves the registered metrics over HTTP.
func Handler() http.Handler { return promhttp.Handler() }

// StartProcessMonitor periodically samples the server process's RSS
// and falls back to system-wide used memory if the process handle
// can't be opened. Modeled on the teacher's collectMetrics
// (ws/internal/single/core/monitoring_collectors.go), trimmed to the
// one signal this repo exposes: resident memory.
func StartProcessMonitor(ctx context.Context, logger zerolog.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open process handle for memory sampling")
		proc = nil
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sampleMemory(proc, logger)
		}
	}
}

func sampleMemory(proc *process.Process, logger zerolog.Logger) {
	if proc != nil {
		if info, err := proc.MemoryInfo(); err == nil {
			ProcessMemoryMB.Set(float64(info.RSS) / 1024 / 1024)
			return
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		ProcessMemoryMB.Set(float64(vmem.Used) / 1024 / 1024)
	} else {
		logger.Warn().Err(err).Msg("failed to sample system memory")
	}
}
