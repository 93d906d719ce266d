package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lethe_console/internal/api"
	"lethe_console/internal/status"
)

const namespace = "lethe"

// Collector экспортирует состояние опроса в Prometheus.
// Реализует poller.Observer.
type Collector struct {
	registry *prometheus.Registry

	drivesTotal        prometheus.Gauge
	drivesEncrypted    prometheus.Gauge
	wipesInProgress    prometheus.Gauge
	activeOperation    *prometheus.GaugeVec
	encryptionProgress prometheus.Gauge
	encryptionFiles    *prometheus.GaugeVec
	dodElapsed         prometheus.Gauge
	pollFailures       *prometheus.CounterVec
	lastUpdate         prometheus.Gauge
}

// New регистрирует метрики на отдельном registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		drivesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drives_total",
			Help:      "Number of drives reported by the backend dashboard",
		}),
		drivesEncrypted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drives_encrypted",
			Help:      "Number of encrypted drives reported by the backend dashboard",
		}),
		wipesInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wipes_in_progress",
			Help:      "Wipes in progress as displayed (after wipe count correction)",
		}),
		activeOperation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_operation",
			Help:      "1 for the current reconciled operation state",
		}, []string{"kind"}),
		encryptionProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "encryption_progress_percent",
			Help:      "Progress of the running encryption job",
		}),
		encryptionFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "encryption_files",
			Help:      "Files of the running encryption job by outcome",
		}, []string{"outcome"}),
		dodElapsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dod_wipe_elapsed_seconds",
			Help:      "Elapsed time of the running DoD wipe",
		}),
		pollFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Failed backend polls by endpoint and reason",
		}, []string{"endpoint", "reason"}),
		lastUpdate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_updated_timestamp_seconds",
			Help:      "Unix time of the last reconciled view",
		}),
	}

	for _, k := range status.Kinds() {
		c.activeOperation.WithLabelValues(k.String()).Set(0)
	}
	c.activeOperation.WithLabelValues(status.KindLoading.String()).Set(1)
	return c
}

// Registry registry с метриками консоли
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler HTTP обработчик /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) PollFailed(endpoint string, err error) {
	c.pollFailures.WithLabelValues(endpoint, api.Reason(err)).Inc()
}

func (c *Collector) ViewChanged(v status.View) {
	for _, k := range status.Kinds() {
		val := 0.0
		if k == v.Kind {
			val = 1
		}
		c.activeOperation.WithLabelValues(k.String()).Set(val)
	}

	if v.Kind == status.KindEncryptionRunning && v.Encryption != nil {
		c.encryptionProgress.Set(float64(v.ProgressPercent))
		c.encryptionFiles.WithLabelValues("total").Set(float64(v.Encryption.TotalFiles))
		c.encryptionFiles.WithLabelValues("success").Set(float64(v.Encryption.Success))
		c.encryptionFiles.WithLabelValues("failed").Set(float64(v.Encryption.Failed))
	} else {
		c.encryptionProgress.Set(0)
		c.encryptionFiles.Reset()
	}

	if v.Kind == status.KindDoDWipeRunning {
		c.dodElapsed.Set(v.Elapsed.Seconds())
	} else {
		c.dodElapsed.Set(0)
	}

	if !v.UpdatedAt.IsZero() {
		c.lastUpdate.Set(float64(v.UpdatedAt.Unix()))
	}
}

func (c *Collector) StatsChanged(s status.StatsSummary) {
	if !s.Known {
		return
	}
	c.drivesTotal.Set(float64(s.DrivesDetected))
	c.drivesEncrypted.Set(float64(s.DrivesEncrypted))
	c.wipesInProgress.Set(float64(s.WipesInProgress))
}
