// Package exporter publishes UPS telemetry as Prometheus gauges.
package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmatveev/upsmon/pkg/models"
)

// Exporter owns a dedicated registry so the scrape surface carries only
// UPS metrics.
type Exporter struct {
	registry *prometheus.Registry

	inputVoltage   prometheus.Gauge
	outputVoltage  prometheus.Gauge
	batteryVoltage prometheus.Gauge
	batteryLevel   *prometheus.GaugeVec
	loadPercent    prometheus.Gauge
	loadPower      prometheus.Gauge
	frequency      prometheus.Gauge
	inputFrequency prometheus.Gauge
	temperature    prometheus.Gauge
	status         *prometheus.GaugeVec

	connected         prometheus.Gauge
	consecutiveErrors prometheus.Gauge
	alarmsActive      prometheus.Gauge
}

func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		inputVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_input_voltage", Help: "Input voltage in volts",
		}),
		outputVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_output_voltage", Help: "Output voltage in volts",
		}),
		batteryVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_battery_voltage", Help: "Battery voltage in volts",
		}),
		batteryLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ups_battery_level", Help: "Battery level in percent",
		}, []string{"status"}),
		loadPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_load_percent", Help: "Load percentage",
		}),
		loadPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_load_power", Help: "Load power in watts",
		}),
		frequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_frequency", Help: "Frequency in Hz",
		}),
		inputFrequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_input_frequency", Help: "Input frequency in Hz",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_temperature", Help: "Temperature in Celsius",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ups_status", Help: "UPS status (1=online, 0=battery)",
		}, []string{"status"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_daemon_connected", Help: "Whether the poll link is healthy (1=connected)",
		}),
		consecutiveErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_daemon_consecutive_errors", Help: "Consecutive poll failures",
		}),
		alarmsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_alarms_active", Help: "Number of active alarm conditions",
		}),
	}

	e.registry.MustRegister(
		e.inputVoltage, e.outputVoltage, e.batteryVoltage, e.batteryLevel,
		e.loadPercent, e.loadPower, e.frequency, e.inputFrequency,
		e.temperature, e.status, e.connected, e.consecutiveErrors,
		e.alarmsActive,
	)

	return e
}

// Observe updates all gauges from a snapshot and the scheduler health.
func (e *Exporter) Observe(snap models.Snapshot, health models.Health) {
	if snap.Reading != nil {
		r := snap.Reading

		e.inputVoltage.Set(r.InputVoltage)
		e.outputVoltage.Set(r.OutputVoltage)
		e.batteryVoltage.Set(r.BatteryVoltage)
		e.batteryLevel.WithLabelValues(string(r.Status)).Set(float64(r.BatteryLevel))
		e.loadPercent.Set(float64(r.LoadPercent))
		e.loadPower.Set(float64(r.LoadPower))
		e.frequency.Set(r.Frequency)
		e.inputFrequency.Set(r.InputFrequency)
		e.temperature.Set(r.Temperature)

		for _, status := range []models.Status{models.StatusOnline, models.StatusOnBattery} {
			value := 0.0
			if r.Status == status {
				value = 1.0
			}

			e.status.WithLabelValues(string(status)).Set(value)
		}
	}

	if snap.Connection == models.ConnectionConnected {
		e.connected.Set(1)
	} else {
		e.connected.Set(0)
	}

	e.consecutiveErrors.Set(float64(health.ConsecutiveErrors))
	e.alarmsActive.Set(float64(len(snap.Alarms)))
}

// Handler returns the scrape handler for the /metrics route.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
