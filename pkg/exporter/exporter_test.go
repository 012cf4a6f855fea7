package exporter

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatveev/upsmon/pkg/models"
)

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		Reading: &models.Reading{
			InputVoltage:   228.4,
			OutputVoltage:  230.1,
			BatteryVoltage: 13.5,
			Frequency:      50.0,
			InputFrequency: 49.9,
			BatteryLevel:   100,
			LoadPower:      142,
			LoadPercent:    14,
			Temperature:    36,
			Status:         models.StatusOnline,
		},
		Connection: models.ConnectionConnected,
	}
}

func TestExporterObserve(t *testing.T) {
	e := New()
	e.Observe(sampleSnapshot(), models.Health{State: models.StatePolling})

	assert.InDelta(t, 228.4, testutil.ToFloat64(e.inputVoltage), 0.001)
	assert.InDelta(t, 230.1, testutil.ToFloat64(e.outputVoltage), 0.001)
	assert.InDelta(t, 13.5, testutil.ToFloat64(e.batteryVoltage), 0.001)
	assert.InDelta(t, 14, testutil.ToFloat64(e.loadPercent), 0.001)
	assert.InDelta(t, 142, testutil.ToFloat64(e.loadPower), 0.001)
	assert.InDelta(t, 100, testutil.ToFloat64(e.batteryLevel.WithLabelValues("online")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(e.status.WithLabelValues("online")), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(e.status.WithLabelValues("battery")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(e.connected), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(e.alarmsActive), 0.001)
}

func TestExporterObserveOnBattery(t *testing.T) {
	e := New()

	snap := sampleSnapshot()
	snap.Reading.Status = models.StatusOnBattery
	snap.Reading.BatteryLevel = 15
	snap.Connection = models.ConnectionDegraded
	snap.Alarms = models.AlarmSet{{Condition: models.AlarmLowBattery, Metric: "battery_level", Value: 15}}

	e.Observe(snap, models.Health{State: models.StateDegraded, ConsecutiveErrors: 3})

	assert.InDelta(t, 0, testutil.ToFloat64(e.status.WithLabelValues("online")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(e.status.WithLabelValues("battery")), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(e.connected), 0.001)
	assert.InDelta(t, 3, testutil.ToFloat64(e.consecutiveErrors), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(e.alarmsActive), 0.001)
}

func TestExporterObserveWithoutReading(t *testing.T) {
	e := New()

	// Before the first successful poll only daemon gauges move.
	e.Observe(models.Snapshot{Connection: models.ConnectionConnecting}, models.Health{ConsecutiveErrors: 1})

	assert.InDelta(t, 0, testutil.ToFloat64(e.inputVoltage), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(e.consecutiveErrors), 0.001)
}

func TestExporterHandlerServesTextFormat(t *testing.T) {
	e := New()
	e.Observe(sampleSnapshot(), models.Health{})

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ups_input_voltage 228.4")
}
