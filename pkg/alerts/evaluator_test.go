package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kmatveev/upsmon/pkg/models"
)

// healthyReading returns a reading that trips no thresholds.
func healthyReading() models.Reading {
	return models.Reading{
		InputVoltage:   228.4,
		OutputVoltage:  230.1,
		BatteryVoltage: 13.5,
		Frequency:      50.0,
		InputFrequency: 50.0,
		BatteryLevel:   100,
		LoadPower:      142,
		LoadPercent:    14,
		Temperature:    36.0,
		Status:         models.StatusOnline,
	}
}

func TestEvaluateHealthy(t *testing.T) {
	set := Evaluate(healthyReading())
	assert.Empty(t, set)
}

func TestEvaluateBatteryBoundary(t *testing.T) {
	r := healthyReading()

	r.BatteryLevel = 20
	assert.False(t, Evaluate(r).Contains(models.AlarmLowBattery))

	r.BatteryLevel = 19
	set := Evaluate(r)
	assert.True(t, set.Contains(models.AlarmLowBattery))

	for _, a := range set {
		if a.Condition == models.AlarmLowBattery {
			assert.Equal(t, "battery_level", a.Metric)
			assert.InDelta(t, 19.0, a.Value, 0.001)
		}
	}
}

func TestEvaluateInputVoltageBoundary(t *testing.T) {
	r := healthyReading()

	r.InputVoltage = 180.0
	assert.False(t, Evaluate(r).Contains(models.AlarmLowInputVoltage))

	r.InputVoltage = 179.9
	assert.True(t, Evaluate(r).Contains(models.AlarmLowInputVoltage))
}

func TestEvaluateTemperatureBoundary(t *testing.T) {
	r := healthyReading()

	r.Temperature = 40.0
	assert.False(t, Evaluate(r).Contains(models.AlarmHighTemperature))

	r.Temperature = 40.5
	assert.True(t, Evaluate(r).Contains(models.AlarmHighTemperature))
}

func TestEvaluateLoadBoundary(t *testing.T) {
	r := healthyReading()

	r.LoadPercent = 80
	assert.False(t, Evaluate(r).Contains(models.AlarmHighLoad))

	r.LoadPercent = 81
	assert.True(t, Evaluate(r).Contains(models.AlarmHighLoad))
}

func TestEvaluateMultipleConditions(t *testing.T) {
	r := healthyReading()
	r.InputVoltage = 0 // mains lost
	r.BatteryLevel = 5
	r.Temperature = 55
	r.LoadPercent = 95

	set := Evaluate(r)
	assert.Len(t, set, 4)
}

func TestEvaluateFreshPerReading(t *testing.T) {
	// A recovered reading produces an empty set: alarms are recomputed,
	// not accumulated.
	low := healthyReading()
	low.BatteryLevel = 10
	assert.NotEmpty(t, Evaluate(low))

	assert.Empty(t, Evaluate(healthyReading()))
}
