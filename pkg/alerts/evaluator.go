// Package alerts derives alarm conditions from telemetry readings and
// delivers them to an optional webhook.
package alerts

import "github.com/kmatveev/upsmon/pkg/models"

// Alarm thresholds for the monitored UPS.
const (
	MinInputVoltage = 180.0 // volts
	MinBatteryLevel = 20    // percent
	MaxTemperature  = 40.0  // degrees Celsius
	MaxLoadPercent  = 80    // percent
)

// Evaluate derives the alarm set for a single reading. It is a pure
// function re-run on every new reading; each rule is an independent
// instantaneous check with no hysteresis, so conditions clear as soon as
// the triggering value recovers.
func Evaluate(r models.Reading) models.AlarmSet {
	var set models.AlarmSet

	if r.InputVoltage < MinInputVoltage {
		set = append(set, models.Alarm{
			Condition: models.AlarmLowInputVoltage,
			Metric:    "input_voltage",
			Value:     r.InputVoltage,
		})
	}

	if r.BatteryLevel < MinBatteryLevel {
		set = append(set, models.Alarm{
			Condition: models.AlarmLowBattery,
			Metric:    "battery_level",
			Value:     float64(r.BatteryLevel),
		})
	}

	if r.Temperature > MaxTemperature {
		set = append(set, models.Alarm{
			Condition: models.AlarmHighTemperature,
			Metric:    "temperature",
			Value:     r.Temperature,
		})
	}

	if r.LoadPercent > MaxLoadPercent {
		set = append(set, models.Alarm{
			Condition: models.AlarmHighLoad,
			Metric:    "load_percent",
			Value:     float64(r.LoadPercent),
		})
	}

	return set
}
