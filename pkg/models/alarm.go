// Package models pkg/models/alarm.go
package models

// AlarmCondition names a threshold rule.
type AlarmCondition string

const (
	AlarmLowInputVoltage AlarmCondition = "low_input_voltage"
	AlarmLowBattery      AlarmCondition = "low_battery"
	AlarmHighTemperature AlarmCondition = "high_temperature"
	AlarmHighLoad        AlarmCondition = "high_load"
)

// Alarm is one triggered condition with the metric and value that tripped it.
type Alarm struct {
	Condition AlarmCondition `json:"condition"`
	Metric    string         `json:"metric"`
	Value     float64        `json:"value"`
}

// AlarmSet is the full set of conditions derived from a single Reading.
// It is recomputed per reading, never accumulated.
type AlarmSet []Alarm

// Contains reports whether the set includes the given condition.
func (s AlarmSet) Contains(c AlarmCondition) bool {
	for _, a := range s {
		if a.Condition == c {
			return true
		}
	}

	return false
}
