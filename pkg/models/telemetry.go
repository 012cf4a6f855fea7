// Package models pkg/models/telemetry.go
package models

import "time"

// Status is the power state reported by the UPS.
type Status string

const (
	StatusOnline    Status = "online"
	StatusOnBattery Status = "battery"
	StatusUnknown   Status = "unknown"
)

// Reading is one decoded telemetry sample. It is immutable: produced once
// per successful poll and replaced, never updated in place.
type Reading struct {
	InputVoltage   float64   `json:"input_voltage"`
	OutputVoltage  float64   `json:"output_voltage"`
	BatteryVoltage float64   `json:"battery_voltage"`
	Frequency      float64   `json:"frequency"`
	InputFrequency float64   `json:"input_frequency"`
	BatteryLevel   int       `json:"battery_level"`
	LoadPower      int       `json:"load_power"`
	LoadPercent    int       `json:"load_percent"`
	Temperature    float64   `json:"temperature"`
	Status         Status    `json:"status"`
	CapturedAt     time.Time `json:"captured_at"`
}
