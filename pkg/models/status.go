// Package models pkg/models/status.go
package models

import (
	"fmt"
	"time"
)

// DaemonState is the polling scheduler's state machine position. It is
// owned exclusively by the scheduler goroutine.
type DaemonState string

const (
	StateConnecting   DaemonState = "connecting"
	StatePolling      DaemonState = "polling"
	StateDegraded     DaemonState = "degraded"
	StateReconnecting DaemonState = "reconnecting"
	StateStopped      DaemonState = "stopped"
)

// ConnectionStatus is the store's view of the link, derived from the
// daemon state and attached to every snapshot.
type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDegraded     ConnectionStatus = "degraded"
	ConnectionReconnecting ConnectionStatus = "reconnecting"
)

// Snapshot is the externally visible bundle served to publishers.
// Readers always receive a copy, never a reference into live state.
type Snapshot struct {
	Reading    *Reading         `json:"reading"`
	Alarms     AlarmSet         `json:"alarms"`
	Connection ConnectionStatus `json:"connection"`
	Uptime     string           `json:"uptime"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Health is the scheduler's health report for the /api/health endpoint.
type Health struct {
	State             DaemonState `json:"state"`
	Uptime            string      `json:"uptime"`
	ConsecutiveErrors int         `json:"consecutive_errors"`
}

// FormatUptime renders a duration as hh:mm:ss, matching the daemon's
// reporting format everywhere uptime is shown.
func FormatUptime(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
