// Package config pkg/config/errors.go
package config

import "errors"

var (
	errReadConfig      = errors.New("failed to read config file")
	errParseConfig     = errors.New("failed to parse config file")
	errInvalidDuration = errors.New("invalid duration")
	errNoSerialPort    = errors.New("serial port is required")
	errBadBaudRate     = errors.New("invalid baud rate")
	errTimeoutTooLong  = errors.New("poll timeout must be shorter than the poll interval")
	errNoMQTTBroker    = errors.New("mqtt is enabled but no broker is configured")
	errNoWebhookURL    = errors.New("alerts are enabled but no webhook url is configured")
)
