package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kmatveev/upsmon/pkg/models"
)

var (
	errWebhookDisabled = fmt.Errorf("webhook alerter is disabled")
	errWebhookStatus   = fmt.Errorf("webhook returned non-200 status")

	// ErrCooldown reports that an identical alert fired within the
	// cooldown window and was suppressed.
	ErrCooldown = fmt.Errorf("alert is within cooldown period")
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig configures the outbound alert webhook.
type WebhookConfig struct {
	Enabled  bool              `yaml:"enabled"`
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Cooldown time.Duration     `yaml:"cooldown,omitempty"`
}

// AlertLevel indicates alert severity.
type AlertLevel string

const (
	Info    AlertLevel = "info"
	Warning AlertLevel = "warning"
)

// WebhookAlert is the JSON payload posted for one alarm condition.
type WebhookAlert struct {
	Level     AlertLevel     `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// WebhookAlerter posts alarm notifications to a configured HTTP endpoint,
// suppressing repeats of the same condition within the cooldown window.
type WebhookAlerter struct {
	config         WebhookConfig
	client         *http.Client
	lastAlertTimes map[string]time.Time
	mu             sync.Mutex
}

func NewWebhookAlerter(config WebhookConfig) *WebhookAlerter {
	return &WebhookAlerter{
		config: config,
		client: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
		lastAlertTimes: make(map[string]time.Time),
	}
}

func (w *WebhookAlerter) IsEnabled() bool {
	return w.config.Enabled
}

// Alert implements AlertService.
func (w *WebhookAlerter) Alert(ctx context.Context, alert *WebhookAlert) error {
	if !w.IsEnabled() {
		return errWebhookDisabled
	}

	if err := w.checkCooldown(alert.Title); err != nil {
		return err
	}

	if alert.Timestamp == "" {
		alert.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	return w.sendRequest(ctx, payload)
}

// AlarmToAlert converts a triggered alarm into its webhook payload.
func AlarmToAlert(alarm models.Alarm, reading models.Reading) *WebhookAlert {
	return &WebhookAlert{
		Level:   Warning,
		Title:   string(alarm.Condition),
		Message: fmt.Sprintf("UPS alarm %s: %s=%.1f", alarm.Condition, alarm.Metric, alarm.Value),
		Details: map[string]any{
			"metric":        alarm.Metric,
			"value":         alarm.Value,
			"status":        reading.Status,
			"input_voltage": reading.InputVoltage,
			"battery_level": reading.BatteryLevel,
		},
	}
}

func (w *WebhookAlerter) checkCooldown(alertTitle string) error {
	if w.config.Cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	lastAlertTime, exists := w.lastAlertTimes[alertTitle]
	if exists && time.Since(lastAlertTime) < w.config.Cooldown {
		return ErrCooldown
	}

	w.lastAlertTimes[alertTitle] = time.Now()

	return nil
}

func (w *WebhookAlerter) sendRequest(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	w.setHeaders(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, body)
	}

	return nil
}

func (w *WebhookAlerter) setHeaders(req *http.Request) {
	hasContentType := false

	for key, value := range w.config.Headers {
		if strings.EqualFold(key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(key, value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}
