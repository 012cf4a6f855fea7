// cmd/upsmon/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmatveev/upsmon/pkg/alerts"
	"github.com/kmatveev/upsmon/pkg/api"
	"github.com/kmatveev/upsmon/pkg/config"
	"github.com/kmatveev/upsmon/pkg/exporter"
	"github.com/kmatveev/upsmon/pkg/models"
	"github.com/kmatveev/upsmon/pkg/monitor"
	"github.com/kmatveev/upsmon/pkg/mqttpub"
	"github.com/kmatveev/upsmon/pkg/protocol"
	"github.com/kmatveev/upsmon/pkg/telemetry"
	"github.com/kmatveev/upsmon/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	interval := flag.Duration("interval", 0, "Poll interval (overrides config)")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker host (overrides config, enables publishing)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags and the positional serial port win over the file.
	if port := flag.Arg(0); port != "" {
		cfg.Serial.Port = port
	}

	if *listenAddr != "" {
		cfg.Web.ListenAddr = *listenAddr
	}

	if *interval > 0 {
		cfg.Monitoring.Interval = config.Duration(*interval)
	}

	if *mqttBroker != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = *mqttBroker
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	closeLog, err := setupLogging(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Daemon failed: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// setupLogging points the standard logger at the configured sinks and
// returns a closer for the log file.
func setupLogging(cfg config.LoggingConfig) (func(), error) {
	if cfg.File == "" {
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", cfg.File, err)
	}

	if cfg.Console {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	} else {
		log.SetOutput(f)
	}

	return func() { _ = f.Close() }, nil
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("Starting UPS monitor on %s (interval %s)",
		cfg.Serial.Port, cfg.Monitoring.Interval.Duration())

	store := telemetry.NewStore()

	opener := func() (transport.Link, error) {
		return transport.Open(transport.Config{
			Path:         cfg.Serial.Port,
			BaudRate:     cfg.Serial.BaudRate,
			Timeout:      cfg.Monitoring.Timeout.Duration(),
			WakeupFrames: protocol.WakeupFrames(),
		})
	}

	mon := monitor.New(monitor.Config{
		Interval:  cfg.Monitoring.Interval.Duration(),
		Timeout:   cfg.Monitoring.Timeout.Duration(),
		MaxErrors: cfg.Monitoring.MaxErrors,
	}, store, opener)

	exp := exporter.New()

	var server *api.Server
	if cfg.Web.Enabled {
		server = api.NewServer(store, mon, exp.Handler())
	}

	var publisher *mqttpub.Publisher

	if cfg.MQTT.Enabled {
		var err error

		publisher, err = mqttpub.New(mqttpub.Config{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to start MQTT publisher: %w", err)
		}

		defer publisher.Close()
	}

	alerter := alerts.NewWebhookAlerter(cfg.Alerts.Webhook())

	errCh := make(chan error, 2)

	go func() {
		errCh <- mon.Run(ctx)
	}()

	if server != nil {
		go func() {
			errCh <- server.Start(ctx, cfg.Web.ListenAddr)
		}()
	}

	go fanout(ctx, mon, exp, server, publisher, alerter)

	var runErr error

	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
		cancel()
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down web server: %v", err)
		}
	}

	log.Printf("UPS monitor stopped")

	return runErr
}

// fanout forwards each snapshot from the poll loop to the configured
// publishers. Publisher failures are logged, never fatal.
func fanout(ctx context.Context, mon *monitor.Monitor, exp *exporter.Exporter,
	server *api.Server, publisher *mqttpub.Publisher, alerter alerts.AlertService) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-mon.Updates():
			if !ok {
				return
			}

			exp.Observe(snap, mon.Health())

			if server != nil {
				server.Broadcast(snap)
			}

			if publisher != nil {
				if err := publisher.Publish(snap); err != nil {
					log.Printf("MQTT publish failed: %v", err)
				}
			}

			sendAlerts(ctx, alerter, snap)
		}
	}
}

func sendAlerts(ctx context.Context, alerter alerts.AlertService, snap models.Snapshot) {
	if !alerter.IsEnabled() || snap.Reading == nil {
		return
	}

	for _, alarm := range snap.Alarms {
		alert := alerts.AlarmToAlert(alarm, *snap.Reading)

		if err := alerter.Alert(ctx, alert); err != nil && !errors.Is(err, alerts.ErrCooldown) {
			log.Printf("Failed to deliver alert %q: %v", alert.Title, err)
		}
	}
}
