// Package api pkg/api/dashboard.go
package api

import (
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/kmatveev/upsmon/pkg/models"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

type dashboardData struct {
	Reading    *models.Reading
	Alarms     []string
	StatusText string
	StatusCSS  string
	Uptime     string
	UpdatedAt  string
}

func (s *Server) getDashboard(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()

	data := dashboardData{
		Reading:    snap.Reading,
		StatusText: "NO DATA",
		StatusCSS:  "unknown",
		Uptime:     snap.Uptime,
	}

	if snap.Reading != nil {
		data.UpdatedAt = snap.UpdatedAt.Format("2006-01-02 15:04:05")

		switch snap.Reading.Status {
		case models.StatusOnline:
			data.StatusText = "ONLINE"
			data.StatusCSS = "online"
		case models.StatusOnBattery:
			data.StatusText = "ON BATTERY"
			data.StatusCSS = "battery"
		default:
			data.StatusText = "UNKNOWN"
			data.StatusCSS = "unknown"
		}
	}

	for _, alarm := range snap.Alarms {
		text := strings.ReplaceAll(string(alarm.Condition), "_", " ")
		data.Alarms = append(data.Alarms, text)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := dashboardTmpl.Execute(w, data); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>UPS Monitor</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: #2c3e50; }
        .container { max-width: 1100px; margin: 0 auto; background: white; border-radius: 12px; overflow: hidden; }
        .header { background: #34495e; color: white; padding: 20px; text-align: center; }
        .header p { color: #bdc3c7; margin: 5px 0 0; }
        .status { color: white; padding: 10px; text-align: center; font-size: 1.1em; font-weight: bold; }
        .status.online { background: #27ae60; }
        .status.battery { background: #e74c3c; }
        .status.unknown { background: #7f8c8d; }
        .alarm { background: #e74c3c; color: white; padding: 12px; margin: 15px 20px 0; border-radius: 8px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(230px, 1fr)); gap: 16px; padding: 20px; }
        .card { background: #f8f9fa; border-radius: 8px; padding: 18px; text-align: center; border-left: 4px solid #3498db; }
        .card h3 { margin: 0 0 8px; color: #2c3e50; font-size: 0.95em; }
        .value { font-size: 1.8em; font-weight: bold; color: #3498db; }
        .unit { font-size: 0.55em; color: #7f8c8d; }
        .footer { text-align: center; padding: 14px; color: #7f8c8d; border-top: 1px solid #ecf0f1; font-size: 0.9em; }
        .footer a { color: #3498db; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>UPS Monitor</h1>
            <p>Real-time telemetry</p>
        </div>
        <div class="status {{.StatusCSS}}">
            Status: {{.StatusText}}{{if .UpdatedAt}} | Last Update: {{.UpdatedAt}}{{end}}{{if .Uptime}} | Uptime: {{.Uptime}}{{end}}
        </div>
        {{range .Alarms}}<div class="alarm">ALARM: {{.}}</div>{{end}}
        {{if .Reading}}
        <div class="grid">
            <div class="card"><h3>Input Voltage</h3><div class="value">{{printf "%.1f" .Reading.InputVoltage}}<span class="unit">V</span></div></div>
            <div class="card"><h3>Output Voltage</h3><div class="value">{{printf "%.1f" .Reading.OutputVoltage}}<span class="unit">V</span></div></div>
            <div class="card"><h3>Frequency</h3><div class="value">{{printf "%.1f" .Reading.Frequency}}<span class="unit">Hz</span></div></div>
            <div class="card"><h3>Battery Voltage</h3><div class="value">{{printf "%.1f" .Reading.BatteryVoltage}}<span class="unit">V</span></div></div>
            <div class="card"><h3>Battery Level</h3><div class="value">{{.Reading.BatteryLevel}}<span class="unit">%</span></div></div>
            <div class="card"><h3>Load Power</h3><div class="value">{{.Reading.LoadPower}}<span class="unit">W</span></div></div>
            <div class="card"><h3>Load</h3><div class="value">{{.Reading.LoadPercent}}<span class="unit">%</span></div></div>
            <div class="card"><h3>Temperature</h3><div class="value">{{printf "%.1f" .Reading.Temperature}}<span class="unit">&deg;C</span></div></div>
        </div>
        {{else}}
        <div class="grid"><div class="card"><h3>Waiting for first poll</h3></div></div>
        {{end}}
        <div class="footer">
            <p><a href="/api/telemetry">JSON API</a> | <a href="/api/health">Health</a> | <a href="/metrics">Metrics</a></p>
        </div>
    </div>
    <script>
        var proto = location.protocol === "https:" ? "wss:" : "ws:";
        var ws = new WebSocket(proto + "//" + location.host + "/ws");
        var seeded = false;
        ws.onmessage = function () {
            // The first message replays the state this page was rendered
            // from; only later updates warrant a refresh.
            if (seeded) { location.reload(); }
            seeded = true;
        };
        ws.onclose = function () { setTimeout(function () { location.reload(); }, 10000); };
    </script>
</body>
</html>
`
