package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/gas-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"m3": func(v float64) string {
		return fmt.Sprintf("%.3f m³", v)
	},
	"celsius": func(v float64) string {
		return fmt.Sprintf("%.1f °C", v)
	},
	"deref":    func(p *float64) float64 { return *p },
	"derefInt": func(p *int) int { return *p },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Gas Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.closed { color: green; font-weight: bold; }
.open { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>Gas Sensor</h1>

<h2>Meter</h2>
<table>
<tr><th>Counter</th><td id="counter">{{.Counter}}</td></tr>
<tr><th>Trigger</th><td id="trigger" class="{{if eq (printf "%s" .Trigger) "CLOSED"}}closed{{else}}open{{end}}">{{.Trigger}}</td></tr>
<tr><th>Consumption</th><td>{{if .ConsumptionM3}}{{m3 (deref .ConsumptionM3)}}{{else}}<span class="muted">disabled</span>{{end}}</td></tr>
<tr><th>Temperature</th><td>{{if .TemperatureC}}{{celsius (deref .TemperatureC)}}{{else}}<span class="muted">pending</span>{{end}}</td></tr>
<tr><th>Last Bz</th><td>{{if .LastBz}}{{derefInt .LastBz}}{{else}}<span class="muted">no sample</span>{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Temperature</th><td>{{.Config.TemperatureMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Trigger</th><td>{{.Config.TriggerCenter}} ± {{.Config.TriggerBand}}</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
