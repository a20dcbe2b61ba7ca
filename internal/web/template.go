package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/amperage-follower/internal/logic"
	"github.com/sweeney/amperage-follower/internal/status"
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
	"stateClass": func(s logic.RelayState) string {
		switch s {
		case logic.StateEnergized:
			return "on"
		case logic.StateShuttingDown:
			return "pending"
		case logic.StateDeenergized:
			return "off"
		}
		return "unknown"
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Amperage Follower</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.pending { color: orange; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Amperage Follower</h1>

<h2>Relays</h2>
<table>
<tr><th>Follower</th><td class="{{stateClass .Follower}}">{{.Follower}}</td></tr>
<tr><th>Follower contact</th><td>{{onOff .Outputs.FollowerRelay}}</td></tr>
<tr><th>Event</th><td class="{{stateClass .Event}}">{{.Event}}</td></tr>
<tr><th>Event contact</th><td>{{onOff .Outputs.EventRelay}}</td></tr>
</table>

<h2>Current</h2>
<table>
{{with .Last}}<tr><th>Load</th><td>{{.Milliamps}} mA</td></tr>
<tr><th>Raw min/max</th><td>{{.Min}} / {{.Max}}</td></tr>
<tr><th>Samples</th><td>{{.Samples}}</td></tr>
<tr><th>Measured</th><td>{{.At.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Load</th><td class="unknown">no reading yet</td></tr>{{end}}
<tr><th>Trigger</th><td>{{.Config.TriggerMilliamps}} mA</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Follower energized</th><td>{{.Counts.FollowerEnergized}}</td></tr>
<tr><th>Follower shutting down</th><td>{{.Counts.FollowerShuttingDown}}</td></tr>
<tr><th>Follower de-energized</th><td>{{.Counts.FollowerDeenergized}}</td></tr>
<tr><th>Event pulses</th><td>{{.Counts.EventEnergized}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot ID</th><td>{{.BootID}}</td></tr>
<tr><th>Check interval</th><td>{{.Config.CheckIntervalMs}}ms</td></tr>
<tr><th>Follower lag</th><td>{{.Config.FollowerShutoffLagMs}}ms</td></tr>
<tr><th>Event lag</th><td>{{.Config.EventShutoffLagMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
