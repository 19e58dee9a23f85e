package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lampd/internal/status"
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
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>{{.Config.Hostname}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Hostname}}</h1>

<h2>Lamp</h2>
<table>
<tr><th>Lamp</th><td id="lamp-state" class="{{stateClass .LampText}}">{{.LampText}}</td></tr>
<tr><th>Published</th><td id="published-state" class="{{stateClass .PublishedText}}">{{.PublishedText}}</td></tr>
<tr><th>In sync</th><td>{{if .InSync}}yes{{else}}no{{end}}</td></tr>
<tr><th>Publish pending</th><td>{{if .Pending}}yes{{if .Forced}} (requested){{end}}{{else}}no{{end}}</td></tr>
<tr><th>Last publish</th><td>{{clock .LastPublish}}</td></tr>
{{with .LastOutcome}}<tr><th>Last outcome</th><td>{{.Result}} {{.Reason}}{{if .Error}}: {{.Error}}{{end}}</td></tr>{{end}}
{{with .LastCommand}}<tr><th>Last command</th><td>{{.Kind}} on {{.Topic}} at {{clock .At}}</td></tr>{{end}}
<tr><th>Throttle</th><td class="{{if .Throttled}}disconnected{{else}}connected{{end}}">{{if .Throttled}}active since {{clock .ThrottleRaised}}{{else}}clear{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Command topic</th><td>{{.Config.CommandTopic}}</td></tr>
<tr><th>State topic</th><td>{{.Config.StateTopic}}</td></tr>
<tr><th>Dropped messages</th><td>{{.InboxDropped}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Activity</h2>
<table>
<tr><th>Switch toggles</th><td>{{.Counts.Toggles}}</td></tr>
<tr><th>Remote ON</th><td>{{.Counts.CommandsOn}}</td></tr>
<tr><th>Remote OFF</th><td>{{.Counts.CommandsOff}}</td></tr>
<tr><th>Status requests</th><td>{{.Counts.StatusRequests}}</td></tr>
<tr><th>Throttle notices</th><td>{{.Counts.ThrottleNotes}}</td></tr>
<tr><th>Unrecognized</th><td>{{.Counts.Unrecognized}}</td></tr>
<tr><th>Published</th><td>{{.Counts.Published}}</td></tr>
<tr><th>Failed</th><td>{{.Counts.Failed}}</td></tr>
<tr><th>Suppressed</th><td>{{.Counts.Suppressed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Throttle cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	lamp := "UNKNOWN"
	if snap.Ready {
		lamp = status.LampString(snap.Lamp)
	}
	published := "UNKNOWN"
	if snap.Published.Valid {
		published = status.LampString(snap.Published.State)
	}

	data := struct {
		status.Snapshot
		Uptime        time.Duration
		InSync        bool
		LampText      string
		PublishedText string
	}{
		Snapshot:      snap,
		Uptime:        snap.Uptime(),
		InSync:        snap.InSync(),
		LampText:      lamp,
		PublishedText: published,
	}
	indexTmpl.Execute(w, data)
}
