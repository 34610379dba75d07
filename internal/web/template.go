package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>KNX Actuator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.warn { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>KNX Actuator {{.Device.Serial}}</h1>

<h2>Device</h2>
<table>
<tr><th>Individual address</th><td>{{orNone .Device.IA}}</td></tr>
<tr><th>Installation ID</th><td>{{.Device.IID}}</td></tr>
<tr><th>Programming mode</th><td id="progmode" class="{{if .Controller.ProgrammingMode}}on{{else}}off{{end}}">{{onOff .Controller.ProgrammingMode}}{{if not .Controller.ProgrammingModeAvailable}} <span class="warn">(unavailable)</span>{{end}}</td></tr>
<tr><th>Indicator</th><td>{{if .Controller.Flickering}}flickering{{else if .Controller.Flashing}}flashing{{else}}idle{{end}}</td></tr>
<tr><th>Next reset stage</th><td id="reset-state">{{.Controller.ResetState}}</td></tr>
</table>

{{if .Datapoints}}<h2>Datapoints</h2>
<table>
{{range .Datapoints}}<tr><th>{{.URL}}</th><td class="{{if .Value}}on{{else}}off{{end}}">{{onOff .Value}}</td></tr>
{{end}}</table>
{{end}}
<h2>Network</h2>
<table>
<tr><th>Thread role</th><td>{{orNone .Network.Role}}</td></tr>
<tr><th>Link mode</th><td>{{orNone .Network.LinkMode}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

{{if .Config.Sleepy}}<h2>Sleep</h2>
<table>
<tr><th>Last decision</th><td>{{orNone (printf "%s" .LastSleep.Reason)}}</td></tr>
<tr><th>Last wake</th><td>{{if .Controller.LastWake.IsZero}}never{{else}}{{.Controller.LastWake.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
<tr><th>Sleeps</th><td>{{.Controller.Counts.Sleeps}}</td></tr>
<tr><th>Time asleep</th><td>{{uptime .Controller.Counts.Slept}}</td></tr>
</table>
{{end}}
<h2>Event Counts</h2>
<table>
<tr><th>Programming mode entered</th><td>{{.Controller.Counts.ProgrammingModeEntered}}</td></tr>
<tr><th>Programming mode exited</th><td>{{.Controller.Counts.ProgrammingModeExited}}</td></tr>
<tr><th>KNX resets</th><td>{{.Controller.Counts.KNXResets}}</td></tr>
<tr><th>Thread resets</th><td>{{.Controller.Counts.ThreadResets}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
{{if .Config.Sleepy}}<tr><th>Poll period</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Min awake</th><td>{{.Config.MinAwakeMs}}ms</td></tr>
{{end}}<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

type datapointRow struct {
	URL   string
	Value bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	rows := make([]datapointRow, 0, len(snap.Device.Datapoints))
	for url, v := range snap.Device.Datapoints {
		rows = append(rows, datapointRow{URL: url, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].URL < rows[j].URL })

	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Datapoints []datapointRow
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Datapoints: rows,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Warnf("web: render status page: %v", err)
	}
}
