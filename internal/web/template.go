package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/tally-clock/internal/logic"
	"github.com/sweeney/tally-clock/internal/status"
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
	"relative": func(t, now time.Time) string {
		return humanize.RelTime(t, now, "ago", "from now")
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
	"hhmm": func(h, m int) string {
		return fmt.Sprintf("%02d:%02d", h, m)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tally Clock</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.busy { color: orange; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Tally Clock</h1>

<h2>Now</h2>
<table>
<tr><th>Time</th><td>{{.Now.Format "15:04:05"}}</td></tr>
<tr><th>Pattern</th><td id="pattern">{{if .NowPattern}}{{.NowPattern}}{{else}}(nothing to play){{end}}</td></tr>
<tr><th>Motor</th><td class="{{if .Busy}}busy{{else}}idle{{end}}">{{if .Busy}}playing{{else}}idle{{end}}</td></tr>
</table>
<form method="post" action="/buzz"><button type="submit">Feel now</button></form>

<h2>Schedule</h2>
<table>
<tr><th>Cron</th><td>{{.Schedule.CronSpec}}</td></tr>
<tr><th>Next buzz</th><td>{{if .Schedule.NextBuzzAt.IsZero}}unknown{{else}}{{.Schedule.NextBuzzAt.Format "15:04"}} ({{relative .Schedule.NextBuzzAt .Now}}){{end}}</td></tr>
<tr><th>Countdown</th><td>{{.Schedule.CountdownMinutes}}m {{.Schedule.CountdownSeconds}}s</td></tr>
{{with .LastBuzz}}<tr><th>Last buzz</th><td>{{hhmm .Hour .Minute}} {{.Source}} ({{relative .At $.Now}})</td></tr>
<tr><th>Last pattern</th><td>{{.Description}}</td></tr>{{else}}<tr><th>Last buzz</th><td>never</td></tr>{{end}}
</table>

<h2>Settings</h2>
<table>
<tr><th>Format</th><td>{{if .Settings.Clock.Use12HourFormat}}12h{{else}}24h{{end}}</td></tr>
<tr><th>Hours</th><td>{{if .Settings.Clock.IncludeHours}}on{{else}}off{{end}}</td></tr>
<tr><th>Minutes</th><td>{{if .Settings.Clock.IncludeMinutes}}on{{else}}off{{end}}</td></tr>
<tr><th>Tally base</th><td>{{.Settings.Clock.TallyBase}}</td></tr>
<tr><th>Interval</th><td>every {{.Settings.Clock.BuzzInterval}}m from :{{printf "%02d" .Settings.Clock.StartMinute}}</td></tr>
<tr><th>Audio</th><td>{{if .Settings.Clock.AudioEnabled}}on{{else}}off{{end}}</td></tr>
<tr><th>Timing</th><td>long {{ms .Settings.Timing.Long}}ms, short {{ms .Settings.Timing.Short}}ms, gap {{ms .Settings.Timing.InterPulse}}ms, separator {{ms .Settings.Timing.Separator}}ms</td></tr>
</table>

<h2>Buzz Counts</h2>
<table>
<tr><th>Scheduled</th><td>{{.Counts.Scheduled}}</td></tr>
<tr><th>Manual</th><td>{{.Counts.Manual}}</td></tr>
<tr><th>Empty</th><td>{{.Counts.Empty}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Rate limited</th><td>{{.Counts.Limited}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Settings file</th><td>{{.Config.SettingsPath}}</td></tr>
<tr><th>Pins</th><td>motor {{.Config.PinMotor}}, buzzer {{if lt .Config.PinBuzzer 0}}disabled{{else}}{{.Config.PinBuzzer}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/pattern.json">Pattern</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		NowPattern string
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		NowPattern: logic.DescribePattern(snap.Now.Hour(), snap.Now.Minute(), snap.Settings.Clock),
	}
	indexTmpl.Execute(w, data)
}
