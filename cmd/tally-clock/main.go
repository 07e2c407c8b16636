// Command tally-clock buzzes the current time as long and short vibration
// pulses on a schedule, and reports every buzz to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/tally-clock/internal/buzzer"
	"github.com/sweeney/tally-clock/internal/config"
	"github.com/sweeney/tally-clock/internal/gpio"
	"github.com/sweeney/tally-clock/internal/logic"
	"github.com/sweeney/tally-clock/internal/mqtt"
	"github.com/sweeney/tally-clock/internal/sequencer"
	"github.com/sweeney/tally-clock/internal/status"
	"github.com/sweeney/tally-clock/internal/web"
)

type options struct {
	configPath  string
	broker      string
	httpAddr    string
	pinMotor    int
	pinBuzzer   int
	tick        time.Duration
	heartbeat   time.Duration
	manualEvery time.Duration
	logLevel    string
	describe    string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "/etc/tally-clock/settings.yaml", "Settings file (reloaded on change; defaults if missing)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.IntVar(&o.pinMotor, "pin-motor", gpio.DefaultPinMotor, "BCM pin number for the vibration motor")
	flag.IntVar(&o.pinBuzzer, "pin-buzzer", gpio.DefaultPinBuzzer, "BCM pin number for the piezo buzzer (-1 to disable)")
	flag.DurationVar(&o.tick, "tick", time.Second, "Schedule sampling interval")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.manualEvery, "manual-every", 5*time.Second, "Minimum spacing of manual buzz requests (0 to disable)")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&o.describe, "describe", "", "Print the pattern for HH:MM and exit")

	flag.Parse()

	log := newLogger(os.Stderr, o.logLevel)
	if err := run(o, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// newLogger returns a console logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

func run(o options, log zerolog.Logger) error {
	store, err := config.NewStore(o.configPath, log.With().Str("component", "config").Logger())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Describe mode
	if o.describe != "" {
		return describe(os.Stdout, o.describe, store.Get())
	}

	// Initialize GPIO
	output, err := gpio.NewRealOutput(o.pinMotor, o.pinBuzzer)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer output.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker, log.With().Str("component", "mqtt").Logger())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:       o.tick.Milliseconds(),
		HeartbeatMs:  o.heartbeat.Milliseconds(),
		Broker:       o.broker,
		HTTPAddr:     o.httpAddr,
		SettingsPath: o.configPath,
		PinMotor:     o.pinMotor,
		PinBuzzer:    o.pinBuzzer,
	})
	tracker.SetSettings(store.Get())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	b := buzzer.New(buzzer.Options{
		Executor:    sequencer.New(),
		Output:      output,
		Publisher:   publisher,
		Tracker:     tracker,
		Settings:    store.Get,
		Log:         log.With().Str("component", "buzzer").Logger(),
		ManualRate:  manualLimit(o.manualEvery),
		ManualBurst: 1,
	})
	publisher.OnCommand(b.HandleCommand)

	// Reload settings from disk as they change
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.OnChange(func(s config.Settings) {
		tracker.SetSettings(s)
		publishSystem(publisher, tracker, log, "RELOAD", "")
	})
	go func() {
		if err := store.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	// Publish startup event with full status snapshot
	publishSystem(publisher, tracker, log, "STARTUP", "")

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, b)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", o.httpAddr).Msg("http status server listening")
	}

	watchdog := false
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		if interval < 2*o.tick {
			log.Warn().Dur("watchdog", interval).Dur("tick", o.tick).Msg("systemd watchdog shorter than two ticks")
		}
		watchdog = true
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug().Err(err).Msg("sd_notify ready failed")
	}

	log.Info().
		Str("broker", o.broker).
		Dur("tick", o.tick).
		Dur("heartbeat", o.heartbeat).
		Str("config", o.configPath).
		Msg("started")

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		buzzer:     b,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		heartbeat:  o.heartbeat,
		now:        time.Now,
		notify:     sdNotify(log, watchdog),
		log:        log,
	}, ticker.C, sigCh)
}

// loop holds what runLoop needs on every tick.
type loop struct {
	buzzer     *buzzer.Buzzer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	notify     func(state string) // nil disables sd_notify
	log        zerolog.Logger
}

func runLoop(l loop, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			l.log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if l.notify != nil {
				l.notify(daemon.SdNotifyStopping)
			}

			// Let a pattern in flight finish so the motor is never left on.
			l.buzzer.Wait()

			if l.mqttStatus != nil {
				l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
			}
			publishSystem(l.publisher, l.tracker, l.log, "SHUTDOWN", signalName)
			return nil

		case <-tick:
			t := l.now()
			if l.mqttStatus != nil {
				l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
			}
			l.buzzer.Tick(t)

			if l.notify != nil {
				l.notify(daemon.SdNotifyWatchdog)
			}

			// Check for heartbeat
			if hb := l.buzzer.CheckHeartbeat(t, l.heartbeat); hb != nil {
				l.log.Info().
					Dur("uptime", hb.Uptime).
					Int("scheduled", hb.Counts.Scheduled).
					Int("manual", hb.Counts.Manual).
					Int("dropped", hb.Counts.Dropped).
					Msg("heartbeat")

				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				publishSystem(l.publisher, l.tracker, l.log, "HEARTBEAT", "")
			}
		}
	}
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
// STARTUP and SHUTDOWN are retained.
func publishSystem(p mqtt.Publisher, tracker *status.Tracker, log zerolog.Logger, event, reason string) {
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event == "STARTUP" || event == "SHUTDOWN",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := p.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	log.Debug().Str("event", event).Msg("published system event")
}

// sdNotify returns a notifier for the service manager. Watchdog pings are
// only sent when the unit has a watchdog configured.
func sdNotify(log zerolog.Logger, watchdog bool) func(string) {
	return func(state string) {
		if state == daemon.SdNotifyWatchdog && !watchdog {
			return
		}
		if _, err := daemon.SdNotify(false, state); err != nil {
			log.Debug().Err(err).Str("state", state).Msg("sd_notify failed")
		}
	}
}

func manualLimit(every time.Duration) rate.Limit {
	if every <= 0 {
		return 0
	}
	return rate.Every(every)
}

// describe prints the pattern for hhmm under s.
func describe(w io.Writer, hhmm string, s config.Settings) error {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return fmt.Errorf("describe: want HH:MM, got %q", hhmm)
	}
	p := logic.BuildPattern(t.Hour(), t.Minute(), s.Clock, s.Timing)
	desc := logic.DescribePattern(t.Hour(), t.Minute(), s.Clock)
	if desc == "" {
		desc = "(hours and minutes both disabled)"
	}
	fmt.Fprintf(w, "%02d:%02d  %s\n", t.Hour(), t.Minute(), desc)
	fmt.Fprintf(w, "pulses=%d gaps=%d duration=%v\n", p.PulseCount(), p.GapCount(), p.TotalDuration())
	for _, ev := range p {
		fmt.Fprintf(w, "  %s\n", ev)
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
