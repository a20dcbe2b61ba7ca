// Command amperage-follower switches a follower relay on and off with the
// current drawn by a monitored load, pulses an event relay whenever the load
// stops, and publishes transitions and measurements to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/amperage-follower/internal/adc"
	"github.com/sweeney/amperage-follower/internal/clock"
	"github.com/sweeney/amperage-follower/internal/config"
	"github.com/sweeney/amperage-follower/internal/current"
	"github.com/sweeney/amperage-follower/internal/discovery"
	"github.com/sweeney/amperage-follower/internal/gpio"
	"github.com/sweeney/amperage-follower/internal/logic"
	"github.com/sweeney/amperage-follower/internal/mqtt"
	"github.com/sweeney/amperage-follower/internal/status"
	"github.com/sweeney/amperage-follower/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/amperage-follower.yaml", "YAML config file (missing file uses defaults)")
	poll := flag.Duration("poll", 0, "Scheduler tick interval (overrides config)")
	check := flag.Duration("check-interval", 0, "Measurement interval (overrides config)")
	trigger := flag.Int("trigger", -1, "Trigger threshold in mA (overrides config)")
	port := flag.String("port", "", "Serial port of the ADC bridge (overrides config)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	heartbeat := flag.Duration("heartbeat", -1, "Heartbeat interval, 0 to disable (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address, "off" to disable (overrides config)`)
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	measureOnce := flag.Bool("measure-once", false, "Take one measurement, print it and exit")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	hashPassword := flag.String("hash-password", "", "Print a bcrypt hash for http.password_hash and exit")

	flag.Parse()

	if *hashPassword != "" {
		hash, err := web.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(cfg, flagOverrides{
		poll:      *poll,
		check:     *check,
		trigger:   *trigger,
		port:      *port,
		broker:    *broker,
		heartbeat: *heartbeat,
		httpAddr:  *httpAddr,
		logLevel:  *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid configuration: %v", err)
	}
	if err := setupLogging(cfg.Log.Level); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	switch {
	case *listPorts:
		err = printPorts()
	case *measureOnce:
		err = measureOnceAndPrint(cfg)
	default:
		err = run(cfg)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// flagOverrides holds command-line values; zero or negative values mean
// "keep the config file value".
type flagOverrides struct {
	poll, check time.Duration
	trigger     int
	port        string
	broker      string
	heartbeat   time.Duration
	httpAddr    string
	logLevel    string
}

func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.poll > 0 {
		cfg.Control.PollInterval = f.poll
	}
	if f.check > 0 {
		cfg.Control.CheckInterval = f.check
	}
	if f.trigger >= 0 {
		cfg.Control.TriggerMilliamps = uint32(f.trigger)
	}
	if f.port != "" {
		cfg.Sensor.Port = f.port
	}
	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	if f.heartbeat >= 0 {
		cfg.MQTT.Heartbeat = f.heartbeat
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func printPorts() error {
	ports, err := adc.Ports()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func measureOnceAndPrint(cfg *config.Config) error {
	reader, err := adc.NewSerialReader(cfg.Sensor.Port, cfg.Sensor.BaudRate)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer reader.Close()

	m := current.NewEstimator(cfg.Estimator(), reader, clock.NewMonotonic()).Measure()
	fmt.Printf("current: %d mA (min=%d max=%d samples=%d errors=%d)\n", m.Milliamps, m.Min, m.Max, m.Samples, m.Errors)
	return nil
}

func run(cfg *config.Config) error {
	clk := clock.NewMonotonic()

	reader, err := adc.NewSerialReader(cfg.Sensor.Port, cfg.Sensor.BaudRate)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer reader.Close()

	// Close drives every output inactive.
	writer, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer writer.Close()

	broker, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	// The scheduler only queues; broker round trips happen off the tick.
	publisher := mqtt.NewAsyncPublisher(broker, mqtt.DefaultQueueSize)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(broker.IsConnected())

	publishLifecycle(publisher, tracker, "STARTUP", "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		srv.RequireAuth(cfg.HTTP.Username, cfg.HTTP.PasswordHash)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")

		if cfg.MDNSEnabled() {
			adv := discovery.NewAdvertiser()
			info := discovery.Info{Instance: cfg.MQTT.ClientID, Addr: cfg.HTTP.Addr, BootID: tracker.Snapshot().BootID}
			if err := adv.Start(info); err != nil {
				log.WithError(err).Warn("mdns advertisement failed")
			} else {
				defer adv.Stop()
			}
		}
	}

	log.WithFields(log.Fields{
		"poll":      cfg.Control.PollInterval,
		"check":     cfg.Control.CheckInterval,
		"trigger":   cfg.Control.TriggerMilliamps,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.MQTT.Heartbeat,
	}).Info("started")

	ticker := time.NewTicker(cfg.Control.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		ctl:        logic.NewController(cfg.Controller(), clk.Now()),
		meter:      current.NewEstimator(cfg.Estimator(), reader, clk),
		writer:     writer,
		publisher:  publisher,
		mqttStatus: broker,
		tracker:    tracker,
		clk:        clk,
		wall:       time.Now,
		heartbeat:  cfg.MQTT.Heartbeat,
	}
	return l.run(ticker.C, sigCh)
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:               cfg.Control.PollInterval.Milliseconds(),
		CheckIntervalMs:      cfg.Control.CheckInterval.Milliseconds(),
		FollowerShutoffLagMs: cfg.Control.FollowerShutoffLag.Milliseconds(),
		EventShutoffLagMs:    cfg.Control.EventShutoffLag.Milliseconds(),
		SampleDurationMs:     cfg.Sensor.SampleDuration.Milliseconds(),
		TriggerMilliamps:     cfg.Control.TriggerMilliamps,
		HeartbeatMs:          cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:               cfg.MQTT.Broker,
		HTTPAddr:             cfg.HTTP.Addr,
	}
}

// meter takes one current measurement. Satisfied by *current.Estimator.
type meter interface {
	Measure() current.Measurement
}

// loop is the scheduler: it owns the controller and drives outputs,
// telemetry and the status tracker from it.
type loop struct {
	ctl        *logic.Controller
	meter      meter
	writer     gpio.Writer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	clk        clock.Clock
	wall       func() time.Time
	heartbeat  time.Duration

	lastOut  logic.Outputs
	written  bool
	outFault bool
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil
		case <-tick:
			l.step()
		}
	}
}

// step runs one scheduler tick.
func (l *loop) step() {
	now := l.clk.Now()

	// Deadlines are checked every tick; they can expire between measurements.
	events := l.ctl.Tick(now)

	if l.ctl.CheckDue(now) {
		m := l.meter.Measure()
		if m.Errors > 0 {
			log.WithFields(log.Fields{"errors": m.Errors, "samples": m.Samples}).Warn("adc errors during measurement")
		}
		log.WithFields(log.Fields{"milliamps": m.Milliamps, "min": m.Min, "max": m.Max, "samples": m.Samples}).Debug("measurement")

		events = append(events, l.ctl.Measure(m.Milliamps, now)...)

		at := l.wall()
		if err := l.publisher.PublishMeasurement(mqtt.MeasurementEvent{
			Timestamp: at,
			Milliamps: m.Milliamps,
			Min:       m.Min,
			Max:       m.Max,
			Samples:   m.Samples,
		}); err != nil {
			log.WithError(err).Warn("measurement publish error")
		}
		if l.tracker != nil {
			l.tracker.SetMeasurement(status.Measurement{
				Milliamps: m.Milliamps,
				Min:       m.Min,
				Max:       m.Max,
				Samples:   m.Samples,
				At:        at,
			})
		}
	}

	l.writeOutputs(l.ctl.Outputs(now))

	follower, eventRelay := l.ctl.CurrentState()
	for _, ev := range events {
		log.WithFields(log.Fields{
			"event":     ev.Type,
			"milliamps": ev.Milliamps,
			"follower":  follower,
			"event_rly": eventRelay,
		}).Info("transition")
		if err := l.publisher.Publish(mqtt.RelayEvent{
			Timestamp: l.wall(),
			Event:     ev,
			Follower:  follower,
			EventRly:  eventRelay,
		}); err != nil {
			// Don't crash on publish failure
			log.WithError(err).Warn("publish error")
		}
	}

	if hb := l.ctl.CheckHeartbeat(now, l.heartbeat); hb != nil {
		c := hb.Counts
		log.WithFields(log.Fields{
			"uptime":                 hb.Uptime,
			"follower_energized":     c.FollowerEnergized,
			"follower_shutting_down": c.FollowerShuttingDown,
			"follower_deenergized":   c.FollowerDeenergized,
			"event_energized":        c.EventEnergized,
			"event_deenergized":      c.EventDeenergized,
			"last_milliamps":         hb.LastMilliamps,
		}).Info("heartbeat")

		if l.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			l.updateTracker(now)
		}
		publishLifecycle(l.publisher, l.tracker, "HEARTBEAT", "")
	}

	if l.tracker != nil {
		l.updateTracker(now)
	}
}

// writeOutputs drives the pins when the levels change. A failed write is
// retried on the next tick.
func (l *loop) writeOutputs(out logic.Outputs) {
	if l.written && out == l.lastOut {
		return
	}
	if err := l.writer.Write(out); err != nil {
		if !l.outFault {
			log.WithError(err).Error("gpio write error")
		}
		l.outFault = true
		l.written = false
		return
	}
	if l.outFault {
		log.Info("gpio write recovered")
	}
	l.outFault = false
	l.lastOut = out
	l.written = true
}

func (l *loop) updateTracker(now logic.Timestamp) {
	follower, eventRelay := l.ctl.CurrentState()
	l.tracker.Update(follower, eventRelay, l.ctl.Outputs(now), l.ctl.EventCountsSnapshot())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) shutdown(s os.Signal) {
	log.WithField("signal", s).Info("shutting down")

	// Relays open before anything else.
	if err := l.writer.Write(logic.Outputs{}); err != nil {
		log.WithError(err).Error("gpio write error during shutdown")
	}
	if l.tracker != nil {
		follower, eventRelay := l.ctl.CurrentState()
		l.tracker.Update(follower, eventRelay, logic.Outputs{}, l.ctl.EventCountsSnapshot())
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}
	publishLifecycle(l.publisher, l.tracker, "SHUTDOWN", signalName(s))
}

// publishLifecycle publishes a system event carrying a full status snapshot
// when a tracker is available. Only HEARTBEAT is published unretained.
func publishLifecycle(pub mqtt.Publisher, tracker *status.Tracker, event, reason string) {
	ev := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if tracker != nil {
		snap := tracker.Snapshot()
		ev.Timestamp = snap.Now
		ev.RawPayload = status.FormatStatusEvent(snap, event, reason)
	}
	if err := pub.PublishSystem(ev); err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to publish system event")
		return
	}
	log.WithField("event", event).Debug("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
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
