// Command lampd keeps a GPIO-driven lamp in sync with a remote MQTT feed
// while honouring a local wall switch.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/lampd/internal/config"
	"github.com/sweeney/lampd/internal/discovery"
	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/mqtt"
	"github.com/sweeney/lampd/internal/session"
	"github.com/sweeney/lampd/internal/status"
	"github.com/sweeney/lampd/internal/web"
)

func main() {
	if err := newRootCommand(&options{}).Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// options holds the command-line flags. Flags that were not given leave the
// config file value alone.
type options struct {
	configPath string
	broker     string
	httpAddr   string
	debounce   time.Duration
	heartbeat  time.Duration
	cooldown   time.Duration
	poll       time.Duration
	lampPin    int
	switchPin  int
	initialOn  bool
	noMDNS     bool
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lampd",
		Short:         "Lamp controller synchronised with an MQTT feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults apply when empty)")

	d := config.Default()
	rf := cmd.Flags()
	rf.StringVar(&opts.broker, "broker", d.MQTT.Broker, "MQTT broker address")
	rf.StringVar(&opts.httpAddr, "http", d.HTTP.Addr, "HTTP status address (empty to disable)")
	rf.DurationVar(&opts.debounce, "debounce", time.Duration(d.Timing.Debounce), "Switch debounce window")
	rf.DurationVar(&opts.heartbeat, "heartbeat", time.Duration(d.Timing.Heartbeat), "Heartbeat publish interval (0 to disable)")
	rf.DurationVar(&opts.cooldown, "throttle-cooldown", time.Duration(d.Timing.ThrottleCooldown), "Publish backoff after a rate-limit notice")
	rf.DurationVar(&opts.poll, "poll", time.Duration(d.Timing.Poll), "Control loop interval")
	rf.IntVar(&opts.lampPin, "lamp-pin", d.GPIO.LampPin, "BCM pin number for the lamp output")
	rf.IntVar(&opts.switchPin, "switch-pin", d.GPIO.SwitchPin, "BCM pin number for the switch input")
	rf.BoolVar(&opts.initialOn, "initial-on", d.Device.InitialState, "Lamp state at boot")
	rf.BoolVar(&opts.noMDNS, "no-mdns", false, "Do not advertise the status page over mDNS")

	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

func newConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			out, err := cfg.Encode()
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// loadConfig reads the config file and applies any flags set explicitly.
func loadConfig(flags *pflag.FlagSet, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(flags, opts, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) {
	set := flags.Changed
	if set("broker") {
		cfg.MQTT.Broker = opts.broker
	}
	if set("http") {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if set("debounce") {
		cfg.Timing.Debounce = config.Duration(opts.debounce)
	}
	if set("heartbeat") {
		cfg.Timing.Heartbeat = config.Duration(opts.heartbeat)
	}
	if set("throttle-cooldown") {
		cfg.Timing.ThrottleCooldown = config.Duration(opts.cooldown)
	}
	if set("poll") {
		cfg.Timing.Poll = config.Duration(opts.poll)
	}
	if set("lamp-pin") {
		cfg.GPIO.LampPin = opts.lampPin
	}
	if set("switch-pin") {
		cfg.GPIO.SwitchPin = opts.switchPin
	}
	if set("initial-on") {
		cfg.Device.InitialState = opts.initialOn
	}
	if opts.noMDNS {
		cfg.Device.MDNS = false
	}
}

func run(cfg config.Config) error {
	start := time.Now()
	clock := logic.NewClock(start)
	timings := cfg.Timings()
	topics := cfg.Topics()

	rec := logic.NewReconciler(timings, cfg.Device.InitialState, clock())
	toggles := logic.NewToggleQueue()
	onEdge := logic.EdgeHandler(clock, logic.NewDebouncer(timings.Debounce), toggles)

	// Initialize GPIO
	lines, err := gpio.Open(cfg.Pins(), cfg.Device.InitialState, onEdge)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, statusConfig(cfg))
	if high, err := lines.SwitchLevel(); err != nil {
		log.Printf("gpio: %v", err)
	} else {
		log.Printf("gpio: switch reads %s at boot", levelString(high))
		tracker.SetSwitchLevel(high)
	}
	if net := status.NetworkFromEnv(os.Getenv); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT
	inbox := mqtt.NewInbox(cfg.Limits.InboxSize)
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       mqtt.ClientID(cfg.MQTT.ClientIDPrefix),
		Topics:         topics,
		QoS:            cfg.MQTT.QoS,
		ConnectTimeout: time.Duration(cfg.Timing.ConnectTimeout),
		PublishTimeout: time.Duration(cfg.Timing.PublishTimeout),
	}, inbox)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()
	tracker.SetMQTTConnected(client.IsConnected())

	publishStartup(client, tracker)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)

		if cfg.Device.MDNS {
			adv := discovery.NewAdvertiser()
			if err := adv.Advertise(discovery.Info{
				Hostname: cfg.Device.Hostname,
				HTTPAddr: cfg.HTTP.Addr,
				Broker:   cfg.MQTT.Broker,
			}); err != nil {
				log.Printf("mdns: %v", err)
			} else {
				log.Printf("mdns: advertising %s.%s", cfg.Device.Hostname, discovery.ServiceType)
				defer adv.Stop()
			}
		}
	}

	log.Printf("started: lamp=%s poll=%v debounce=%v heartbeat=%v throttle_cooldown=%v broker=%s command=%s state=%s",
		status.LampString(cfg.Device.InitialState), cfg.Timing.Poll, cfg.Timing.Debounce,
		cfg.Timing.Heartbeat, cfg.Timing.ThrottleCooldown, cfg.MQTT.Broker, topics.Command, topics.State)

	ticker := time.NewTicker(time.Duration(cfg.Timing.Poll))
	defer ticker.Stop()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		s := <-sigCh
		log.Printf("received %v, shutting down", s)
		cancel(session.Shutdown{Reason: signalName(s)})
	}()

	driver := session.New(session.Options{
		Reconciler:   rec,
		Toggles:      toggles,
		Inbox:        inbox,
		Client:       client,
		Lamp:         lines,
		Tracker:      tracker,
		Feeds:        topics.Feeds(),
		PayloadLimit: cfg.Limits.PayloadBytes,
		DrainLimit:   cfg.Limits.DrainPerTick,
		Clock:        clock,
		Now:          time.Now,
		Tick:         ticker.C,
	})
	return driver.Run(ctx)
}

// publishStartup sends the retained STARTUP event with a full status snapshot.
func publishStartup(client mqtt.Client, tracker *status.Tracker) {
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(event); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
}

func statusConfig(cfg config.Config) status.Config {
	topics := cfg.Topics()
	return status.Config{
		PollMs:       time.Duration(cfg.Timing.Poll).Milliseconds(),
		DebounceMs:   time.Duration(cfg.Timing.Debounce).Milliseconds(),
		HeartbeatMs:  time.Duration(cfg.Timing.Heartbeat).Milliseconds(),
		CooldownMs:   time.Duration(cfg.Timing.ThrottleCooldown).Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		Hostname:     cfg.Device.Hostname,
		CommandTopic: topics.Command,
		StateTopic:   topics.State,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
