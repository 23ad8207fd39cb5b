// Multisense is a multi-sensor MQTT node daemon.
//
// It reads a set of sensor inputs (temperature, humidity, illumination,
// motion, switch contacts), detects changes against the last published
// state, and republishes a small retained JSON status message to an
// MQTT broker under a dual-deadline schedule: changes go out no more
// often than the soft interval, and a heartbeat goes out at least every
// hard interval. Broker credentials are captured once with the
// provision subcommand and persist in the settings store.
//
// Usage:
//
//	multisense serve             Run the node
//	multisense provision [...]   Store broker settings
//	multisense init [dir]        Initialize a working directory
//	multisense version           Print version and build information
//	multisense -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"multisense/internal/buildinfo"
	"multisense/internal/config"
	"multisense/internal/connwatch"
	"multisense/internal/defaults"
	"multisense/internal/metrics"
	"multisense/internal/mqtt"
	"multisense/internal/node"
	"multisense/internal/sensors"
	"multisense/internal/settings"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the multisense command. All OS-level
// dependencies are injected as parameters. Arguments are parsed by
// hand rather than with the flag package: flag relies on package-level
// globals (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args) && command == "":
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case (args[i] == "-h" || args[i] == "-help" || args[i] == "--help") && command == "":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "provision":
		return runProvision(stdout, configPath, cmdArgs)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe wires the node together and runs it until interrupted.
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting multisense",
		"version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.Log.Level != "" {
		level, err := config.ParseLogLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// The settings store is the EEPROM analog: broker settings captured
	// at provisioning time and the node's persistent identity.
	store, err := settings.Open(filepath.Join(cfg.DataDir, "settings.db"))
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	if err := store.MergeBroker(&cfg.MQTT); err != nil {
		return fmt.Errorf("merge provisioned settings: %w", err)
	}

	instanceID, err := store.InstanceID()
	if err != nil {
		return err
	}
	if cfg.MQTT.DeviceID == "" {
		cfg.MQTT.DeviceID = instanceID
	}
	if cfg.MQTT.Broker == "" {
		return errors.New("no broker configured: set mqtt.broker or run `multisense provision`")
	}
	topic := cfg.MQTT.StatusTopic()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	nodeMetrics := metrics.New(reg)
	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	bank, props, err := buildBank(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if bank.Len() == 0 {
		return errors.New("no sensors enabled: nothing to publish")
	}

	device := mqtt.NewDeviceInfo(instanceID, cfg.MQTT.DeviceID)
	client := mqtt.New(mqtt.Config{
		Broker:          cfg.MQTT.Broker,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		DeviceID:        cfg.MQTT.DeviceID,
		StatusTopic:     topic,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
	}, device, props, logger)

	if err := client.Connect(ctx); err != nil {
		return err
	}

	// Reachability feeds the connectivity gauge. Reconnection itself is
	// the transport's job; the watcher only observes, on the firmware's
	// fixed five-second schedule.
	connwatch.Watch(ctx, connwatch.WatcherConfig{
		Name:    "broker",
		Probe:   func(pCtx context.Context) error { return client.AwaitConnection(pCtx) },
		Policy:  connwatch.BrokerPolicy(),
		OnReady: func() { nodeMetrics.BrokerConnected.Set(1) },
		OnDown:  func(error) { nodeMetrics.BrokerConnected.Set(0) },
		Logger:  logger,
	})

	n := node.New(node.Config{
		Bank:      bank,
		Scheduler: node.SchedulerFromConfig(cfg.Node),
		Publisher: client,
		Topic:     topic,
		Poll:      time.Duration(cfg.Node.PollIntervalMS) * time.Millisecond,
		Metrics:   nodeMetrics,
		Logger:    logger,
	})

	err = n.Run(ctx)

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if derr := client.Disconnect(shutCtx); derr != nil {
		logger.Warn("mqtt disconnect failed", "error", derr)
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("multisense stopped")
		return nil
	}
	return err
}

// buildBank assembles the enabled sensor sources and their discovery
// specs. Hardware bus drivers are not part of this build; enabled
// sensors run against the simulated drivers.
func buildBank(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sensors.Bank, []mqtt.PropertySpec, error) {
	s := cfg.Sensors
	anyEnabled := s.Temperature || s.Humidity || s.Lux || s.Motion
	if !s.Simulate && anyEnabled {
		return nil, nil, errors.New("hardware sensor drivers are not available in this build; set sensors.simulate: true")
	}

	seed := time.Now().UnixNano()
	bank := sensors.NewBank()
	var props []mqtt.PropertySpec

	if s.Temperature {
		bank.Add(sensors.NewSimFloat("temperature", 15, 30, 0.2, seed))
		props = append(props, mqtt.PropertySpec{
			Name: "temperature", UnitOfMeasurement: "°C",
			DeviceClass: "temperature", Icon: "mdi:thermometer",
		})
	}
	if s.Humidity {
		bank.Add(sensors.NewSimFloat("humidity", 20, 80, 0.5, seed+1))
		props = append(props, mqtt.PropertySpec{
			Name: "humidity", UnitOfMeasurement: "%",
			DeviceClass: "humidity", Icon: "mdi:water-percent",
		})
	}
	if s.Lux {
		bank.Add(sensors.NewSimLux("lux", seed+2))
		props = append(props, mqtt.PropertySpec{
			Name: "lux", Icon: "mdi:brightness-5",
		})
	}
	if s.Motion {
		latch := new(sensors.Latch)
		bank.Add(sensors.NewMotion("motion", latch, nil))
		go sensors.RunSimMotion(ctx, latch, 45*time.Second)
		props = append(props, mqtt.PropertySpec{
			Name: "motion", Binary: true, DeviceClass: "motion",
		})
	}
	for i, alias := range s.SwitchAliases {
		sw := sensors.NewSwitch(alias, sensors.NewSimContact(time.Duration(20+10*i)*time.Second))
		if sw == nil {
			continue // unnamed terminal, disabled
		}
		bank.Add(sw)
		props = append(props, mqtt.PropertySpec{
			Name: alias, Binary: true, Icon: "mdi:electric-switch",
		})
	}

	logger.Debug("sensor bank assembled", "properties", bank.Names())
	return bank, props, nil
}

// runProvision stores broker settings, playing the part of the captive
// portal on the hardware boards. Flags overlay whatever is already
// stored; -clear wipes the stored settings first.
func runProvision(stdout io.Writer, configPath string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	store, err := settings.Open(filepath.Join(cfg.DataDir, "settings.db"))
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	var m config.MQTTConfig
	wipe := false
	for i := 0; i < len(args); i++ {
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s needs a value", args[i])
			}
			i++
			return args[i], nil
		}
		var err error
		switch args[i] {
		case "-broker":
			m.Broker, err = next()
		case "-username":
			m.Username, err = next()
		case "-password":
			m.Password, err = next()
		case "-topic":
			m.Topic, err = next()
		case "-device-id":
			m.DeviceID, err = next()
		case "-clear":
			wipe = true
		default:
			return fmt.Errorf("unknown provision flag: %s", args[i])
		}
		if err != nil {
			return err
		}
	}

	if !wipe {
		// Overlay onto the existing provision so a partial command
		// (say, a password change) keeps the rest.
		existing := config.MQTTConfig{}
		if err := store.MergeBroker(&existing); err != nil {
			return err
		}
		if m.Broker == "" {
			m.Broker = existing.Broker
		}
		if m.Username == "" {
			m.Username = existing.Username
		}
		if m.Password == "" {
			m.Password = existing.Password
		}
		if m.Topic == "" {
			m.Topic = existing.Topic
		}
		if m.DeviceID == "" {
			m.DeviceID = existing.DeviceID
		}
	}

	if err := store.SaveBroker(m); err != nil {
		return err
	}

	if m.Broker == "" {
		fmt.Fprintln(stdout, "provisioned settings cleared")
		return nil
	}
	fmt.Fprintf(stdout, "provisioned broker %s\n", m.Broker)
	return nil
}

// runInit initializes a multisense working directory. Existing files
// are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing multisense workspace in %s\n", dir)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "multisense.yaml")
	if err := writeIfMissing(configPath, defaults.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit multisense.yaml, then run `multisense provision` to store broker credentials.")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, 0o644)
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "multisense - multi-sensor MQTT node")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: multisense [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve           Run the node")
	fmt.Fprintln(w, "  provision       Store broker settings (-broker, -username, -password,")
	fmt.Fprintln(w, "                  -topic, -device-id, -clear)")
	fmt.Fprintln(w, "  init [dir]      Initialize a working directory (default: .)")
	fmt.Fprintln(w, "  version         Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output goes through slog; this helper standardizes
// the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. With no
// explicit path and no file in the search locations, the built-in
// defaults apply: an unconfigured device still starts (and then reports
// that it has no broker), matching the boards' tolerance for running on
// placeholder settings.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
