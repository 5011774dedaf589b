package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/takama/daemon"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/edss/rocket-sensors/capture"
	"github.com/edss/rocket-sensors/components/sensor"
	// registers all components.
	_ "github.com/edss/rocket-sensors/components/register"
	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/robot"
	robotimpl "github.com/edss/rocket-sensors/robot/impl"
	"github.com/edss/rocket-sensors/web"
)

const (
	appName        = "rocket-sensors"
	appDescription = "Serves load cell, IMU and barometer readings over HTTP and MQTT"

	flagConfig  = "config"
	flagDebug   = "debug"
	flagLogFile = "log-file"
	flagSensor  = "sensor"
)

var configFlag = &cli.StringFlag{
	Name:     flagConfig,
	Aliases:  []string{"c"},
	Usage:    "load configuration from `FILE`",
	Required: true,
}

var sensorFlag = &cli.StringFlag{
	Name:     flagSensor,
	Aliases:  []string{"s"},
	Usage:    "`NAME` of the sensor",
	Required: true,
}

type app struct {
	out       io.Writer
	logger    logging.Logger
	logCloser io.Closer
}

func newApp(out io.Writer) *cli.App {
	a := &app{out: out}
	return &cli.App{
		Name:      appName,
		Usage:     appDescription,
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "build the configured sensors and serve them until interrupted",
				Flags:  []cli.Flag{configFlag},
				Action: a.runAction,
			},
			{
				Name:   "read",
				Usage:  "print one reading of a sensor",
				Flags:  []cli.Flag{configFlag, sensorFlag},
				Action: a.readAction,
			},
			{
				Name:   "tare",
				Usage:  "tare a sensor and print the stored offsets",
				Flags:  []cli.Flag{configFlag, sensorFlag},
				Action: a.tareAction,
			},
			{
				Name:   "validate",
				Usage:  "check a config without touching hardware",
				Flags:  []cli.Flag{configFlag},
				Action: a.validateAction,
			},
			{
				Name:   "models",
				Usage:  "list the registered component models",
				Action: a.modelsAction,
			},
			{
				Name:  "service",
				Usage: "manage the system service",
				Subcommands: []*cli.Command{
					{
						Name:   "install",
						Usage:  "install a service running `run --config FILE`",
						Flags:  []cli.Flag{configFlag},
						Action: a.serviceAction,
					},
					{Name: "remove", Usage: "remove the service", Action: a.serviceAction},
					{Name: "start", Usage: "start the service", Action: a.serviceAction},
					{Name: "stop", Usage: "stop the service", Action: a.serviceAction},
					{Name: "status", Usage: "print the service status", Action: a.serviceAction},
				},
			},
		},
	}
}

func (a *app) before(c *cli.Context) error {
	if c.Bool(flagDebug) {
		a.logger = logging.NewDebugLogger(appName)
	} else {
		a.logger = logging.NewLogger(appName)
	}
	if path := c.String(flagLogFile); path != "" {
		appender, closer := logging.NewFileAppender(logging.FileAppenderConfig{Filename: path})
		a.logger.AddAppender(appender)
		a.logCloser = closer
	}
	logging.ReplaceGlobal(a.logger)
	return nil
}

func (a *app) after(c *cli.Context) error {
	if a.logger == nil {
		return nil
	}
	// syncing stdout fails on some terminals
	utils.UncheckedError(a.logger.Sync())
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withSensor builds the config, hands the named sensor to fn and closes everything again.
func (a *app) withSensor(c *cli.Context, fn func(ctx context.Context, s sensor.Sensor) error) (err error) {
	ctx := c.Context
	r, err := robotimpl.RobotFromConfigPath(ctx, c.String(flagConfig), a.logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(ctx))
	}()
	s, err := robot.SensorByName(r, c.String(flagSensor))
	if err != nil {
		return err
	}
	return fn(ctx, s)
}

func (a *app) readAction(c *cli.Context) error {
	return a.withSensor(c, func(ctx context.Context, s sensor.Sensor) error {
		readings, err := s.Readings(ctx, nil)
		if err != nil {
			return err
		}
		return a.printJSON(readings)
	})
}

func (a *app) tareAction(c *cli.Context) error {
	return a.withSensor(c, func(ctx context.Context, s sensor.Sensor) error {
		out, err := s.DoCommand(ctx, map[string]interface{}{sensor.TareCommandName: true})
		if err != nil {
			return err
		}
		return a.printJSON(out[sensor.TareCommandName])
	})
}

func (a *app) validateAction(c *cli.Context) error {
	cfg, err := config.Read(c.String(flagConfig), a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d components OK\n", cfg.ConfigFilePath, len(cfg.Components))
	return nil
}

func (a *app) modelsAction(c *cli.Context) error {
	var lines []string
	for apiModel := range resource.RegisteredResources() {
		lines = append(lines, apiModel.API.String()+" "+apiModel.Model.String())
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *app) runAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runServer(ctx, c.String(flagConfig), a.logger)
}

// runServer builds the config, polls and serves it, and applies changes to the config file until
// ctx is done.
func runServer(ctx context.Context, configPath string, logger logging.Logger) (err error) {
	cfg, err := config.Read(configPath, logger)
	if err != nil {
		return err
	}
	r, err := robotimpl.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.Background()))
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var sinks []capture.Sink
	if cfg.MQTT != nil {
		sink, err := capture.NewMQTTSink(cfg.MQTT, logger.Sublogger("mqtt"))
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	poller := capture.NewPoller(r, capture.Params{
		Interval: cfg.Capture.IntervalDuration(),
		Timeout:  cfg.Capture.TimeoutDuration(),
		Sensors:  cfg.Capture.Sensors,
		Metrics:  capture.NewMetrics(reg),
		Logger:   logger.Sublogger("capture"),
	}, sinks...)
	poller.Start(ctx)
	defer func() {
		err = multierr.Combine(err, poller.Close())
	}()

	watcher, err := config.NewWatcher(ctx, configPath, logger.Sublogger("config"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, watcher.Close())
	}()
	utils.PanicCapturingGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg := <-watcher.Config():
				logger.Info("config changed, reconfiguring")
				if err := r.Reconfigure(ctx, newCfg); err != nil {
					logger.Errorw("error reconfiguring", "error", err)
				}
			}
		}
	})

	return web.RunWeb(ctx, r, web.Options{
		BindAddress: cfg.Network.BindAddress,
		CORSOrigins: cfg.Network.CORSOrigins,
		Poller:      poller,
		Gatherer:    reg,
	}, logger.Sublogger("web"))
}

func (a *app) serviceAction(c *cli.Context) error {
	srv, err := daemon.New(appName, appDescription, daemon.SystemDaemon)
	if err != nil {
		return err
	}

	var status string
	switch c.Command.Name {
	case "install":
		configPath, err := filepath.Abs(c.String(flagConfig))
		if err != nil {
			return err
		}
		status, err = srv.Install("run", "--"+flagConfig, configPath)
		if err != nil {
			return errors.Wrap(err, status)
		}
	case "remove":
		status, err = srv.Remove()
	case "start":
		status, err = srv.Start()
	case "stop":
		status, err = srv.Stop()
	case "status":
		status, err = srv.Status()
	default:
		return errors.Errorf("unknown service command %q", c.Command.Name)
	}
	if err != nil {
		return errors.Wrap(err, status)
	}
	fmt.Fprintln(a.out, status)
	return nil
}
