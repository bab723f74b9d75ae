// MQTT Echo Service
//
// Sample service built on the mqttservice skeleton. It answers echo and
// version requests over MQTT and reloads its configuration on SIGHUP.
//
// Usage:
//
//	echoservice [--foreground] [--config /etc/echoservice.conf] [--loglevel info]
//
// Without --foreground the process re-executes itself in a new session,
// writes its PID file and drops privileges if --uid/--gid are given.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/mqttservice/internal/api"
	"github.com/nerrad567/mqttservice/internal/daemon"
	"github.com/nerrad567/mqttservice/internal/echo"
	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
	"github.com/nerrad567/mqttservice/internal/infrastructure/logging"
	"github.com/nerrad567/mqttservice/internal/metrics"
	"github.com/nerrad567/mqttservice/internal/service"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// appName is the human readable service name.
	appName = "MQTTEchoService"

	// fileName derives default paths, the metrics namespace and the
	// credential environment prefix (ECHOSERVICE_MQTT_USER).
	fileName = "echoservice"
)

// options holds the parsed command line.
type options struct {
	foreground      bool
	uid             string
	gid             string
	chroot          string
	pidFile         string
	logLevel        string
	logFile         string
	configPath      string
	adminAddr       string
	shutdownTimeout time.Duration
	showVersion     bool
}

// parseFlags parses args (without the program name).
func parseFlags(args []string) (options, error) {
	var o options

	fs := pflag.NewFlagSet(fileName, pflag.ContinueOnError)
	fs.BoolVarP(&o.foreground, "foreground", "f", false, "stay in the foreground and log to stderr as well")
	fs.StringVar(&o.uid, "uid", "", "user name or id to run as")
	fs.StringVar(&o.gid, "gid", "", "group name or id to run as")
	fs.StringVar(&o.chroot, "chroot", "", "directory to chroot into after startup")
	fs.StringVar(&o.pidFile, "pidfile", "/var/run/"+fileName+".pid", "PID file path")
	fs.StringVar(&o.logLevel, "loglevel", "error", "log level (debug, info, warning, error, critical)")
	fs.StringVar(&o.logFile, "logfile", "/var/log/"+fileName+".log", "log file path")
	fs.StringVar(&o.configPath, "config", "/etc/"+fileName+".conf", "configuration file (JSON or YAML)")
	fs.StringVar(&o.adminAddr, "admin-addr", "", "admin HTTP address for /metrics, /healthz and /api/v1 (disabled if empty)")
	fs.DurationVar(&o.shutdownTimeout, "shutdown-timeout", service.DefaultShutdownTimeout, "maximum wait for the broker to acknowledge disconnect")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if !logging.ValidLevel(o.logLevel) {
		return options{}, fmt.Errorf("invalid --loglevel %q", o.logLevel)
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("%s %s (commit %s, built %s)\n", appName, version, commit, date)
		return
	}

	if !opts.foreground {
		parent, detachErr := daemon.Detach()
		if detachErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", detachErr)
			os.Exit(1)
		}
		if parent {
			return
		}
	}

	// Cancelled on Ctrl+C or SIGTERM; SIGHUP is handled separately as reload.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	log, err := logging.New(config.LoggingConfig{
		Level:   opts.logLevel,
		Format:  "json",
		Output:  opts.logFile,
		Console: opts.foreground,
	}, fileName, version)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer log.Close() //nolint:errcheck // Nothing left to report to

	log.Info("starting "+appName,
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	pidFile, err := daemon.WritePIDFile(opts.pidFile)
	if err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if removeErr := pidFile.Remove(); removeErr != nil {
			log.Warn("could not remove PID file", "path", pidFile.Path(), "error", removeErr)
		}
	}()

	creds, err := credentials(opts)
	if err != nil {
		return err
	}
	if err := daemon.Drop(creds); err != nil {
		return err
	}

	m := metrics.New(fileName)
	echoSvc := echo.New(appName, version, log.With("component", "echo"))

	svc := service.New(service.Options{
		Name:            fileName,
		ConfigPath:      opts.configPath,
		Hooks:           echoSvc,
		Logger:          log,
		Metrics:         m,
		ShutdownTimeout: opts.shutdownTimeout,
	})
	if err := echoSvc.Attach(svc); err != nil {
		return fmt.Errorf("attaching echo handlers: %w", err)
	}

	stopHUP := forwardReloads(ctx, svc)
	defer stopHUP()

	if opts.adminAddr != "" {
		admin, err := api.New(api.Deps{
			Addr:    opts.adminAddr,
			Logger:  log.With("component", "api"),
			Service: svc,
			Metrics: m,
			Journal: journalSource{echoSvc},
			Checks:  []api.HealthChecker{echoSvc},
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating admin server: %w", err)
		}
		if err := admin.Start(ctx); err != nil {
			return fmt.Errorf("starting admin server: %w", err)
		}
		defer func() {
			if closeErr := admin.Close(); closeErr != nil {
				log.Error("error closing admin server", "error", closeErr)
			}
		}()
	}

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	log.Info(appName + " stopped")
	return nil
}

// credentials resolves --uid, --gid and --chroot.
func credentials(opts options) (daemon.Credentials, error) {
	creds := daemon.NoChange()
	creds.Chroot = opts.chroot

	uid, err := daemon.ResolveUser(opts.uid)
	if err != nil {
		return creds, err
	}
	gid, err := daemon.ResolveGroup(opts.gid)
	if err != nil {
		return creds, err
	}
	creds.UID, creds.GID = uid, gid
	return creds, nil
}

// forwardReloads turns SIGHUP into reload requests until ctx is done.
// The returned function stops signal delivery.
func forwardReloads(ctx context.Context, svc *service.Service) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-hup:
				svc.Reload()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { signal.Stop(hup) }
}
