// Command dmrgateway routes DMR traffic between an MMDVM repeater and up
// to two DMR masters and two XLX reflectors, rewriting talk-groups,
// private calls and source IDs in transit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dl9xyz/dmrgateway/pkg/config"
	"github.com/dl9xyz/dmrgateway/pkg/database"
	"github.com/dl9xyz/dmrgateway/pkg/dispatch"
	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/metrics"
	"github.com/dl9xyz/dmrgateway/pkg/mqtt"
	"github.com/dl9xyz/dmrgateway/pkg/peer"
	"github.com/dl9xyz/dmrgateway/pkg/web"
)

const version = "1.0.0"

const (
	header1 = "This software is for use on amateur radio networks only, it"
	header2 = "is to be used for educational purposes only. Its use on"
	header3 = "commercial networks is strictly prohibited."
	header4 = "Copyright (C) 2025 by the dmrgateway authors"
)

func main() {
	configPath, exitCode := parseArgs(os.Args[1:])
	if exitCode >= 0 {
		os.Exit(exitCode)
	}

	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dmrgateway: %v\n", err)
		os.Exit(1)
	}

	rootLog, err := newRootLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dmrgateway: %v\n", err)
		os.Exit(1)
	}

	if cfg.Daemonize {
		rootLog.Warn("daemonize is set but not implemented; run under your platform's service manager instead")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP)

	for {
		runLog := rootLog.WithComponent("run:" + uuid.NewString()[:8])
		restart, code := runOnce(cfg, runLog, sigs)
		if !restart {
			os.Exit(code)
		}
		runLog.Info("caught SIGHUP, restarting")
	}
}

// parseArgs mirrors the original's argv handling: -v/--version prints the
// version and exits 0, any other leading "-" is a usage error (exit 1),
// and the remaining positional argument (if any) is the config path.
// A non-negative exitCode means the caller should exit immediately;
// -1 means continue with configPath.
func parseArgs(args []string) (configPath string, exitCode int) {
	for _, a := range args {
		if a == "-v" || a == "--version" {
			fmt.Printf("dmrgateway version %s\n", version)
			return "", 0
		}
		if len(a) > 0 && a[0] == '-' {
			fmt.Fprintf(os.Stderr, "usage: dmrgateway [-v|--version] [path to config file]\n")
			return "", 1
		}
		configPath = a
	}
	return configPath, -1
}

func newRootLogger(cfg config.LogConfig) (*logger.Logger, error) {
	level := cfg.DisplayLevel
	if level == "" {
		level = "info"
	}

	var output *os.File = os.Stderr
	if cfg.Path != "" && cfg.Root != "" {
		f, err := os.OpenFile(cfg.Path+"/"+cfg.Root+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		output = f
	}

	return logger.New(logger.Config{Level: level, Format: "console", Output: output}), nil
}

// runOnce builds and runs one generation of the gateway. restart is true
// if it should be rebuilt and run again (SIGHUP); otherwise the process
// exits with exitCode: 0 on SIGTERM, 1 if the modem, its handshake or a
// network failed to start.
func runOnce(cfg *config.Config, log *logger.Logger, sigs <-chan os.Signal) (restart bool, exitCode int) {
	log.Info(header1)
	log.Info(header2)
	log.Info(header3)
	log.Info(header4)
	log.Info("dmrgateway is starting", logger.String("version", version))

	modem := peer.NewModem(cfg.Repeater.Address, cfg.Repeater.Port, log)
	if err := modem.Open(); err != nil {
		log.Error("failed to open modem socket", logger.Error(err))
		return false, 1
	}
	defer modem.Close()

	log.Info("waiting for MMDVM to connect.....")
	// The original blocks here with no deadline at all (a bare for(;;)
	// clocking the repeater every 10ms); WaitForConfig needs a concrete
	// timeout, so this stands in for "forever" in practice.
	if !modem.WaitForConfig(24 * time.Hour) {
		log.Error("modem handshake failed")
		return false, 1
	}
	log.Info("MMDVM has connected")

	obs, stopObservers := buildObservers(cfg, log)
	defer stopObservers()

	gw, err := dispatch.NewGateway(cfg, modem, log, obs)
	if err != nil {
		log.Error("failed to build gateway", logger.Error(err))
		return false, 1
	}
	defer gw.Close()

	stop := make(chan struct{})
	done := make(chan int, 1)
	go func() {
		done <- gw.Dispatcher.Run(stop)
	}()

	select {
	case sig := <-sigs:
		close(stop)
		<-done
		if sig == syscall.SIGHUP {
			return true, 0
		}
		log.Info("caught SIGTERM, exiting")
		return false, 0
	case <-done:
		return false, 0
	}
}

// buildObservers wires every enabled ambient collaborator (the Prometheus
// exporter, the web dashboard, the MQTT publisher, the SQLite
// transmission log) into a single dispatch.Observer, and returns a
// function that shuts them all down again.
func buildObservers(cfg *config.Config, log *logger.Logger) (dispatch.Observer, func()) {
	var fanout dispatch.MultiObserver
	var stoppers []func()

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		promSrv := metrics.NewPrometheusServer(metrics.PrometheusConfig(cfg.Metrics.Prometheus), collector, log)
		go func() {
			if err := promSrv.Start(context.Background()); err != nil {
				log.Warn("prometheus server exited", logger.Error(err))
			}
		}()
		stoppers = append(stoppers, promSrv.Stop)
		fanout = append(fanout, collector)
	}

	if cfg.Web.Enabled {
		webSrv := web.NewServer(cfg.Web, log)
		fanout = append(fanout, webSrv.Observer())
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := webSrv.Start(ctx); err != nil {
				log.Warn("web server exited", logger.Error(err))
			}
		}()
		stoppers = append(stoppers, cancel)
	}

	if cfg.MQTT.Enabled {
		pub := mqtt.New(mqtt.Config(cfg.MQTT), log)
		if err := pub.Start(context.Background()); err != nil {
			log.Warn("mqtt publisher failed to connect", logger.Error(err))
		} else {
			fanout = append(fanout, pub)
		}
		stoppers = append(stoppers, pub.Stop)
	}

	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			log.Warn("database disabled", logger.Error(err))
		} else {
			repo := database.NewTransmissionRepository(db.GetDB())
			txLogger := database.NewTransmissionLogger(repo, log)
			fanout = append(fanout, txLogger)
			stoppers = append(stoppers, func() {
				txLogger.CleanupStaleStreams(0)
				db.Close()
			})
		}
	}

	stop := func() {
		for _, s := range stoppers {
			s()
		}
	}

	if len(fanout) == 0 {
		return dispatch.NoopObserver{}, stop
	}
	return fanout, stop
}
