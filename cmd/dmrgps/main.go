package main

/*------------------------------------------------------------------
 *
 * Purpose:   	DMR data to APRS gateway.
 *
 * Description:	Receives DMRD datagrams, as relayed by a HomeBrew
 *		master or bridge, on a UDP port.  GPS positions sent by
 *		radios are reported to APRS-IS.  Text messages can
 *		change how a radio's reports look.
 *
 *		Counters are served for Prometheus at /metrics and the
 *		service is announced with DNS-SD.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	dmrgps "github.com/doismellburning/dmrgps/src"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

const MAX_DATAGRAM = 1500

// How long to wait for queued reports and profile writes at shutdown.
const SHUTDOWN_GRACE = 15 * time.Second

func main() {
	var configFile = pflag.StringP("config", "c", "dmrgps.yaml", "Configuration file.")
	var logLevel = pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, or error.  Overrides the configuration file.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - DMR data to APRS gateway\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		dmrgps.PrintVersion(os.Stdout, false)
		os.Exit(0)
	}

	os.Exit(run(*configFile, *logLevel))
}

func run(configFile string, logLevel string) int {
	var cfg, cfgErr = dmrgps.LoadConfig(configFile)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", cfgErr)
		return 1
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	var logger, logErr = dmrgps.NewLogger(os.Stderr, cfg.LogLevel)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", logErr)
		return 1
	}

	if cfg.APRS.Passcode != "-1" && cfg.APRS.Passcode != strconv.Itoa(dmrgps.Passcode(cfg.APRS.Login)) {
		logger.Warn("APRS-IS passcode doesn't match login, reports will be dropped by the servers", "login", cfg.APRS.Login)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics = dmrgps.NewMetrics()
	var jobs = dmrgps.NewDispatcher(cfg.QueueSize, logger, metrics)

	var directory *dmrgps.SubscriberDirectory
	if cfg.Subscribers != "" {
		var d, err = dmrgps.LoadSubscribers(cfg.Subscribers)
		if err != nil {
			logger.Warn("No subscriber directory, reports will use radio ids", "err", err)
		} else {
			logger.Info("Loaded subscriber directory", "file", cfg.Subscribers, "count", d.Len())
			directory = d
		}
	}

	var profiles = dmrgps.NewProfileStore(cfg.ProfileStoreConfig(), logger, metrics, jobs)
	_ = profiles.Load() // Logged, and the store carries on empty.

	var gateway = dmrgps.NewGateway(cfg, dmrgps.GatewayDeps{
		Logger:    logger,
		Metrics:   metrics,
		Profiles:  profiles,
		Directory: directory,
		Uplink:    dmrgps.NewIGate(cfg.IGateConfig(), logger, metrics),
		Actions:   &dmrgps.ShellRunner{Timeout: cfg.ActionTimeout, Logger: logger},
		Jobs:      jobs,
	})

	var srv *http.Server
	if cfg.Metrics != "" {
		var err error
		srv, err = serveMetrics(ctx, cfg, metrics, logger)
		if err != nil {
			logger.Error("Metrics not available", "err", err)
		}
	}

	if cfg.AssemblyTimeout > 0 {
		go expireLoop(ctx, gateway, cfg.AssemblyTimeout)
	}

	var err = receive(ctx, cfg.Listen, gateway, logger)

	logger.Info("Shutting down", "pending", jobs.Pending())

	var shutdownCtx, cancel = context.WithTimeout(context.Background(), SHUTDOWN_GRACE)
	defer cancel()

	if srv != nil {
		srv.Shutdown(shutdownCtx)
	}

	jobs.Close(shutdownCtx)

	if err != nil {
		logger.Error("Receive failed", "err", err)
		return 1
	}

	return 0
}

/*-------------------------------------------------------------------
 *
 * Name:        receive
 *
 * Purpose:     Read DMRD datagrams until ctx ends, passing each one
 *		to the gateway in the order received.
 *
 *--------------------------------------------------------------------*/

func receive(ctx context.Context, listen string, gateway *dmrgps.Gateway, logger *log.Logger) error {
	var pc, err = net.ListenPacket("udp", listen)
	if err != nil {
		return err
	}

	logger.Info("Listening for DMRD", "address", pc.LocalAddr())

	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	var buf = make([]byte, MAX_DATAGRAM)

	for {
		var n, from, rerr = pc.ReadFrom(buf)
		if rerr != nil {
			if ctx.Err() != nil || errors.Is(rerr, net.ErrClosed) {
				return nil
			}
			return rerr
		}

		var frame, perr = dmrgps.ParseDMRD(buf[:n])
		if perr != nil {
			logger.Debug("Not a DMRD datagram", "from", from, "err", perr)
			continue
		}

		gateway.HandleFrame(frame)
	}
}

func expireLoop(ctx context.Context, gateway *dmrgps.Gateway, timeout time.Duration) {
	var ticker = time.NewTicker(timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gateway.Expire()
		}
	}
}

func serveMetrics(ctx context.Context, cfg dmrgps.Config, metrics *dmrgps.Metrics, logger *log.Logger) (*http.Server, error) {
	var ln, err = net.Listen("tcp", cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	var srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "err", err)
		}
	}()

	logger.Info("Serving metrics", "address", ln.Addr())

	var port = ln.Addr().(*net.TCPAddr).Port
	if err := dmrgps.DNSSDAnnounce(ctx, cfg.DNSSDName, port, logger); err != nil {
		logger.Warn("Not announced", "err", err)
	}

	return srv, nil
}
