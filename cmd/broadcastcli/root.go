package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
	"github.com/ligun0805/batch-broadcaster/internal/broadcast"
	"github.com/ligun0805/batch-broadcaster/internal/config"
	"github.com/ligun0805/batch-broadcaster/internal/network"
)

// app is the state shared by every subcommand once setup has run.
type app struct {
	cfgPath     string
	networkName string
	logLevel    string
	metricsAddr string
	noSave      bool

	cfg      *config.Settings
	log      *logrus.Logger
	accts    accounts.Set
	net      *network.Context
	registry *prometheus.Registry
	metrics  *broadcast.Metrics
	dial     network.Dialer
}

// dialer is swapped in tests.
var dialer network.Dialer = network.DialHTTP

func newRootCmd() *cobra.Command {
	a := &app{log: logrus.New(), dial: dialer}
	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.TimeOnly})

	root := &cobra.Command{
		Use:           "broadcastcli",
		Short:         "Broadcast testnet transactions from many accounts at once",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "f", config.DefaultPath, "config file")
	pf.StringVarP(&a.networkName, "network", "n", network.Sepolia, "active network (sepolia|giwa)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (overrides config)")
	pf.BoolVar(&a.noSave, "no-save", false, "do not write result files")

	root.AddCommand(
		a.deployCmd(),
		a.erc20Cmd(),
		a.gmonCmd(),
		a.mintCmd(),
		a.bridgeCmd(),
		a.allInCmd(),
		a.balancesCmd(),
		a.networkInfoCmd(),
		a.estimateCmd(),
		a.importKeyCmd(),
	)
	return root
}

// loadConfig reads config and applies logging flags.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.cfgPath)
	if errors.Is(err, config.ErrConfigCreated) {
		return err
	}
	if err != nil {
		return fatal(err)
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fatal(fmt.Errorf("log level: %w", err))
	}
	a.log.SetLevel(lvl)
	if a.metricsAddr == "" {
		a.metricsAddr = cfg.MetricsAddr
	}
	return nil
}

// setup loads config, accounts and the active network. Any failure here is fatal.
func (a *app) setup(ctx context.Context) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	set, err := accounts.Load(a.cfg.AccountFilePath, a.log.Warnf)
	if err != nil {
		return fatal(fmt.Errorf("accounts from %s: %w", a.cfg.AccountFilePath, err))
	}
	a.accts = set
	a.log.Infof("loaded %d accounts from %s", set.Len(), a.cfg.AccountFilePath)

	nc, err := a.openNetwork(ctx)
	if err != nil {
		return fatal(err)
	}
	a.net = nc
	a.log.Infof("connected to %s", nc)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = broadcast.NewMetrics(a.registry)
	a.serveMetrics(ctx)
	return nil
}

// openNetwork connects to the primary network and switches if another one was asked for.
func (a *app) openNetwork(ctx context.Context) (*network.Context, error) {
	eps := network.DefaultEndpoints(a.cfg.RPCURL, a.cfg.SecondaryRPCURL)
	nc, err := network.Open(ctx, eps, network.Sepolia, a.dial)
	if err != nil {
		return nil, err
	}
	target, err := eps.Lookup(a.networkName)
	if err != nil {
		nc.Close()
		return nil, err
	}
	if target.Name == nc.Name() {
		return nc, nil
	}
	next, err := nc.Switch(ctx, target.Name)
	if err != nil {
		nc.Close()
		return nil, err
	}
	nc.Close()
	return next, nil
}

func (a *app) serveMetrics(ctx context.Context) {
	if a.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warnf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	a.log.Infof("metrics on http://%s/metrics", a.metricsAddr)
}

func (a *app) close() {
	if a.net != nil {
		a.net.Close()
	}
}

func (a *app) dispatcher() *broadcast.Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if a.cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.MaxRPS), 1)
	}
	return broadcast.New(a.net,
		broadcast.WithLogger(a.log),
		broadcast.WithLimiter(limiter),
		broadcast.WithMetrics(a.metrics),
	)
}

// policy builds the batch policy for action from config defaults.
func (a *app) policy(action string, gas uint64, wait bool) broadcast.Policy {
	lo, hi := a.cfg.Jitter()
	return broadcast.Policy{
		Action:         action,
		GasLimit:       a.cfg.Gas(action, gas),
		MaxConcurrency: a.cfg.MaxConcurrency,
		WaitForReceipt: a.cfg.Wait(action, wait),
		JitterMin:      lo,
		JitterMax:      hi,
		NoJitter:       hi == 0,
		Timeout:        a.cfg.ReceiptTimeout,
		PollInterval:   a.cfg.PollInterval,
	}
}

func (a *app) saving() bool { return a.cfg.SaveResults && !a.noSave }
