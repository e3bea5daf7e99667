package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go_ftserve/auth"
	"go_ftserve/config"
	"go_ftserve/constants"
	"go_ftserve/logger"
	"go_ftserve/metrics"
	"go_ftserve/networking"
	server "go_ftserve/server/controller"

	"github.com/akamensky/argparse"
)

func main() {
	args := argparse.NewParser("ftserve", constants.Title+" server")

	cfgFile := args.String("c", "config", &argparse.Options{Required: false, Help: "Configuration file (YAML, TOML or JSON)"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Control connection listening port " +
		fmt.Sprintf("(default %d)", constants.DEFAULT_PORT)})
	bind := args.String("b", "bind", &argparse.Options{Required: false, Help: "Listen on address"})
	dataPort := args.Int("d", "data-port", &argparse.Options{Required: false, Help: "Client data port to connect back to " +
		fmt.Sprintf("(default %d)", constants.DEFAULT_DATA_PORT)})
	root := args.String("r", "root", &argparse.Options{Required: false, Help: "Root directory served to clients"})
	authFile := args.String("a", "auth", &argparse.Options{Required: false, Help: "Credential store " +
		"(default " + constants.AUTH_FILE + ")"})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Store uploaded files LZ4 compressed"})
	checksum := args.Selector("s", "checksum", []string{"none", "crc32", "sha256"}, &argparse.Options{Required: false,
		Help: "Checksum logged for uploaded files"})
	dscp := args.Int("q", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS of data connections"})
	provider := args.Selector("l", "listing", []string{"exec", "native"}, &argparse.Options{Required: false,
		Help: "Directory listing provider"})
	metricsAddr := args.String("m", "metrics", &argparse.Options{Required: false, Help: "Serve Prometheus metrics on address"})
	level := args.Selector("v", "log-level", []string{"DEBUG", "INFO", "WARN", "ERROR"}, &argparse.Options{Required: false,
		Help: "Log level"})

	err := args.Parse(os.Args)
	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.LoadServer(*cfgFile)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	// Flags override file and environment.
	if *port != 0 {
		cfg.Port = *port
	}
	if *bind != "" {
		cfg.Bind = *bind
	}
	if *dataPort != 0 {
		cfg.DataPort = *dataPort
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *authFile != "" {
		cfg.AuthFile = *authFile
	}
	if *compress {
		cfg.Compress = true
	}
	if *checksum != "" {
		cfg.Checksum = *checksum
	}
	if *dscp != 0 {
		cfg.DSCP = *dscp
	}
	if *provider != "" {
		cfg.Listing = *provider
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	store, err := auth.NewFileStore(cfg.AuthFile)
	if err != nil {
		logger.Error("cannot open credential store", logger.KeyPath, cfg.AuthFile, logger.Err(err))
		os.Exit(1)
	}

	opts, err := server.OptionsFromConfig(cfg)
	if err != nil {
		logger.Error("invalid configuration", logger.Err(err))
		os.Exit(1)
	}
	m := metrics.New()
	opts = append(opts, server.WithLogger(logger.L()), server.WithMetrics(m))

	srv, err := server.New(store, opts...)
	if err != nil {
		logger.Error("cannot start server", logger.Err(err))
		os.Exit(1)
	}

	logger.Info("serving directory", logger.KeyPath, srv.Root(), logger.KeyListenAddr, cfg.ListenAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("serving metrics", logger.KeyListenAddr, cfg.MetricsAddr)
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics endpoint failed", logger.Err(err))
			}
		}()
	}

	if err := srv.ListenAndServe(ctx, cfg.ListenAddr()); err != nil {
		var bindErr *networking.BindError
		if errors.As(err, &bindErr) {
			logger.Error("cannot bind control port", logger.KeyListenAddr, bindErr.Addr, logger.Err(bindErr.Err))
		} else {
			logger.Error("server failed", logger.Err(err))
		}
		stop()
		os.Exit(1)
	}
}
