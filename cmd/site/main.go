package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/logging"
	"guild_stats_site/internal/startup"
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	if *configOnly {
		os.Exit(checkConfig())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := startup.Run(ctx, startup.Options{})
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", res.Stage, res.Err)
	}

	stop()
	os.Exit(res.ExitCode())
}

func checkConfig() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"event": "config_error", "error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	if _, err := logging.Setup(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		return 1
	}

	logging.Info("configuration check", logging.Fields{"event": "config_only"})
	fmt.Println("configuration check: ok")
	fmt.Println(config.FormatRedacted(cfg))
	return 0
}
