package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drone/envsubst"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hopperd/hopper/cmd/hopperd/app"
	"gopkg.in/yaml.v3"
)

const appName = "hopperd"

func main() {
	printVersion := flag.Bool("version", false, "Print this build's version information")

	cfg, configVerify, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if *printVersion {
		fmt.Println(appName)
		os.Exit(0)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	logger = level.NewFilter(logger, level.AllowInfo())

	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}
	if configVerify {
		level.Info(logger).Log("msg", "configuration is valid")
		os.Exit(0)
	}

	a, err := app.New(*cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error constructing hopperd", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "starting hopperd",
		"sources", len(cfg.Sources), "filters", len(cfg.Filters), "sinks", len(cfg.Sinks))

	if err := a.Run(); err != nil {
		level.Error(logger).Log("msg", "error starting hopperd", "err", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	level.Info(logger).Log("msg", "shutting down")
	if err := a.Shutdown(30 * time.Second); err != nil {
		level.Error(logger).Log("msg", "error during shutdown", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "stopped")
}

// loadConfig follows cmd/tempo/main.go's loadConfig: find -config.file
// and -config.expand-env ahead of the main flag.Parse pass (which would
// otherwise error on an unrecognized flag before the config file's own
// defaults are registered), read and optionally envsubst-expand the
// file, unmarshal it, then let any remaining command-line flags
// override the result.
func loadConfig() (*app.Config, bool, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
		configVerifyOption    = "config.verify"
	)

	var (
		configFile      string
		configExpandEnv bool
		configVerify    bool
	)

	args := os.Args[1:]
	cfg := &app.Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")
	fs.BoolVar(&configVerify, configVerifyOption, false, "")

	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	cfg.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
		}
		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return nil, false, fmt.Errorf("failed to expand env vars from configFile %s: %w", configFile, err)
			}
			buf = []byte(s)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, false, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
		}
	}

	// Register the three config-loading flags as real (if inert) flags
	// on the global FlagSet so the final flag.Parse below doesn't
	// reject them as unrecognized.
	flag.String(configFileOption, "", "Configuration file to load")
	flag.Bool(configExpandEnvOption, false, "Whether to expand environment variables in the config file")
	flag.Bool(configVerifyOption, false, "Verify configuration and exit")
	flag.Parse()

	return cfg, configVerify, nil
}
