// Package cmd implements the proxy's command-line front-end: start/stop/
// status process control and configuration management, built on
// spf13/cobra.
package cmd

import (
	"os"
	"path/filepath"

	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iphands/llamafix-proxy/internal/config"
)

const (
	AppName = "llamafix-proxy"
	Version = "0.1.0"
)

var (
	logger  *slog.Logger
	homeDir string
	baseDir string
	cfgMgr  *config.Manager
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger = slog.New(handler)

	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		logger.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}

	baseDir = filepath.Join(homeDir, "."+AppName)
	cfgMgr = config.NewManager(baseDir)
}

var rootCmd = &cobra.Command{
	Use:     "llamafix-proxy",
	Short:   "llamafix-proxy - tool-call-repairing LLM reverse proxy",
	Long:    `A reverse proxy that sits between OpenAI/Anthropic-compatible clients and a llama.cpp-compatible backend, repairing malformed tool-call JSON and synthesizing streaming responses.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolP("log-file", "l", false, "enable file logging")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(verbose, logFile bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	if logFile {
		// TODO: wire a rotating file handler once an operator actually asks for it.
		color.Yellow("file logging not yet implemented, using stdout")
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func ensureConfigExists() error {
	if !cfgMgr.Exists() {
		color.Yellow("configuration not found, generating defaults at %s", cfgMgr.YAMLPath())
		return cfgMgr.Save(defaultConfigForInit())
	}
	return nil
}

// defaultConfigForInit returns the configuration written out the first time
// the proxy runs without an existing config.yaml, mirroring config.Load's
// own built-in defaults so a freshly generated file and a missing file
// behave identically until the operator edits it.
func defaultConfigForInit() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: config.DefaultHost, Port: config.DefaultPort},
		Backend: config.BackendConfig{
			BackendNodeConfig: config.BackendNodeConfig{
				Host:           "127.0.0.1",
				Port:           8080,
				TimeoutSeconds: 300,
			},
			LoadBalancer: config.LoadBalancerConfig{Strategy: "round_robin"},
		},
		Fixes: config.FixesConfig{
			Enabled: true,
			Modules: map[string]config.FixModuleConfig{
				"toolcall_null_index_fix":      {Enabled: true},
				"toolcall_malformed_arguments": {Enabled: true},
				"toolcall_bad_filepath":        {Enabled: true},
			},
		},
		Stats: config.StatsConfig{Enabled: true, Format: config.StatsFormatPretty, LogInterval: 10},
	}
}
