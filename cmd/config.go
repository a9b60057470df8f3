package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iphands/llamafix-proxy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the llamafix-proxy configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for backend details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate example YAML configuration",
	Long:  `Generate an example YAML configuration file with default settings.`,
	RunE:  runConfigGenerate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configGenerateCmd)

	configGenerateCmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("llamafix-proxy Configuration Setup")
	color.Yellow("Follow the prompts to configure your backend.")

	reader := bufio.NewReader(os.Stdin)

	prompt := func(label, def string) (string, error) {
		if def != "" {
			fmt.Printf("%s [%s]: ", label, def)
		} else {
			fmt.Printf("%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("error reading %s: %w", label, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return def, nil
		}
		return line, nil
	}

	host, err := prompt("Backend host", "127.0.0.1")
	if err != nil {
		return err
	}

	portStr, err := prompt("Backend port", "8080")
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	apiKey, err := prompt("Backend API key (optional)", "")
	if err != nil {
		return err
	}

	model, err := prompt("Default model override (optional)", "")
	if err != nil {
		return err
	}

	timeoutStr, err := prompt("Request timeout seconds", "300")
	if err != nil {
		return err
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", timeoutStr, err)
	}

	cfg := defaultConfigForInit()
	cfg.Backend.BackendNodeConfig = config.BackendNodeConfig{
		Host:           host,
		Port:           port,
		TimeoutSeconds: timeout,
		APIKey:         apiKey,
		Model:          model,
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.YAMLPath())
	color.Cyan("You can now start the proxy with: llamafix-proxy start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'llamafix-proxy config init' or 'config generate' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Server.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Server.Port)
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.YAMLPath())

	configType := "JSON"
	if cfgMgr.HasYAML() {
		configType = "YAML"
	}
	fmt.Printf("  %-15s: %s\n", "Format", configType)

	fmt.Println("\nBackends:")
	for _, node := range cfg.Backend.Nodes() {
		fmt.Printf("  - URL: %s\n", node.URL())
		fmt.Printf("    API Key: %s\n", maskString(node.APIKey))
		if node.Model != "" {
			fmt.Printf("    Model override: %s\n", node.Model)
		}
		fmt.Printf("    Timeout: %s\n", node.Timeout())
		fmt.Println()
	}
	fmt.Printf("  %-15s: %s\n", "Strategy", cfg.Backend.LoadBalancer.Strategy)

	fmt.Println("\nFix pipeline:")
	fmt.Printf("  %-15s: %v\n", "Enabled", cfg.Fixes.Enabled)
	for name, mod := range cfg.Fixes.Modules {
		fmt.Printf("  - %-30s: %v\n", name, mod.Enabled)
	}

	fmt.Println("\nStats:")
	fmt.Printf("  %-15s: %v\n", "Enabled", cfg.Stats.Enabled)
	fmt.Printf("  %-15s: %s\n", "Format", cfg.Stats.Format)
	fmt.Printf("  %-15s: %d\n", "Log interval", cfg.Stats.LogInterval)

	if cfg.Exporters.InfluxDB.Enabled {
		fmt.Println("\nInfluxDB exporter:")
		fmt.Printf("  %-15s: %s\n", "URL", cfg.Exporters.InfluxDB.URL)
		fmt.Printf("  %-15s: %s\n", "Org", cfg.Exporters.InfluxDB.Org)
		fmt.Printf("  %-15s: %s\n", "Bucket", cfg.Exporters.InfluxDB.Bucket)
		fmt.Printf("  %-15s: %s\n", "Token", maskString(cfg.Exporters.InfluxDB.Token))
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return errors.New("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var validationErrors []string

	if cfg.Server.Port <= 0 {
		validationErrors = append(validationErrors, "server.port must be positive")
	}
	if cfg.Server.Host == "" {
		validationErrors = append(validationErrors, "server.host is required")
	}

	nodes := cfg.Backend.Nodes()
	if len(nodes) == 0 {
		validationErrors = append(validationErrors, "no backends configured")
	}

	for i, node := range nodes {
		if node.Host == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("backend %d: host is required", i))
		}
		if node.Port <= 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("backend %d: port must be positive", i))
		}
	}

	if cfg.Exporters.InfluxDB.Enabled {
		if cfg.Exporters.InfluxDB.URL == "" {
			validationErrors = append(validationErrors, "exporters.influxdb: url is required when enabled")
		}
		if cfg.Exporters.InfluxDB.Bucket == "" {
			validationErrors = append(validationErrors, "exporters.influxdb: bucket is required when enabled")
		}
	}

	if len(validationErrors) > 0 {
		color.Red("Configuration validation failed:")
		for _, e := range validationErrors {
			fmt.Printf("  - %s\n", e)
		}
		return errors.New("configuration validation failed")
	}

	color.Green("Configuration is valid!")

	return nil
}

func runConfigGenerate(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if cfgMgr.Exists() && !force {
		configType := "JSON"
		if cfgMgr.HasYAML() {
			configType = "YAML"
		}

		color.Yellow("Configuration file already exists (%s format): %s", configType, cfgMgr.YAMLPath())
		color.Cyan("Use --force to overwrite, or 'llamafix-proxy config show' to view current config")

		return nil
	}

	if err := cfgMgr.Save(defaultConfigForInit()); err != nil {
		return fmt.Errorf("failed to create example configuration: %w", err)
	}

	color.Green("Example YAML configuration created: %s", cfgMgr.YAMLPath())
	color.Cyan("\nNext steps:")
	fmt.Println("1. Edit the configuration file to point at your backend(s)")
	fmt.Println("2. Customize which fix modules are enabled")
	fmt.Println("3. Run 'llamafix-proxy config validate' to check your configuration")
	fmt.Println("4. Start the proxy with 'llamafix-proxy start'")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}

	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
