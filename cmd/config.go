package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/ai-gateway-go/internal/config"
	"github.com/Davincible/ai-gateway-go/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the AI gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for provider details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration with secrets masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("AI Gateway Configuration Setup")
	color.Yellow("Follow the prompts to configure your first provider.")

	reader := bufio.NewReader(os.Stdin)

	prompt := func(label string) string {
		fmt.Printf("%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	providerName := prompt("\nProvider name (e.g. openai, anthropic, kiro)")
	kind := prompt("Provider kind (openai, anthropic, kiro)")
	baseURL := prompt("Base URL (empty for the provider default)")
	accessToken := prompt("Access token / API key")
	gatewayKey := prompt("Gateway API key (optional, protects the ingress)")

	cfg := &config.Config{
		Host:   config.DefaultHost,
		Port:   config.DefaultPort,
		APIKey: gatewayKey,
		Providers: []config.Provider{
			{
				Name:    providerName,
				Kind:    kind,
				BaseURL: baseURL,
				Credentials: []config.CredentialSpec{
					{AccessToken: accessToken},
				},
			},
		},
		Routing: config.RoutingConfig{
			Default: providerName,
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: aigw start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'aigw config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nProviders:")
	for _, provider := range cfg.Providers {
		fmt.Printf("  - Name: %s\n", provider.Name)
		fmt.Printf("    Kind: %s\n", provider.Kind)
		if provider.BaseURL != "" {
			fmt.Printf("    Base URL: %s\n", provider.BaseURL)
		}
		fmt.Printf("    Strategy: %s\n", provider.Strategy)
		fmt.Printf("    Credentials: %d\n", len(provider.Credentials))
		for _, cred := range provider.Credentials {
			label := cred.Label
			if label == "" {
				label = cred.UUID
			}
			fmt.Printf("      - %s: %s\n", label, maskString(cred.AccessToken))
		}
		fmt.Println()
	}

	fmt.Println("Routing:")
	fmt.Printf("  %-15s: %s\n", "Default", cfg.Routing.Default)
	for _, rule := range cfg.Routing.Rules {
		fmt.Printf("  %-15s: %s -> %s\n", "Rule", rule.Pattern, rule.TargetProvider)
	}
	for provider, patterns := range cfg.Routing.Exclusions {
		fmt.Printf("  %-15s: %s excludes %v\n", "Exclusion", provider, patterns)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	// Load already checks provider names and routing targets.
	cfg, err := cfgMgr.Load()
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return fmt.Errorf("configuration validation failed")
	}

	var problems []string

	if len(cfg.Providers) == 0 {
		problems = append(problems, "no providers configured")
	}

	for _, provider := range cfg.Providers {
		if !providers.KnownKind(provider.Kind) {
			problems = append(problems, fmt.Sprintf("provider %q: unknown kind %q", provider.Name, provider.Kind))
		}
		if len(provider.Credentials) == 0 {
			problems = append(problems, fmt.Sprintf("provider %q: no credentials", provider.Name))
		}
	}

	if cfg.Routing.Default == "" {
		problems = append(problems, "routing default provider is required")
	}

	if len(problems) > 0 {
		color.Red("Configuration validation failed:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
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
