package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/gosec-posture/pkg/adk"
	"github.com/user/gosec-posture/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (thresholds, storage, providers, keys)",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (API keys redacted)",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		redacted := *cfg
		redacted.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
		for name, p := range cfg.Providers {
			if p.APIKey != "" {
				p.APIKey = "********"
			}
			redacted.Providers[name] = p
		}
		out, err := yaml.Marshal(&redacted)
		if err != nil {
			fmt.Printf("Error encoding config: %v\n", err)
			return
		}
		fmt.Print(string(out))
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		path, err := configPath()
		if err != nil {
			fmt.Printf("Error resolving config path: %v\n", err)
			return
		}
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Printf("Config already exists at %s (use --force to overwrite)\n", path)
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Error checking %s: %v\n", path, err)
			return
		}
		if err := config.SaveTo(config.Default(), path); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Default configuration written to %s\n", path)
	},
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Manually set API key for a provider",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")

		if provider == "" || key == "" {
			fmt.Println("Error: --provider and --key are required")
			return
		}

		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		cfg.SetAPIKey(strings.ToLower(provider), key)
		if err := saveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("API key saved for provider: %s\n", provider)
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Manually set the active provider and model",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if provider != "" {
			cfg.SelectedProvider = strings.ToLower(provider)
		}
		if model != "" {
			cfg.SelectedModel = model
		}

		if err := saveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Active configuration updated: Provider=%s, Model=%s\n", cfg.SelectedProvider, cfg.SelectedModel)
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println("Error loading config:", err)
			return
		}

		provider, apiKey := providerCredentials(cfg)
		if apiKey == "" {
			fmt.Printf("No API key found for %s. Run 'gosec-posture config setup'.\n", provider)
			return
		}

		fmt.Printf("Fetching models for %s...\n", provider)
		ctx := context.Background()
		p, err := adk.NewProvider(ctx, provider, apiKey, "")
		if err != nil {
			fmt.Println("Error initializing provider:", err)
			return
		}
		if closer, ok := p.(interface{ Close() }); ok {
			defer closer.Close()
		}

		models, err := p.ListModels(ctx)
		if err != nil {
			fmt.Println("Error fetching models:", err)
			return
		}

		fmt.Printf("\nAvailable Models (%s):\n", provider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

// providerCredentials picks the configured provider, falling back to
// gemini and the GOOGLE_API_KEY environment variable.
func providerCredentials(cfg *config.Config) (provider, apiKey string) {
	provider = cfg.SelectedProvider
	if provider == "" {
		provider = "gemini"
	}
	apiKey = cfg.GetAPIKey(provider)
	if apiKey == "" && provider == "gemini" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return provider, apiKey
}

func init() {
	initConfigCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	setKeyCmd.Flags().StringP("provider", "p", "gemini", "Provider")
	setKeyCmd.Flags().StringP("key", "k", "", "API Key")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider")
	setModelCmd.Flags().StringP("model", "m", "", "Model name")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(configCmd)
}
