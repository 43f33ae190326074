package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gosec-posture/pkg/adk"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for the assistant",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to the gosec-posture Setup Wizard")
		fmt.Println("-----------------------------------------")

		// 1. Provider. Only Gemini is wired for now.
		provider := "gemini"
		fmt.Println("Step 1: AI Provider: Gemini (Google)")

		// 2. API key
		fmt.Printf("\nStep 2: Enter API Key for %s (leave empty to use GOOGLE_API_KEY)\n", provider)
		fmt.Print("> ")
		scanner.Scan()
		apiKey := strings.TrimSpace(scanner.Text())
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			fmt.Println("API Key cannot be empty.")
			return
		}

		// 3. Models
		fmt.Println("\nStep 3: Validating key and fetching available models...")
		ctx := context.Background()
		tempProvider, err := adk.NewProvider(ctx, provider, apiKey, "")
		if err != nil {
			fmt.Printf("Error initializing provider: %v\n", err)
			return
		}
		if closer, ok := tempProvider.(interface{ Close() }); ok {
			defer closer.Close()
		}

		models, err := tempProvider.ListModels(ctx)
		var selectedModel string

		if err != nil || len(models) == 0 {
			if err != nil {
				fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
			}
			fmt.Println("Please enter model name manually (e.g., 'gemini-1.5-flash'):")
			fmt.Print("> ")
			scanner.Scan()
			selectedModel = strings.TrimSpace(scanner.Text())
		} else {
			fmt.Printf("Successfully retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Printf("%d. %s\n", i+1, m)
			}
			fmt.Print("Select Model (number) > ")
			scanner.Scan()
			selIdx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err != nil || selIdx < 1 || selIdx > len(models) {
				fmt.Println("Invalid selection. Using first available model.")
				selectedModel = models[0]
			} else {
				selectedModel = models[selIdx-1]
			}
		}

		// 4. Save
		fmt.Println("\nStep 4: Saving Configuration...")
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		cfg.SelectedProvider = provider
		cfg.SelectedModel = selectedModel
		cfg.SetAPIKey(provider, apiKey)

		if err := saveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-----------------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Provider: %s\n", provider)
		fmt.Printf("Model:    %s\n", selectedModel)
		fmt.Println("You can now run 'gosec-posture interactive'")
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
