package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gosec-posture/pkg/adk"
	"github.com/user/gosec-posture/pkg/wrappers"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start the interactive assistant session",
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer rt.close()

		providerName, apiKey := providerCredentials(rt.cfg)
		if apiKey == "" {
			fmt.Println("Error: API Key not found.")
			fmt.Println("Please run 'gosec-posture config setup' or set GOOGLE_API_KEY.")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fmt.Printf("Connecting to %s (Model: %s)...\n", providerName, rt.cfg.SelectedModel)
		provider, err := adk.NewProvider(ctx, providerName, apiKey, rt.cfg.SelectedModel)
		if err != nil {
			fmt.Printf("Error creating AI provider: %v\n", err)
			return
		}
		if closer, ok := provider.(interface{ Close() }); ok {
			defer closer.Close()
		}

		svc, closeStore, err := rt.incidents(ctx)
		if err != nil {
			fmt.Printf("Error opening incident store: %v\n", err)
			return
		}
		defer closeStore()

		session := &wrappers.Session{}
		agent := adk.NewAgent(provider, rt.logger)
		agent.RegisterTool(&wrappers.RiskAssessmentWrapper{Scan: rt.scan, Session: session})
		agent.RegisterTool(&wrappers.ComplianceWrapper{Scan: rt.scan, Session: session, Remediation: rt.remediation})
		agent.RegisterTool(&wrappers.RemediationWrapper{Engine: rt.remediation, Platform: rt.platform})
		agent.RegisterTool(&wrappers.InventoryWrapper{Collect: rt.inventory})
		agent.RegisterTool(&wrappers.SubmitIncidentWrapper{Service: svc})
		agent.RegisterTool(&wrappers.QueryIncidentsWrapper{Service: svc})
		agent.RegisterTool(&wrappers.SaveBaselineWrapper{Session: session})
		agent.RegisterTool(&wrappers.CompareBaselineWrapper{Session: session})
		agent.SetSystemPrompt(adk.GetSystemPrompt())

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("\n---------------------------------------------------------")
		fmt.Println("gosec-posture assistant ready.")
		fmt.Println("Example: 'How risky does this machine look right now?'")
		fmt.Println("Example: 'Run a full compliance check and show me the fixes'")
		fmt.Println("Type 'reset' to clear the conversation, 'quit' or 'exit' to stop.")
		fmt.Println("---------------------------------------------------------")

		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "quit", "exit":
				return
			case "reset":
				agent.Reset()
				fmt.Println("Conversation cleared.")
				continue
			case "":
				continue
			}

			fmt.Print("Agent thinking... ")
			resp, err := agent.Chat(ctx, input, func(msg string) {
				fmt.Printf("\r\033[K[Progress]: %s\nAgent thinking... ", msg)
			})
			fmt.Print("\r\033[K")

			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("\n[Agent]: %s\n", resp)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
