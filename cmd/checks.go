package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gosec-posture/pkg/checks"
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the compliance checklist for a platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		platformFlag, _ := cmd.Flags().GetString("platform")

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		p := checks.ParsePlatform(platformFlag)
		list, err := rt.registry.Checklist(p)
		if err != nil {
			supported := make([]string, 0, 3)
			for _, sp := range rt.registry.Platforms() {
				supported = append(supported, string(sp))
			}
			fmt.Printf("%s\nSupported platforms: %s\n", checks.UnsupportedResult(p), strings.Join(supported, ", "))
			return nil
		}

		fmt.Printf("Checklist for %s (%d checks):\n", p, len(list))
		for i, c := range list {
			fmt.Printf("%2d. %s", i+1, c.Name)
			if _, ok := rt.remediation.Template(p, c.Name); ok {
				fmt.Print("  [fix plan available]")
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	checksCmd.Flags().StringP("platform", "p", "", "Platform (windows, linux, darwin); defaults to this host")
	rootCmd.AddCommand(checksCmd)
}
