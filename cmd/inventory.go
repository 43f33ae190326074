package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show host, CPU, memory, disk and network inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		inv, err := rt.inventory(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(inv)
		}
		fmt.Print(inv.Report())
		return nil
	},
}

func init() {
	inventoryCmd.Flags().Bool("json", false, "Print JSON")
	rootCmd.AddCommand(inventoryCmd)
}
