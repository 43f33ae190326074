package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/gosec-posture/pkg/incident"
)

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Log and review security incidents",
}

var incidentSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a new incident",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		sevFlag, _ := cmd.Flags().GetString("severity")
		description, _ := cmd.Flags().GetString("description")

		severity, err := incident.ParseSeverity(sevFlag)
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		svc, closeStore, err := rt.incidents(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		id, err := svc.Submit(cmd.Context(), subject, severity, description)
		if err != nil {
			return err
		}
		fmt.Printf("Incident %s recorded (%s).\n", id, severity)
		return nil
	},
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		sortFlag, _ := cmd.Flags().GetString("sort")
		sevFlag, _ := cmd.Flags().GetString("severity")
		text, _ := cmd.Flags().GetString("text")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		order, err := incident.ParseSort(sortFlag)
		if err != nil {
			return err
		}
		q := incident.Query{Sort: order, Limit: limit, Filter: incident.Filter{Text: text}}
		if sevFlag != "" {
			if q.Filter.Severity, err = incident.ParseSeverity(sevFlag); err != nil {
				return err
			}
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		svc, closeStore, err := rt.incidents(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		records, err := svc.Query(cmd.Context(), q)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Println("No incidents recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSEVERITY\tSTATUS\tSUBJECT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Severity, r.Status, r.Subject)
		}
		return w.Flush()
	},
}

func init() {
	incidentSubmitCmd.Flags().StringP("subject", "s", "", "Short subject line")
	incidentSubmitCmd.Flags().String("severity", "Medium", "Low, Medium, High or Critical")
	incidentSubmitCmd.Flags().StringP("description", "d", "", "What happened")
	_ = incidentSubmitCmd.MarkFlagRequired("subject")
	_ = incidentSubmitCmd.MarkFlagRequired("description")

	incidentListCmd.Flags().String("sort", "time-desc", "time-asc, time-desc, severity-asc or severity-desc")
	incidentListCmd.Flags().String("severity", "", "Only show this severity")
	incidentListCmd.Flags().String("text", "", "Only show incidents whose subject or description contains this text")
	incidentListCmd.Flags().Int("limit", 0, "Show at most this many incidents (0 for all)")
	incidentListCmd.Flags().Bool("json", false, "Print JSON")

	incidentCmd.AddCommand(incidentSubmitCmd)
	incidentCmd.AddCommand(incidentListCmd)
	rootCmd.AddCommand(incidentCmd)
}
