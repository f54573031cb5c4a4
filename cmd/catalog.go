package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crewplan/app"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the work items waiting to be scheduled",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		cat := svc.NewPlanner().Catalog(cmd.Context())
		if cat.Err != nil {
			return fmt.Errorf("build catalog: %w", cat.Err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if _, err := fmt.Fprintln(tw, "ID\tSOURCE\tHOURS\tSKILL\tPRIORITY\tASSIGNEES\tTITLE"); err != nil {
			return err
		}
		for _, it := range cat.Items {
			_, err := fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\t%s\n",
				it.ID, it.Source, it.BaseEstimatedHours, it.RequiredSkill, it.Priority,
				strings.Join(it.CurrentAssignees, ","), it.Title)
			if err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}
