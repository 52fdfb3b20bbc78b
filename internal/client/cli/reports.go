package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/medreport/internal/client/models"
	"github.com/spf13/cobra"
)

func reportsCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"r"},
		Short:   "Manage stored reports",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"l", "ls"},
			Short:   "List your reports, newest first",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a := app()
				rs, err := a.api.ListReports(cmd.Context())
				if err != nil {
					return err
				}
				printReportList(a.out, rs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := app()
				r, err := a.api.GetReport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printReport(a.out, r)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := app()
				if err := a.api.DeleteReport(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Report %s deleted\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "metrics <id>",
			Short: "Show the lab values extracted from a report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := app()
				ms, err := a.api.ReportMetrics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printMetrics(a.out, ms)
				return nil
			},
		},
		&cobra.Command{
			Use:   "compare",
			Short: "Compare lab values of your two latest reports",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a := app()
				c, err := a.api.CompareLatest(cmd.Context())
				if err != nil {
					return err
				}
				printComparison(a.out, c)
				return nil
			},
		},
		reportsAddCmd(app),
	)
	return cmd
}

// reportsAddCmd has the server analyze text and store the result.
func reportsAddCmd(app func() *App) *cobra.Command {
	var documentKey string
	cmd := &cobra.Command{
		Use:   "add [file|-]",
		Short: "Analyze report text and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := a.readText(args, "Paste the report text")
			if err != nil {
				return err
			}
			r, err := a.api.AnalyzeReport(cmd.Context(), text, documentKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Report %s saved\n\n", r.ID)
			printReport(a.out, r)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentKey, "document-key", "", "archived upload this report was read from")
	return cmd
}

func printReportList(w io.Writer, rs []models.Report) {
	if len(rs) == 0 {
		fmt.Fprintln(w, "No reports yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSUMMARY")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), firstLine(r.Summary, 60))
	}
	_ = tw.Flush()
}

func printReport(w io.Writer, r *models.Report) {
	fmt.Fprintf(w, "ID:      %s\n", r.ID)
	fmt.Fprintf(w, "Created: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	if r.DocumentKey != "" {
		fmt.Fprintf(w, "Document: %s\n", r.DocumentKey)
	}
	fmt.Fprintf(w, "\nSummary:\n%s\n", r.Summary)
	if len(r.Insights) > 0 {
		fmt.Fprintln(w, "\nInsights:")
		for _, s := range r.Insights {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(r.Glossary) > 0 {
		fmt.Fprintf(w, "\nGlossary: %s\n", strings.Join(r.Glossary, ", "))
	}
}

func printMetrics(w io.Writer, ms []models.Metric) {
	if len(ms) == 0 {
		fmt.Fprintln(w, "No metrics found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE\tUNIT\tRANGE\tSTATUS")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Name, models.FormatValue(&m.Value), m.Unit, m.Range(), m.Status)
	}
	_ = tw.Flush()
}

func printComparison(w io.Writer, c *models.Comparison) {
	fmt.Fprintf(w, "Previous: %s (%s)\n", c.Previous.ID, c.Previous.CreatedAt.Local().Format("2006-01-02"))
	fmt.Fprintf(w, "Current:  %s (%s)\n\n", c.Current.ID, c.Current.CreatedAt.Local().Format("2006-01-02"))
	if len(c.Deltas) == 0 {
		fmt.Fprintln(w, "No comparable metrics")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPREVIOUS\tCURRENT\tDELTA\tDIRECTION")
	for _, d := range c.Deltas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name,
			models.FormatValue(d.PreviousValue), models.FormatValue(d.CurrentValue),
			models.FormatValue(d.Delta), d.Direction)
	}
	_ = tw.Flush()
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max-3]) + "..."
	}
	return s
}
