package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/tableside/internal/journal"
	"github.com/zulandar/tableside/internal/models"
	"golang.org/x/term"
)

func newJournalCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		tableID    int
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent floor activity",
		Long: "Prints journaled floor activity, newest first. Output is an aligned\n" +
			"table on a terminal and tab-separated lines otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var rows []models.Activity
			if tableID > 0 {
				rows, err = journal.ForTable(gormDB, tableID, time.Now().Add(-since))
			} else {
				rows, err = journal.Recent(gormDB, limit)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No activity recorded.")
				return nil
			}
			writeActivities(out, rows, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to tableside config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries to show")
	cmd.Flags().IntVar(&tableID, "table", 0, "show activity for one table")
	cmd.Flags().DurationVar(&since, "since", 12*time.Hour, "how far back --table looks")
	return cmd
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeActivities(out io.Writer, rows []models.Activity, aligned bool) {
	if !aligned {
		for _, a := range rows {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
				a.CreatedAt.Format(time.RFC3339), a.Kind, subjectOf(a), a.Level, oneLine(a.Message))
		}
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tLEVEL\tMESSAGE")
	for _, a := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.CreatedAt.Format("Jan 02 15:04:05"), a.Kind, subjectOf(a), dash(a.Level), oneLine(a.Message))
	}
	w.Flush()
}

func subjectOf(a models.Activity) string {
	var parts []string
	if a.TableID != 0 {
		parts = append(parts, fmt.Sprintf("table %d", a.TableID))
	}
	if a.OrderID != 0 {
		parts = append(parts, fmt.Sprintf("order %d", a.OrderID))
	}
	if a.Action != "" {
		parts = append(parts, a.Action)
	}
	if len(parts) == 0 && a.EntryID != "" {
		parts = append(parts, a.EntryID)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
