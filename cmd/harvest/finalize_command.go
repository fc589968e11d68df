package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"harvest/internal/daemon"
	"harvest/internal/daemonrun"
	"harvest/internal/finalize"
	"harvest/internal/library"
	"harvest/internal/notifications"
)

type finalizeResultView struct {
	Artist   string  `json:"artist"`
	Release  string  `json:"release"`
	Outcome  string  `json:"outcome"`
	Source   string  `json:"source,omitempty"`
	Progress float64 `json:"progress"`
	Files    int     `json:"files"`
	Error    string  `json:"error,omitempty"`
}

type finalizeOutput struct {
	Summary daemon.ScanSummary   `json:"summary"`
	Results []finalizeResultView `json:"results"`
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Run one finalization scan: copy finished transfers into the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			sources, err := daemonrun.Sources(cfg, logger)
			if err != nil {
				return err
			}
			return ctx.withLibrary(func(store *library.Store) error {
				worker := finalize.New(cfg, store, sources,
					finalize.WithLogger(logger),
					finalize.WithNotifier(notifications.NewService(cfg)),
				)
				report, err := worker.ScanOnce(cmd.Context())
				if err != nil {
					return err
				}
				out := newFinalizeOutput(report)
				if asJSON {
					return writeJSON(cmd, out)
				}
				renderFinalize(cmd, out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFinalizeOutput(report finalize.Report) finalizeOutput {
	out := finalizeOutput{Summary: daemon.Summarize(report)}
	for _, r := range report.Results {
		view := finalizeResultView{
			Artist:   r.Release.Artist,
			Release:  r.Release.FolderName,
			Outcome:  r.Outcome.String(),
			Source:   r.Source,
			Progress: r.Progress,
			Files:    len(r.Files),
		}
		if r.Err != nil {
			view.Error = r.Err.Error()
		}
		out.Results = append(out.Results, view)
	}
	return out
}

func renderFinalize(cmd *cobra.Command, out finalizeOutput) {
	stdout := cmd.OutOrStdout()
	if len(out.Results) == 0 {
		fmt.Fprintln(stdout, "No incomplete releases")
		return
	}
	rows := make([][]string, 0, len(out.Results))
	for _, r := range out.Results {
		source := r.Source
		if source == "" {
			source = "-"
		}
		rows = append(rows, []string{
			r.Artist,
			r.Release,
			r.Outcome,
			source,
			strconv.FormatFloat(r.Progress*100, 'f', 1, 64) + "%",
			strconv.Itoa(r.Files),
		})
	}
	fmt.Fprint(stdout, renderTable(
		[]string{"Artist", "Release", "Outcome", "Source", "Progress", "Files"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(stdout, "Finalized %d of %d releases\n", out.Summary.Finalized, out.Summary.Releases)
}
