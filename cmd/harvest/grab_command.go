package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"harvest/internal/acquire"
	"harvest/internal/daemonrun"
	"harvest/internal/notifications"
)

type attemptView struct {
	Transport string `json:"transport"`
	Target    string `json:"target"`
	Error     string `json:"error,omitempty"`
}

type grabOutput struct {
	RequestID  string        `json:"request_id"`
	Candidates int           `json:"candidates"`
	Decision   decisionView  `json:"decision"`
	Used       string        `json:"used"`
	Attempts   []attemptView `json:"attempts,omitempty"`
}

func newGrabCommand(ctx *commandContext) *cobra.Command {
	var year int
	var savePath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "grab ARTIST ALBUM",
		Short: "Search for a release and hand the best candidate to a downloader",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc, err := daemonrun.Acquirer(cfg, ctx.logger(), notifications.NewService(cfg))
			if err != nil {
				return err
			}
			result, err := svc.Acquire(cmd.Context(), acquire.Request{
				Artist:   args[0],
				Album:    args[1],
				Year:     year,
				SavePath: savePath,
			})
			out := newGrabOutput(result)
			if asJSON {
				if jsonErr := writeJSON(cmd, out); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			renderGrab(cmd, out)
			return err
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year, used for the year-qualified query")
	cmd.Flags().StringVar(&savePath, "save-path", "", "Override the downloader's save path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newGrabOutput(result acquire.Result) grabOutput {
	out := grabOutput{
		RequestID:  result.RequestID,
		Candidates: len(result.Candidates),
		Decision:   newDecisionView(result.Decision, nil),
		Used:       result.Used.String(),
	}
	for _, attempt := range result.Attempts {
		view := attemptView{Transport: attempt.Transport.String(), Target: attempt.Target}
		if attempt.Err != nil {
			view.Error = attempt.Err.Error()
		}
		out.Attempts = append(out.Attempts, view)
	}
	return out
}

func renderGrab(cmd *cobra.Command, out grabOutput) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Candidates: %d\n", out.Candidates)
	fmt.Fprintln(stdout, describeDecision(out.Decision))
	for _, attempt := range out.Attempts {
		status := "accepted"
		if attempt.Error != "" {
			status = "failed: " + attempt.Error
		}
		fmt.Fprintf(stdout, "  %-13s %s\n", attempt.Transport, status)
	}
	if out.Used != "none" {
		fmt.Fprintf(stdout, "Transfer started via %s\n", out.Used)
	} else if out.Decision.Transport == "none" {
		fmt.Fprintln(stdout, "Nothing to download")
	}
}
