package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"harvest/internal/acquire"
	"harvest/internal/daemonrun"
	"harvest/internal/notifications"
	"harvest/internal/release"
	"harvest/internal/selection"
)

type candidateView struct {
	Rank       int      `json:"rank"`
	Title      string   `json:"title"`
	Score      float64  `json:"score"`
	Partition  string   `json:"partition"`
	Reason     string   `json:"reason,omitempty"`
	Transports []string `json:"transports"`
	SizeBytes  int64    `json:"size_bytes,omitempty"`
	Seeders    int      `json:"seeders,omitempty"`
	Indexer    string   `json:"indexer,omitempty"`
}

type decisionView struct {
	Transport string   `json:"transport"`
	Title     string   `json:"title,omitempty"`
	Target    string   `json:"target,omitempty"`
	Score     float64  `json:"score,omitempty"`
	Pack      bool     `json:"discography_pack,omitempty"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

type searchOutput struct {
	Queries    []string        `json:"queries"`
	Candidates []candidateView `json:"candidates"`
	Decision   decisionView    `json:"decision"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var year int
	var asJSON bool
	var showRejected bool

	cmd := &cobra.Command{
		Use:   "search ARTIST ALBUM",
		Short: "Rank indexer results for a release without downloading",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc, err := daemonrun.Acquirer(cfg, ctx.logger(), notifications.Noop())
			if err != nil {
				return err
			}
			req := acquire.Request{Artist: args[0], Album: args[1], Year: year}
			pool, queries, err := svc.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			policy := svc.Policy()
			evals := selection.Evaluate(pool, req.Artist, req.Album, policy.DiscographyEnabled)
			decision := selection.Decide(pool, req.Artist, req.Album, policy)
			out := searchOutput{
				Queries:    queries,
				Candidates: candidateViews(evals, showRejected),
				Decision:   newDecisionView(decision, selection.Alternatives(decision, pool, req.Artist, req.Album, policy)),
			}
			if asJSON {
				return writeJSON(cmd, out)
			}
			renderSearch(cmd, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year, used for the year-qualified query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showRejected, "all", false, "Include rejected candidates")
	return cmd
}

func candidateViews(evals []selection.Evaluation, includeRejected bool) []candidateView {
	views := make([]candidateView, 0, len(evals))
	for _, eval := range evals {
		if eval.Partition == selection.Rejected && !includeRejected {
			continue
		}
		transports := make([]string, 0, 3)
		for _, t := range eval.Candidate.Transports() {
			transports = append(transports, t.String())
		}
		views = append(views, candidateView{
			Rank:       len(views) + 1,
			Title:      eval.Candidate.Title,
			Score:      eval.Score,
			Partition:  eval.Partition.String(),
			Reason:     eval.Reason,
			Transports: transports,
			SizeBytes:  eval.Candidate.SizeBytes,
			Seeders:    eval.Candidate.Seeders,
			Indexer:    eval.Candidate.Indexer,
		})
	}
	return views
}

func newDecisionView(decision selection.Decision, alternatives []selection.Decision) decisionView {
	view := decisionView{Transport: decision.Type.String()}
	if !decision.Found() {
		return view
	}
	view.Title = decision.Candidate.Title
	view.Target = decision.Target
	view.Score = decision.Score
	view.Pack = decision.IsDiscographyPack
	for _, alt := range alternatives {
		view.Fallbacks = append(view.Fallbacks, alt.Type.String())
	}
	return view
}

func renderSearch(cmd *cobra.Command, out searchOutput) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Queries: %s\n", strings.Join(out.Queries, " | "))
	if len(out.Candidates) == 0 {
		fmt.Fprintln(stdout, "No usable candidates")
	} else {
		rows := make([][]string, 0, len(out.Candidates))
		for _, c := range out.Candidates {
			rows = append(rows, []string{
				strconv.Itoa(c.Rank),
				strconv.FormatFloat(c.Score, 'f', 1, 64),
				c.Partition,
				strings.Join(c.Transports, ","),
				formatSize(c.SizeBytes),
				strconv.Itoa(c.Seeders),
				c.Title,
				c.Reason,
			})
		}
		fmt.Fprint(stdout, renderTable(
			[]string{"#", "Score", "Kind", "Transports", "Size", "Seeders", "Title", "Reason"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight},
			0, 0, 0, 0, 0, 0, 60, 40,
		))
	}
	fmt.Fprintln(stdout, describeDecision(out.Decision))
}

func describeDecision(d decisionView) string {
	if d.Transport == release.None.String() {
		return "Decision: none"
	}
	kind := "single"
	if d.Pack {
		kind = "discography pack"
	}
	line := fmt.Sprintf("Decision: %s via %s (%s, score %.1f)", d.Title, d.Transport, kind, d.Score)
	if len(d.Fallbacks) > 0 {
		line += "; fallbacks: " + strings.Join(d.Fallbacks, ", ")
	}
	return line
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bytes))
}
