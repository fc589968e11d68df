package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/queuebuild"
	"harvest/internal/transport/slskd"
)

type queueItemView struct {
	Track  *int   `json:"track,omitempty"`
	Owner  string `json:"owner"`
	Remote string `json:"remote"`
	Local  string `json:"local"`
	Size   int64  `json:"size_bytes,omitempty"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var tracks int
	var titles []string
	var minBitrate int
	var enqueue bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan ARTIST ALBUM",
		Short: "Search the peer network and build a track-by-track download queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Slskd.Enabled {
				return fmt.Errorf("slskd is disabled; set [slskd] enabled = true")
			}
			client, err := slskd.New(cfg.Slskd, slskd.WithLogger(ctx.logger()))
			if err != nil {
				return err
			}
			artist, album := args[0], args[1]
			entries, err := client.Search(cmd.Context(), artist+" "+album)
			if err != nil {
				return err
			}
			bitrate := minBitrate
			if bitrate <= 0 {
				bitrate = cfg.Slskd.MinBitrate
			}
			items := queuebuild.Build(entries, queuebuild.Request{
				Artist:              artist,
				Release:             album,
				ExpectedTrackCount:  tracks,
				ExpectedTrackTitles: titles,
				MinBitrate:          bitrate,
			})

			if asJSON {
				if err := writeJSON(cmd, queueItemViews(items)); err != nil {
					return err
				}
			} else {
				renderPlan(cmd, len(entries), items)
			}
			if !enqueue || len(items) == 0 {
				return nil
			}
			if err := client.Enqueue(cmd.Context(), items); err != nil {
				return err
			}
			if !asJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d files\n", len(items))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tracks, "tracks", 0, "Expected track count (0 when unknown)")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "Expected track title, repeat in track order")
	cmd.Flags().IntVar(&minBitrate, "min-bitrate", 0, "Minimum lossy bitrate in kbps (default from config)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Submit the queue to slskd")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func queueItemViews(items []queuebuild.QueueItem) []queueItemView {
	out := make([]queueItemView, 0, len(items))
	for _, item := range items {
		out = append(out, queueItemView{
			Track:  item.AssignedTrackNumber,
			Owner:  item.Owner,
			Remote: item.RemoteFileName,
			Local:  item.LocalFileName,
			Size:   item.SizeBytes,
		})
	}
	return out
}

func renderPlan(cmd *cobra.Command, found int, items []queuebuild.QueueItem) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Search returned %d files\n", found)
	if len(items) == 0 {
		fmt.Fprintln(stdout, "No usable audio files")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		track := "-"
		if item.AssignedTrackNumber != nil {
			track = strconv.Itoa(*item.AssignedTrackNumber)
		}
		rows = append(rows, []string{
			track,
			item.LocalFileName,
			item.Owner,
			formatSize(item.SizeBytes),
			lastSegment(item.RemoteFileName),
		})
	}
	fmt.Fprint(stdout, renderTable(
		[]string{"Track", "Local name", "Owner", "Size", "Remote file"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
		0, 50, 20, 0, 50,
	))
}

func lastSegment(remote string) string {
	remote = strings.ReplaceAll(remote, "\\", "/")
	if i := strings.LastIndex(remote, "/"); i >= 0 {
		return remote[i+1:]
	}
	return remote
}
