package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/daemon"
	"harvest/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the releases harvest expects in the library",
	}
	libraryCmd.AddCommand(newLibraryAddCommand(ctx))
	libraryCmd.AddCommand(newLibraryMissingCommand(ctx))
	libraryCmd.AddCommand(newLibraryShowCommand(ctx))
	return libraryCmd
}

func newLibraryAddCommand(ctx *commandContext) *cobra.Command {
	var year int
	var tracks int
	var titles []string

	cmd := &cobra.Command{
		Use:   "add ARTIST TITLE",
		Short: "Register an expected release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tracks <= 0 && len(titles) == 0 {
				return errors.New("either --tracks or --title is required")
			}
			return ctx.withLibrary(func(store *library.Store) error {
				rel, err := store.AddRelease(cmd.Context(), library.NewRelease{
					Artist:      args[0],
					Title:       args[1],
					Year:        year,
					TrackCount:  tracks,
					TrackTitles: titles,
				})
				if errors.Is(err, library.ErrReleaseExists) {
					return fmt.Errorf("%s already has %q", args[0], library.FolderName(args[1], year))
				}
				if err != nil {
					return err
				}
				cfg := ctx.configValue()
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s - %s (%d tracks)\n", rel.Artist, rel.FolderName, rel.TrackCount)
				fmt.Fprintf(cmd.OutOrStdout(), "Target: %s\n", library.ReleaseDir(cfg.Paths.LibraryDir, rel))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year, appended to the folder name")
	cmd.Flags().IntVar(&tracks, "tracks", 0, "Track count when titles are unknown")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "Track title, repeat in track order")
	return cmd
}

func newLibraryMissingCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List releases that still lack audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(store *library.Store) error {
				releases, err := store.GetIncompleteReleases(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := daemon.ReleaseViews(releases)
				if asJSON {
					return writeJSON(cmd, views)
				}
				renderReleases(cmd, views)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum releases to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newLibraryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ARTIST RELEASE",
		Short: "Show per-track availability for one release",
		Long:  "RELEASE matches either the release title or its folder name, case-insensitively.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(store *library.Store) error {
				releases, err := store.ListReleases(cmd.Context())
				if err != nil {
					return err
				}
				rel, ok := findRelease(releases, args[0], args[1])
				if !ok {
					return fmt.Errorf("no release %q by %q", args[1], args[0])
				}
				tracks, err := store.GetTrackAudioAvailability(cmd.Context(), rel.ArtistID, rel.FolderName)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "%s - %s\n", rel.Artist, rel.FolderName)
				rows := make([][]string, 0, len(tracks))
				for _, t := range tracks {
					path := t.Path
					if path == "" {
						path = "-"
					}
					rows = append(rows, []string{strconv.Itoa(t.Number), t.Title, yesNo(t.Available), path})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"#", "Title", "Available", "File"},
					rows,
					[]columnAlignment{alignRight},
					0, 50, 0, 60,
				))
				return nil
			})
		},
	}
}

func findRelease(releases []library.Release, artist, name string) (library.Release, bool) {
	for _, r := range releases {
		if !strings.EqualFold(r.Artist, strings.TrimSpace(artist)) {
			continue
		}
		if strings.EqualFold(r.Title, strings.TrimSpace(name)) || strings.EqualFold(r.FolderName, strings.TrimSpace(name)) {
			return r, true
		}
	}
	return library.Release{}, false
}

func renderReleases(cmd *cobra.Command, views []daemon.ReleaseView) {
	stdout := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(stdout, "Library is complete")
		return
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Artist, v.Folder, strconv.Itoa(v.TrackCount), strconv.Itoa(v.Missing)})
	}
	fmt.Fprint(stdout, renderTable(
		[]string{"Artist", "Release", "Tracks", "Missing"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
}
