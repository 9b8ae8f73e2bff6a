package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamforge/internal/store"
)

// CreateStatusCmd creates the status command.
func CreateStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <output-dir>",
		Short: "Show the run manifest of an output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}
			return printManifest(os.Stdout, m)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func printManifest(out io.Writer, m *store.Manifest) error {
	fmt.Fprintf(out, "Run:      %s (%s)\n", m.RunID, m.Status)
	fmt.Fprintf(out, "Input:    %s\n", m.Input)
	fmt.Fprintf(out, "Mode:     %s\n", m.Mode)
	fmt.Fprintf(out, "Started:  %s\n", m.StartedAt)
	if m.FinishedAt != "" {
		fmt.Fprintf(out, "Finished: %s\n", m.FinishedAt)
	}
	if m.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", m.Error)
	}
	if m.Source != nil {
		fmt.Fprintf(out, "Source:   %dx%d %s %s, %d audio, %d subtitle\n",
			m.Source.Width, m.Source.Height, m.Source.VideoCodec, m.Source.DynamicRange, m.Source.Audio, m.Source.Subtitles)
	}
	if m.Backends != nil {
		fmt.Fprintf(out, "Backends: hevc=%s vp9=%s\n", m.Backends.HEVC, m.Backends.VP9)
	}

	ids := make([]string, 0, len(m.Jobs))
	for id := range m.Jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nJOB\tBACKEND\tSTATUS\tDURATION\tERROR")
	for _, id := range ids {
		j := m.Jobs[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fs\t%s\n", id, j.Backend, j.Status, j.DurationSeconds, j.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTracks:   %d audio, %d subtitle\n", len(m.Audio), len(m.Subtitles))
	if p := m.Package; p != nil {
		if p.Error != "" {
			fmt.Fprintf(out, "Package:  failed: %s\n", p.Error)
		} else {
			fmt.Fprintf(out, "Package:  %d streams, %s\n", p.Streams, p.MasterPlaylist)
		}
	}
	return nil
}
