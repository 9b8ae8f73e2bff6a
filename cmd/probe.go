package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/probe"
	"github.com/smazurov/streamforge/internal/types"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd(options OptionsFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Classify a source and show its rendition ladder",
		Long: `Runs ffprobe on the source, classifies dynamic range, audio layouts and subtitle ` +
			`dispositions, and prints the renditions a run would produce.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options.resolve()
			prober := probe.New(NewRunner(), opts.ToolsFfprobe, logging.GetLogger("probe"))

			desc, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			l := ladder.Build(desc.Video)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Source *types.MediaDescriptor `json:"source"`
					Ladder []string               `json:"ladder"`
				}{desc, ladder.Qualities(l)})
			}
			printDescriptor(os.Stdout, desc, l)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func printDescriptor(w io.Writer, desc *types.MediaDescriptor, l []ladder.Rendition) {
	v := desc.Video
	fmt.Fprintf(w, "Source:    %s\n", desc.Path)
	fmt.Fprintf(w, "Container: %s, %.1fs, %d bytes\n", desc.FormatName, desc.Duration, desc.Size)
	fmt.Fprintf(w, "Video:     %dx%d %s %s @ %.3f fps (%s)\n", v.Width, v.Height, v.Codec, v.PixelFormat, v.FrameRate, v.DynamicRange)

	for _, a := range desc.Audio {
		fmt.Fprintf(w, "Audio %d:   %s %s %d ch (%s) %s\n", a.Index, a.Language, a.Codec, a.Channels, a.Layout, a.Title)
	}
	for _, s := range desc.Subtitles {
		note := ""
		if s.Bitmap {
			note = " [image-based, not extracted]"
		}
		fmt.Fprintf(w, "Subtitle %d: %s %s (%s)%s\n", s.Index, s.Language, s.Codec, s.Kind, note)
	}

	fmt.Fprintln(w, "Ladder:")
	for _, r := range l {
		mode := "SDR"
		if v.DynamicRange.IsHDR() {
			mode = "tone-map to SDR"
			if r.PreserveHDR {
				mode = "preserve HDR"
			}
		}
		fmt.Fprintf(w, "  %-6s %dx%d  vp9 %dk  hevc %dk  %s\n",
			r.Quality, r.Width, r.Height, r.VP9Bitrate, r.HEVCBitrate, mode)
	}
	if len(l) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
}
