package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/logging"
)

// CreateDetectCmd creates the detect command.
func CreateDetectCmd(options OptionsFunc) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List usable encoder backends",
		Long: `Queries ffmpeg for hardware accelerators and compiled-in encoders and prints the ` +
			`backends a run can use, in priority order, with the backend "auto" would pick. ` +
			`With --verify every hardware backend must also pass a short test encode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options.resolve()
			detector := encoders.NewDetector(NewRunner(), opts.ToolsFfmpeg, logging.GetLogger("encoders"),
				encoders.WithVerify(verify))

			backends, err := detector.Detect(cmd.Context())
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tHEVC\tVP9\tHW VP9\t10-BIT HEVC\t10-BIT VP9")
			for _, b := range backends {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%v\n",
					b.Method, b.HEVCEncoder, b.VP9Encoder, b.HardwareVP9, b.TenBitHEVC, b.TenBitVP9)
			}
			if flushErr := w.Flush(); flushErr != nil {
				return flushErr
			}

			if pair, ok := encoders.BuildHybrid(backends); ok {
				fmt.Printf("\nHybrid: HEVC on %s, VP9 on %s\n", pair.HEVC.Label, pair.VP9.Label)
			}
			sel, selErr := encoders.Select(backends, opts.Backend)
			if selErr != nil {
				return selErr
			}
			fmt.Printf("Selected (%s): %s\n", opts.Backend, sel)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Test-encode with each hardware backend")
	return cmd
}
