// Command sketchflow converts hand-drawn sketches into diagram source through
// the SketchFlow conversion service and previews the result.
package main

import (
	"io"
	"os"

	"github.com/fpang/sketchflow/internal/logging"
	"github.com/fpang/sketchflow/internal/metrics"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Global flags
var (
	apiBaseFlag string
	metricsFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "sketchflow",
	Short: "Convert sketches into Mermaid, draw.io, or PlantUML diagrams",
	Long: `SketchFlow uploads a photo or scan of a hand-drawn diagram to the
conversion service and returns editable diagram source, with a rendered
preview or a link to open it in a hosted editor.

Examples:
  sketchflow convert --file whiteboard.jpg
  sketchflow convert -f flow.png --format drawio --out ./diagrams/
  sketchflow convert -f seq.webp --format plantuml --notes "login sequence"
  sketchflow login
  sketchflow fetch 3f2a9c --out s3://team-diagrams/exports`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		// stdout carries diagram source
		if metricsFlag {
			metrics.SetOutput(os.Stderr)
		} else {
			metrics.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseFlag, "api", "", "Conversion service origin (overrides SKETCHFLOW_API_BASE)")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Write EMF metric documents to stderr")

	rootCmd.AddCommand(convertCmd, loginCmd, logoutCmd, whoamiCmd, fetchCmd, encodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
