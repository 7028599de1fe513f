package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fpang/sketchflow/internal/conversion"
	"github.com/fpang/sketchflow/internal/render"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var encodeFormatFlag string

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Print a shareable preview URL for local diagram source",
	Long: `Encode renders nothing locally. It prints the URL the preview would use:
the diagrams.net viewer and editor for draw.io XML, the PlantUML server image
for PlantUML, and the mermaid.ink SVG for Mermaid.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, err := conversion.ParseFormat(encodeFormatFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --format")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("Failed to read source")
		}
		a := newApp(context.Background(), "encode")
		defer a.close()

		source := string(data)
		switch format {
		case conversion.FormatGraphXML:
			out := render.NewDrawio(a.cfg.DrawioViewerURL, a.cfg.DrawioEditorURL).Render(context.Background(), source)
			if out.Status == render.StatusError {
				log.Fatal().Str("reason", out.Message).Msg("Invalid draw.io document")
			}
			fmt.Println("Viewer:", out.ViewerURL)
			fmt.Println("Editor:", out.EscapeHatchURL)
		case conversion.FormatUMLScript:
			u, err := render.NewPlantUML(a.cfg.PlantUMLServer, a.http).ImageURL(source)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to encode PlantUML")
			}
			fmt.Println(u)
		default:
			if _, err := render.ParseMermaidHeader(source); err != nil {
				log.Fatal().Err(err).Msg("Invalid Mermaid source")
			}
			fmt.Println((&render.RemoteDrawer{BaseURL: a.cfg.MermaidRender}).URL(source))
		}
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeFormatFlag, "format", "mermaid", "Source format: mermaid, drawio, or plantuml")
}
