package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/sketchflow/internal/artifact"
	"github.com/fpang/sketchflow/internal/capability"
	"github.com/fpang/sketchflow/internal/cli"
	"github.com/fpang/sketchflow/internal/conversion"
	"github.com/fpang/sketchflow/internal/redirect"
	"github.com/fpang/sketchflow/internal/render"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// convert flags
var (
	fileFlag    string
	formatFlag  string
	notesFlag   string
	timeoutFlag time.Duration
	outFlag     string
	svgFlag     string
	noPreview   bool
	loginFlag   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a sketch image into diagram source",
	Long: `Convert uploads a JPEG, PNG, or WebP sketch (up to 10 MB) and prints the
generated diagram source. The source is previewed with the matching renderer:
Mermaid through mmdc or mermaid.ink, draw.io through the diagrams.net viewer,
and PlantUML through the configured PlantUML server.

Without --file, a native file dialog is opened when one is available;
otherwise the path is read from the terminal.

Examples:
  sketchflow convert -f whiteboard.jpg
  sketchflow convert -f flow.png --format drawio --out ./diagrams/
  sketchflow convert -f seq.webp --format plantuml --svg seq.svg
  sketchflow convert -f notes.jpg --login   # sign in afterwards, keeping the result`,
	Args: cobra.NoArgs,
	Run:  runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Sketch image to convert")
	convertCmd.Flags().StringVar(&formatFlag, "format", "mermaid", "Output format: mermaid, drawio, or plantuml")
	convertCmd.Flags().StringVarP(&notesFlag, "notes", "n", "", "Context for the converter (e.g. \"left to right, AWS icons\")")
	convertCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Request timeout (default SKETCHFLOW_CONVERT_TIMEOUT or 300s)")
	convertCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Write source to a file, directory, or s3://bucket/prefix instead of stdout")
	convertCmd.Flags().StringVar(&svgFlag, "svg", "", "Write the rendered preview SVG to this path")
	convertCmd.Flags().BoolVar(&noPreview, "no-preview", false, "Skip rendering the preview")
	convertCmd.Flags().BoolVar(&loginFlag, "login", false, "Sign in after converting; the result survives the sign-in redirect")
}

func runConvert(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx, "convert")
	defer a.close()

	format, err := conversion.ParseFormat(formatFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --format")
	}

	path, err := chooseSketch(ctx, a.caps)
	if err != nil {
		log.Fatal().Err(err).Msg("No sketch selected")
	}

	art, err := artifact.FromFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.DescribeError(err))
		os.Exit(1)
	}
	logArtifactInfo(art)

	ctl := a.controller(timeoutFlag)
	unsubscribe := ctl.Subscribe(func(ev conversion.StateChange) {
		log.Debug().Str("tab", a.tabID).Str("from", ev.From.String()).Str("to", ev.To.String()).Msg("Session state changed")
	})
	defer unsubscribe()

	if err := ctl.SelectArtifact(art); err != nil {
		fmt.Fprintln(os.Stderr, cli.DescribeError(err))
		os.Exit(1)
	}
	if err := ctl.UpdateFormat(format); err != nil {
		log.Fatal().Err(err).Msg("Failed to set format")
	}
	if err := ctl.UpdateNotes(notesFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to set notes")
	}

	// Ctrl-C cancels the request rather than killing the process.
	go func() {
		<-ctx.Done()
		ctl.Cancel()
	}()

	fmt.Fprintf(os.Stderr, "Converting %s (%s) to %s...\n", art.Name, cli.FormatBytes(art.Size()), format.WireName())
	start := time.Now()
	if err := ctl.Submit(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.DescribeError(err))
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Converted in %s\n", cli.FormatDurationShort(time.Since(start)))

	session := ctl.Session()
	if loginFlag {
		session = loginKeepingResult(a, ctl, session)
	}

	emitResult(context.Background(), a, session)

	if a.ads.Allowed() {
		log.Info().Msg("Ad slot would load")
	} else {
		log.Debug().Str("reason", a.ads.Reason()).Msg("Ad slot skipped")
	}
}

// chooseSketch resolves the input path from --file, the native picker, or a prompt.
func chooseSketch(ctx context.Context, caps capability.Set) (string, error) {
	path := fileFlag
	if path == "" && caps.FilePicker.OK() {
		picked, err := capability.PickImage(ctx)
		switch {
		case err == nil:
			path = picked
		case errors.Is(err, capability.ErrPickerCanceled):
			return "", err
		default:
			log.Warn().Err(err).Msg("File picker failed, falling back to prompt")
		}
	}
	if path == "" {
		path = cli.PromptForSketch(os.Stdin, os.Stderr)
	}
	return cli.ResolveSketchPath(path)
}

func logArtifactInfo(art *artifact.Artifact) {
	info := artifact.Inspect(art)
	evt := log.Debug().Str("format", info.Format).Int("width", info.Width).Int("height", info.Height)
	if info.CameraModel != "" {
		evt = evt.Str("camera", strings.TrimSpace(info.CameraMake+" "+info.CameraModel))
	}
	evt.Msg("Sketch image")
}

// loginKeepingResult runs the sign-in flow with the completed result saved in
// the redirect store, then restores it into a fresh controller as if the
// process had been re-entered through the callback.
func loginKeepingResult(a *app, ctl *conversion.Controller, session conversion.Session) conversion.Session {
	ctx := context.Background()

	snap, err := ctl.Snapshot()
	if err != nil {
		log.Warn().Err(err).Msg("Nothing to keep across sign-in")
		return session
	}
	if err := redirect.BeforeLeave(ctx, a.store, "/result", snap); err != nil {
		log.Warn().Err(err).Msg("Failed to save result before sign-in")
		return session
	}

	if _, err := runLoginFlow(ctx, a, loginProviderFlag); err != nil {
		log.Warn().Err(err).Msg("Sign-in failed; the conversion result is unaffected")
	}

	restored, err := redirect.TakeSnapshot(ctx, a.store)
	if err != nil || restored == nil {
		log.Warn().Err(err).Msg("Result snapshot missing after sign-in, using in-process result")
		return session
	}
	fresh := a.controller(0)
	if err := fresh.Restore(restored); err != nil {
		log.Warn().Err(err).Msg("Failed to restore result after sign-in")
		return session
	}
	return fresh.Session()
}

// emitResult writes the source and renders the preview. Preview problems are
// reported but never change the exit status.
func emitResult(ctx context.Context, a *app, s conversion.Session) {
	name := "diagram"
	if s.ResultJobID != "" {
		name = s.ResultJobID
	}
	name += s.Format.FileExtension()

	if outFlag != "" {
		loc, err := a.exporter.Write(ctx, outFlag, name, []byte(s.ResultSource), contentType(s.Format))
		if err != nil {
			log.Fatal().Err(err).Str("dest", outFlag).Msg("Failed to export diagram source")
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", loc)
	} else {
		fmt.Println(s.ResultSource)
	}
	if s.ResultJobID != "" {
		fmt.Fprintf(os.Stderr, "Job ID: %s\n", s.ResultJobID)
	}

	if noPreview {
		return
	}
	adapter, err := render.ForFormat(s.Format, a.renderDeps())
	if err != nil {
		log.Warn().Err(err).Msg("No preview for format")
		return
	}
	out, _ := render.NewHost(adapter).Render(ctx, s.ResultSource)
	reportPreview(out)
}

func reportPreview(out render.Outcome) {
	switch out.Status {
	case render.StatusReady:
		if out.ViewerURL != "" {
			fmt.Fprintf(os.Stderr, "Preview: %s\n", out.ViewerURL)
		}
		if svgFlag != "" && len(out.SVG) > 0 {
			if err := os.MkdirAll(filepath.Dir(svgFlag), 0o755); err != nil {
				log.Warn().Err(err).Msg("Failed to create preview directory")
			} else if err := os.WriteFile(svgFlag, out.SVG, 0o644); err != nil {
				log.Warn().Err(err).Msg("Failed to write preview")
			} else {
				fmt.Fprintf(os.Stderr, "Preview SVG: %s\n", svgFlag)
			}
		}
	case render.StatusError:
		fmt.Fprintf(os.Stderr, "%s: %s\n", render.FallbackMessage, out.Message)
	}
	if out.EscapeHatchURL != "" {
		fmt.Fprintf(os.Stderr, "Open in editor: %s\n", out.EscapeHatchURL)
	}
}

func contentType(f conversion.Format) string {
	if f == conversion.FormatGraphXML {
		return "application/xml"
	}
	return "text/plain; charset=utf-8"
}
