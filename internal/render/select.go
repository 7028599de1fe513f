package render

import (
	"fmt"
	"net/http"

	"github.com/fpang/sketchflow/internal/conversion"
)

// Deps carries the endpoints and clients the adapters need.
type Deps struct {
	HTTPClient      *http.Client
	PlantUMLServer  string
	DrawioViewerURL string
	DrawioEditorURL string
	MermaidLoader   DrawerLoader
}

// ForFormat returns the guarded adapter for f.
func ForFormat(f conversion.Format, deps Deps) (Adapter, error) {
	switch f {
	case conversion.FormatDiagramScript:
		return Guard(NewMermaid(deps.MermaidLoader)), nil
	case conversion.FormatGraphXML:
		return Guard(NewDrawio(deps.DrawioViewerURL, deps.DrawioEditorURL)), nil
	case conversion.FormatUMLScript:
		return Guard(NewPlantUML(deps.PlantUMLServer, deps.HTTPClient)), nil
	default:
		return nil, fmt.Errorf("no renderer for format %q", f)
	}
}
