package render

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Drawio renders graph-XML by delegating to the hosted diagrams.net viewer.
// The document travels in the URL fragment, so nothing is uploaded.
type Drawio struct {
	ViewerURL string
	EditorURL string
}

// NewDrawio returns a Drawio adapter for the given viewer and editor origins.
func NewDrawio(viewerURL, editorURL string) *Drawio {
	return &Drawio{ViewerURL: viewerURL, EditorURL: editorURL}
}

func (d *Drawio) Name() string { return "drawio" }

// Render checks that the document is well-formed draw.io XML and builds the
// viewer URL. The editor escape hatch is set even when the check fails.
func (d *Drawio) Render(_ context.Context, source string) Outcome {
	if strings.TrimSpace(source) == "" {
		return nothingToDisplay()
	}

	encoded, err := EncodeDrawio(source)
	if err != nil {
		return failed(fmt.Sprintf("Could not encode diagram: %v", err), "")
	}
	editor := drawioURL(d.EditorURL, encoded)

	if err := checkDrawioXML(source); err != nil {
		return failed(err.Error(), editor)
	}

	return Outcome{
		Status:         StatusReady,
		ViewerURL:      drawioURL(d.viewerBase(), encoded),
		EscapeHatchURL: editor,
	}
}

func (d *Drawio) viewerBase() string {
	base := d.ViewerURL
	if strings.Contains(base, "?") {
		return base + "&lightbox=1&nav=1"
	}
	return base + "?lightbox=1&nav=1"
}

// checkDrawioXML requires a well-formed document rooted at mxfile or mxGraphModel.
func checkDrawioXML(source string) error {
	dec := xml.NewDecoder(strings.NewReader(source))
	root := ""
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("Invalid diagram XML: %v", err)
		}
		if se, ok := tok.(xml.StartElement); ok && root == "" {
			root = se.Name.Local
		}
	}
	switch root {
	case "mxfile", "mxGraphModel":
		return nil
	case "":
		return fmt.Errorf("Invalid diagram XML: no root element")
	default:
		return fmt.Errorf("Invalid diagram XML: unexpected root element <%s>", root)
	}
}
