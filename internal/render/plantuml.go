package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PlantUML renders uml-script source through a PlantUML server.
type PlantUML struct {
	Server string
	Client *http.Client
}

// NewPlantUML returns a PlantUML adapter for server, e.g.
// https://www.plantuml.com/plantuml.
func NewPlantUML(server string, client *http.Client) *PlantUML {
	if client == nil {
		client = http.DefaultClient
	}
	return &PlantUML{Server: strings.TrimRight(server, "/"), Client: client}
}

func (p *PlantUML) Name() string { return "plantuml" }

// Render encodes the (wrapped) source into an image URL and fetches it. Only
// a failed image load yields an Error; the image URL is always the escape hatch.
func (p *PlantUML) Render(ctx context.Context, source string) Outcome {
	if strings.TrimSpace(source) == "" {
		return nothingToDisplay()
	}

	imageURL, err := p.ImageURL(source)
	if err != nil {
		return failed(fmt.Sprintf("Could not encode diagram: %v", err), "")
	}

	svg, err := p.fetch(ctx, imageURL)
	if err != nil {
		return failed(err.Error(), imageURL)
	}
	return Outcome{Status: StatusReady, SVG: svg, ImageURL: imageURL, EscapeHatchURL: imageURL}
}

// ImageURL returns the SVG URL for source.
func (p *PlantUML) ImageURL(source string) (string, error) {
	encoded, err := EncodePlantUML(WrapUML(source))
	if err != nil {
		return "", err
	}
	return p.Server + "/svg/" + encoded, nil
}

func (p *PlantUML) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Diagram image failed to load: %v", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Diagram image failed to load: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Diagram image failed to load: %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("Diagram image failed to load: unexpected content type %q", ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("Diagram image failed to load: %v", err)
	}
	return body, nil
}

// WrapUML adds @startuml/@enduml when the source has no @start line.
func WrapUML(source string) string {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "@start") {
		return trimmed
	}
	return "@startuml\n" + trimmed + "\n@enduml"
}
