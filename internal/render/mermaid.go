package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Drawer turns validated Mermaid source into an SVG document.
type Drawer interface {
	Draw(ctx context.Context, source string) ([]byte, error)
}

// DrawerLoader builds the Drawer on first use.
type DrawerLoader func() (Drawer, error)

// Mermaid renders diagram-script source. The drawing backend is loaded on
// the first non-blank render and reused afterwards.
type Mermaid struct {
	load DrawerLoader

	once    sync.Once
	drawer  Drawer
	loadErr error
}

// NewMermaid returns a Mermaid adapter that loads its drawer through load.
func NewMermaid(load DrawerLoader) *Mermaid {
	return &Mermaid{load: load}
}

func (m *Mermaid) Name() string { return "mermaid" }

// Render validates the header locally and then draws. Only the diagram
// declaration is checked here; full parsing is left to the drawer, whose
// error text becomes the message. Parse failures carry no escape hatch.
func (m *Mermaid) Render(ctx context.Context, source string) Outcome {
	if strings.TrimSpace(source) == "" {
		return nothingToDisplay()
	}
	if _, err := ParseMermaidHeader(source); err != nil {
		return failed(err.Error(), "")
	}

	drawer, err := m.loadDrawer()
	if err != nil {
		return failed(fmt.Sprintf("Diagram renderer unavailable: %v", err), "")
	}
	svg, err := drawer.Draw(ctx, source)
	if err != nil {
		return failed(err.Error(), "")
	}
	if len(bytes.TrimSpace(svg)) == 0 {
		return failed("Diagram renderer returned no output", "")
	}
	return Outcome{Status: StatusReady, SVG: svg}
}

func (m *Mermaid) loadDrawer() (Drawer, error) {
	m.once.Do(func() {
		if m.load == nil {
			m.loadErr = fmt.Errorf("no drawer configured")
			return
		}
		m.drawer, m.loadErr = m.load()
		if m.loadErr == nil {
			log.Debug().Str("drawer", fmt.Sprintf("%T", m.drawer)).Msg("Mermaid drawer loaded")
		}
	})
	return m.drawer, m.loadErr
}

// MermaidLoader picks the local mmdc binary when it is available and the
// remote render service otherwise.
func MermaidLoader(localAvailable bool, bin string, timeout time.Duration, remoteURL string, client *http.Client) DrawerLoader {
	return func() (Drawer, error) {
		if localAvailable {
			return &CLIDrawer{Bin: bin, Timeout: timeout}, nil
		}
		if remoteURL == "" {
			return nil, fmt.Errorf("mmdc not installed and no remote render URL configured")
		}
		return &RemoteDrawer{BaseURL: strings.TrimRight(remoteURL, "/"), Client: client}, nil
	}
}

// CLIDrawer runs mermaid-cli (mmdc).
type CLIDrawer struct {
	Bin     string
	Timeout time.Duration
}

func (d *CLIDrawer) Draw(ctx context.Context, source string) ([]byte, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "sketchflow-mmdc-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(in, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write diagram source: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Bin, "-i", in, "-o", out, "-q")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("mmdc timed out: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s", firstLine(msg))
		}
		return nil, fmt.Errorf("mmdc failed: %w", err)
	}
	return os.ReadFile(out)
}

// RemoteDrawer fetches SVG from a mermaid.ink compatible service.
type RemoteDrawer struct {
	BaseURL string
	Client  *http.Client
}

// URL returns the SVG endpoint for source.
func (d *RemoteDrawer) URL(source string) string {
	return d.BaseURL + "/svg/" + base64.URLEncoding.EncodeToString([]byte(source))
}

func (d *RemoteDrawer) Draw(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL(source), nil)
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("render service rejected diagram: %s", firstLine(msg))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/svg") {
		return nil, fmt.Errorf("render service returned %q, expected SVG", ct)
	}
	return body, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
