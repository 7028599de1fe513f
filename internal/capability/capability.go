// Package capability answers, once at startup, which optional local
// facilities this process can use. Callers receive the result and branch on
// it instead of probing the environment themselves.
package capability

import (
	"os"
	"os/exec"
	"runtime"
)

// Availability is the answer to one capability query.
type Availability int

const (
	Unavailable Availability = iota
	Available
)

func (a Availability) String() string {
	if a == Available {
		return "available"
	}
	return "unavailable"
}

// OK reports whether the capability can be used.
func (a Availability) OK() bool { return a == Available }

// Set is the probed capabilities.
type Set struct {
	// FilePicker is a native file dialog.
	FilePicker Availability
	// LocalMermaid is the mermaid-cli binary.
	LocalMermaid Availability
	// MMDCPath is the resolved mmdc path when LocalMermaid is Available.
	MMDCPath string
}

// Prober holds the environment lookups a probe uses.
type Prober struct {
	GOOS     string
	LookPath func(file string) (string, error)
	Getenv   func(key string) string
}

// DefaultProber inspects the running process.
func DefaultProber() Prober {
	return Prober{GOOS: runtime.GOOS, LookPath: exec.LookPath, Getenv: os.Getenv}
}

// Probe inspects the running process with DefaultProber.
func Probe(mmdcBin string) Set {
	return DefaultProber().Probe(mmdcBin)
}

// Probe runs every query once.
func (p Prober) Probe(mmdcBin string) Set {
	var s Set
	if p.filePicker() {
		s.FilePicker = Available
	}
	if mmdcBin != "" {
		if path, err := p.LookPath(mmdcBin); err == nil {
			s.LocalMermaid = Available
			s.MMDCPath = path
		}
	}
	return s
}

// filePicker mirrors the backends zenity drives on each platform.
func (p Prober) filePicker() bool {
	switch p.GOOS {
	case "windows":
		return true
	case "darwin":
		return p.has("osascript")
	default:
		if p.Getenv("DISPLAY") == "" && p.Getenv("WAYLAND_DISPLAY") == "" {
			return false
		}
		return p.has("zenity") || p.has("qarma") || p.has("matedialog")
	}
}

func (p Prober) has(bin string) bool {
	_, err := p.LookPath(bin)
	return err == nil
}
