package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeProber(goos string, bins map[string]string, env map[string]string) Prober {
	return Prober{
		GOOS: goos,
		LookPath: func(file string) (string, error) {
			if p, ok := bins[file]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
		Getenv: func(key string) string { return env[key] },
	}
}

func TestProbeLinux(t *testing.T) {
	tests := []struct {
		name   string
		bins   map[string]string
		env    map[string]string
		picker Availability
		mmdc   Availability
	}{
		{name: "headless", bins: map[string]string{"zenity": "/usr/bin/zenity"}, picker: Unavailable, mmdc: Unavailable},
		{name: "x11 without dialog tool", env: map[string]string{"DISPLAY": ":0"}, picker: Unavailable, mmdc: Unavailable},
		{name: "x11 with zenity", bins: map[string]string{"zenity": "/usr/bin/zenity"}, env: map[string]string{"DISPLAY": ":0"}, picker: Available, mmdc: Unavailable},
		{name: "wayland with qarma and mmdc", bins: map[string]string{"qarma": "/usr/bin/qarma", "mmdc": "/usr/local/bin/mmdc"}, env: map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, picker: Available, mmdc: Available},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fakeProber("linux", tt.bins, tt.env).Probe("mmdc")
			assert.Equal(t, tt.picker, s.FilePicker)
			assert.Equal(t, tt.mmdc, s.LocalMermaid)
		})
	}
}

func TestProbeOtherPlatforms(t *testing.T) {
	assert.Equal(t, Available, fakeProber("windows", nil, nil).Probe("").FilePicker)
	assert.Equal(t, Unavailable, fakeProber("darwin", nil, nil).Probe("").FilePicker)
	assert.Equal(t, Available, fakeProber("darwin", map[string]string{"osascript": "/usr/bin/osascript"}, nil).Probe("").FilePicker)
}

func TestProbeRecordsMMDCPath(t *testing.T) {
	s := fakeProber("linux", map[string]string{"mmdc": "/opt/mmdc"}, nil).Probe("mmdc")
	assert.True(t, s.LocalMermaid.OK())
	assert.Equal(t, "/opt/mmdc", s.MMDCPath)

	s = fakeProber("linux", map[string]string{"mmdc": "/opt/mmdc"}, nil).Probe("")
	assert.False(t, s.LocalMermaid.OK())
	assert.Equal(t, "unavailable", s.LocalMermaid.String())
}
