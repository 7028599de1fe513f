package artifact

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// Info is a best-effort description of an artifact's pixels and EXIF data.
// Zero values mean the field could not be determined.
type Info struct {
	Format      string
	Width       int
	Height      int
	CameraMake  string
	CameraModel string
	DateTaken   time.Time
}

// Inspect decodes the image header and, where present, EXIF metadata.
// Failures are logged at debug level and never reject the artifact.
func Inspect(a *Artifact) Info {
	var info Info
	if a == nil || len(a.Data) == 0 {
		return info
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		log.Debug().Err(err).Str("mime_type", a.MIMEType).Msg("Could not decode image header")
	} else {
		info.Format = format
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	exifData, err := imagemeta.Decode(bytes.NewReader(a.Data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in artifact")
		return info
	}
	info.CameraMake = strings.TrimSpace(exifData.Make)
	info.CameraModel = strings.TrimSpace(exifData.Model)
	if t := exifData.DateTimeOriginal(); !t.IsZero() {
		info.DateTaken = t
	}
	return info
}
