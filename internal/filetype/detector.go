package filetype

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// AllowedExtensions lists the upload extensions accepted by the UI.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

var ErrEmpty = errors.New("empty file")

// Info contains detected file type information
type Info struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// AllowedExtension reports whether name ends in one of AllowedExtensions.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// DetectBytes detects the actual file type using magic bytes, not filename
func (d *Detector) DetectBytes(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	mtype := mimetype.Detect(data)
	info := &Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("supported", info.Supported).Msg("detected upload type")
	return info, nil
}

// classify marks only JPEG and PNG as supported.
func (d *Detector) classify(info *Info) {
	switch {
	case mimetype.EqualsAny(info.MIMEType, "image/jpeg"):
		info.Supported = true
		info.Description = "JPEG image"
	case mimetype.EqualsAny(info.MIMEType, "image/png"):
		info.Supported = true
		info.Description = "PNG image"
	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Description = fmt.Sprintf("Unsupported image type: %s", info.MIMEType)
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}
