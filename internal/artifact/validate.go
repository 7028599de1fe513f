package artifact

import "fmt"

// ValidationErrorKind categorizes an artifact rejection.
type ValidationErrorKind int

const (
	// KindUnsupportedType indicates the media type is not on the allow-list.
	KindUnsupportedType ValidationErrorKind = iota
	// KindTooLarge indicates the payload exceeds MaxSize.
	KindTooLarge
	// KindEmpty indicates a zero-length payload.
	KindEmpty
)

func (k ValidationErrorKind) String() string {
	switch k {
	case KindUnsupportedType:
		return "unsupported_type"
	case KindTooLarge:
		return "too_large"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ValidationError is returned when an artifact is rejected. The session that
// received it is left unchanged.
type ValidationError struct {
	Kind     ValidationErrorKind
	MIMEType string
	Size     int64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindTooLarge:
		return fmt.Sprintf("file too large: %d bytes, maximum size is %d MB", e.Size, MaxSize/(1024*1024))
	case KindEmpty:
		return "file is empty"
	default:
		t := e.MIMEType
		if t == "" {
			t = "unknown"
		}
		return fmt.Sprintf("invalid file type %s: allowed types are JPEG, PNG, WebP", t)
	}
}

// Validate checks type and size constraints.
func Validate(a *Artifact) error {
	if a == nil || len(a.Data) == 0 {
		return &ValidationError{Kind: KindEmpty}
	}
	if a.Size() > MaxSize {
		return &ValidationError{Kind: KindTooLarge, MIMEType: a.MIMEType, Size: a.Size()}
	}
	if !AllowedTypes[normalizeType(a.MIMEType)] {
		return &ValidationError{Kind: KindUnsupportedType, MIMEType: a.MIMEType, Size: a.Size()}
	}
	return nil
}
