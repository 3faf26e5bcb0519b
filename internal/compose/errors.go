package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed indicates that a document field has a shape the rewriter does not recognize.
	ErrMalformed = errors.New("malformed compose document")
	// ErrInvalidToken indicates that a rewrite token cannot be used in Docker object names.
	ErrInvalidToken = errors.New("invalid rewrite token")
	// ErrUnknownService indicates that a service is not declared by the document.
	ErrUnknownService = errors.New("unknown service")
	// ErrInvalidProject indicates that the document is rejected by the Compose loader.
	ErrInvalidProject = errors.New("invalid compose project")
)

// FieldError describes a malformed field of a compose document.
type FieldError struct {
	// Path locates the field, e.g. "services.web.volumes[1]".
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Reason
	}

	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Is makes every FieldError match ErrMalformed.
func (e *FieldError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(path, format string, args ...any) *FieldError {
	return &FieldError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
