package hxselect

import (
	"context"
	"errors"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/pthm/hxselect/widget"
)

// Sentinel errors for component operations.
var (
	ErrNotFound         = errors.New("hxselect: resource not found")
	ErrDecryptFailed    = errors.New("hxselect: parameter decryption failed")
	ErrSignatureInvalid = errors.New("hxselect: signature verification failed")
	ErrInvalidFormat    = errors.New("hxselect: invalid parameter format")
	ErrHydrationFailed  = errors.New("hxselect: hydration failed")
	ErrMethodNotAllowed = errors.New("hxselect: method not allowed")
)

// ErrSearchConfig is returned when a field has neither a search endpoint
// nor a search callback.
var ErrSearchConfig = widget.ErrSearchConfig

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsBadRequest reports errors caused by the request rather than the server:
// tampered props, malformed payloads and selection operations the field's
// mode does not allow.
func IsBadRequest(err error) bool {
	switch {
	case IsDecryptionError(err),
		errors.Is(err, ErrInvalidFormat),
		errors.Is(err, widget.ErrInvalidPayload),
		errors.Is(err, widget.ErrInvalidValue),
		errors.Is(err, widget.ErrNotMultiple),
		errors.Is(err, widget.ErrNotSortable):
		return true
	}
	return false
}

// ErrorComponent renders an inline error box.
func ErrorComponent(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, werr := io.WriteString(w, `<div class="hxselect-error" role="alert">Hydration error: `+
			html.EscapeString(err.Error())+`</div>`)
		return werr
	})
}
