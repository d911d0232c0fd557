package errcodes

import (
	"fmt"
	"net/http"
)

// Error is an error meant to reach the client as-is.
type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode && te.Code == err.Code
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{http.StatusNotFound, resource + " not found.", "not_found"}
}

// MalformedArchive is returned when a book file's structure can't be read at
// all, such as a broken zip or an EPUB without a package document.
func MalformedArchive() error {
	return &Error{http.StatusUnprocessableEntity, "The file could not be opened.", "malformed_archive"}
}

// UnsupportedContent is returned when a file opened but yielded nothing to
// read.
func UnsupportedContent() error {
	return &Error{http.StatusUnprocessableEntity, "The file may be empty or unsupported.", "unsupported_content"}
}

func UnsupportedFormat(name string) error {
	return &Error{http.StatusUnsupportedMediaType, fmt.Sprintf("%q is not an EPUB or text file.", name), "unsupported_format"}
}

func PayloadTooLarge(limit string) error {
	return &Error{http.StatusRequestEntityTooLarge, "Files may be at most " + limit + ".", "payload_too_large"}
}

func UnsupportedMediaType() error {
	return &Error{http.StatusUnsupportedMediaType, "Unsupported Media Type", "unsupported_media_type"}
}

func UnknownParameter(param string) error {
	return &Error{http.StatusUnprocessableEntity, fmt.Sprintf("Unknown Parameter %q", param), "unknown_parameter"}
}

func ValidationTypeError(msg string) error {
	return &Error{http.StatusUnprocessableEntity, msg, "validation_type_error"}
}

func ValidationError(msg string) error {
	return &Error{http.StatusUnprocessableEntity, msg, "validation_error"}
}

func MalformedPayload() error {
	return &Error{http.StatusBadRequest, "Malformed Payload", "malformed_payload"}
}

func EmptyRequestBody() error {
	return &Error{http.StatusBadRequest, "Request body can't be empty.", "empty_request_body"}
}
