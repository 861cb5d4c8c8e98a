// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to view a resource owned by someone else (an idea's long
// description before they bought it), while ErrDuplicate signals that
// an insert collided with an existing row (the same idea published
// twice).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicate is returned when an insert collides with an existing
// row, such as publishing an idea whose content-derived id already
// exists. Handlers should translate this into an HTTP 409 response.
var ErrDuplicate = errors.New("duplicate")
