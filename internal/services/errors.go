package services

import "errors"

// ErrNotFound marks "no rows" outcomes. Handlers translate it to 404 or an
// empty-body success; it never surfaces as a 500.
var ErrNotFound = errors.New("not found")

// ErrDuplicateSlug is returned when a create collides with an existing slug.
var ErrDuplicateSlug = errors.New("E_DUPLICATE - slug already exists")
