package catalog

import "errors"

// ErrInvalidCatalog is returned when catalog content fails validation.
var ErrInvalidCatalog = errors.New("catalog: invalid catalog")
