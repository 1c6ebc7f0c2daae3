package port

import "errors"

// ErrUnsupported reports an operation a venue does not offer, e.g.
// trading on a market-data-only venue. Callers test with errors.Is.
var ErrUnsupported = errors.New("operation not supported by venue")
