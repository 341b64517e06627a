package telemetry

import "regexp"

// pathRegex matches absolute unix paths with at least two segments.
var pathRegex = regexp.MustCompile(`(?:/[\w.-]+){2,}`)
