package build

import "errors"

// Sentinel domain errors used to classify high-level pipeline failures.
// They should always be wrapped with contextual information at the call site.
var (
	ErrPrepare  = errors.New("staticpress: site preparation error")
	ErrCompile  = errors.New("staticpress: compile error")
	ErrManifest = errors.New("staticpress: manifest error")
	ErrAssets   = errors.New("staticpress: asset stitch error")
	ErrRender   = errors.New("staticpress: render error")
)
