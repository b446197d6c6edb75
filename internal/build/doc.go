// Package build provides the canonical build execution pipeline for
// staticpress. All execution paths (CLI, daemon, tests) route through
// Pipeline.Run.
//
// A build runs a fixed stage sequence over shared State: prepare the
// output tree, stamp git metadata, compile both bundler targets, load the
// render manifests, stitch the style chunk into the app chunk, copy
// public assets, render every page, and verify internal links. Stage
// failures are classified: warnings are recorded and the build continues,
// fatal and canceled errors abort it. The Report captures timings, error
// kinds and page counts and is persisted into the output directory.
//
// The package also defines sentinel errors for classifying high-level
// pipeline failures; they are wrapped with context at the call site.
package build
