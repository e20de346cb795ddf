// Package layout places chart text labels.
//
// Bar labels are decided inside or outside each bar from measured text
// widths, and the value axis is widened to the tightest bounds that keep
// every label visible. Scatter labels are spread apart by a capped,
// deterministic force-directed pass.
//
// The package is pure: callers measure text with their rendering backend
// and pass widths in pixels.
package layout
