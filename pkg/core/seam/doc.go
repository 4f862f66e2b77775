// Package seam implements content-aware image narrowing by seam carving.
//
// # Overview
//
// Seam carving removes the vertical path of pixels ("seam") that carries the
// least visual information, shrinking an image by one column per pass while
// leaving high-contrast regions intact. Each pass has three stages:
//
//  1. Energy: [ComputeEnergy] assigns every pixel a local color-gradient cost
//     and folds it into a cumulative minimum-energy table.
//  2. Find: [Find] picks the cheapest bottom-row column and backtracks to the
//     top, yielding a connected [Seam] with one column per row.
//  3. Carve: [Image.Carve] compacts each row left past the seam and paints the
//     freed rightmost column black.
//
// [Carver] drives the three stages for N passes.
//
// # Active Width
//
// An [Image] keeps its physical buffer for the whole session. Instead of
// reallocating after each carve, it tracks an active width: columns at or
// beyond it are logically deleted. The same idea applies to [Energy], which is
// sized to the physical image once and overwritten up to the active width on
// every pass.
//
// # Energy
//
// The local energy of a pixel is the squared RGB distance to its left
// neighbour plus the squared RGB distance to the pixel above it (whichever of
// the two exist). The cumulative table adds, row by row, the cheapest of the
// up to three cells above each pixel.
//
// # Tie Breaking
//
// When backtracking, a seam prefers to go straight up on a tie, and prefers
// left over right when straight is not the cheapest. Bottom-row ties resolve
// to the leftmost column. Changing either order changes which seam is removed
// from images with flat regions.
//
// # Errors
//
// All functions are deterministic and total over well-formed input. Contract
// violations (active width outside [1, width], mismatched table sizes,
// malformed seams) are returned as *errors.Error values with codes
// INVALID_DIMENSIONS or INVALID_SEAM from package
// github.com/matzehuels/seamcarve/pkg/errors.
//
// # Concurrency
//
// Nothing in this package is safe for concurrent mutation. Distinct images and
// carvers can be used from different goroutines.
package seam
