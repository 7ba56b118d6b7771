// Package errors provides centralized error code definitions and a
// structured report type for modguard, mirroring the phase-tagged error
// taxonomy a host embedder needs to triage failures programmatically.
package errors

// Error code constants, grouped by the phase that raises them.
const (
	// ============================================================
	// Binding errors (BND###) -- internal/binding
	// ============================================================

	// BND001 indicates a TypeBinding refinement matched zero members.
	BND001 = "BND001"

	// BND002 indicates a TypeBinding refinement matched more than one
	// member and needs a signature to disambiguate.
	BND002 = "BND002"

	// ============================================================
	// Policy errors (POL###) -- internal/ident, internal/manifest
	// ============================================================

	// POL001 indicates a manifest referenced a type not in the universe.
	POL001 = "POL001"

	// POL002 indicates a malformed policy manifest.
	POL002 = "POL002"

	// ============================================================
	// Rewriter errors (RWR###) -- internal/rewrite, internal/stackalloc
	// ============================================================

	// RWR001 indicates a branch or exception-handler target has no
	// offset-map entry after rewriting -- a dangling branch.
	RWR001 = "RWR001"

	// RWR002 indicates a localloc did not match the sole permitted
	// stackalloc-to-span idiom.
	RWR002 = "RWR002"

	// RWR003 indicates a span element type failing the unmanaged
	// constraint.
	RWR003 = "RWR003"

	// ============================================================
	// Loader errors (LDR###) -- internal/loader
	// ============================================================

	// LDR001 indicates a request to load an unmanaged/native library.
	LDR001 = "LDR001"

	// LDR002 indicates no loader is registered for a running assembly --
	// an internal invariant failure, not a policy violation.
	LDR002 = "LDR002"

	// ============================================================
	// Resolver errors (RES###) -- internal/resolve
	// ============================================================

	// RES001 indicates a null-receiver dereference on a non-static,
	// non-constructor declared method.
	RES001 = "RES001"

	// RES002 indicates the delegate-trick fallback was asked to resolve
	// a method shape it cannot handle (>14 params or any by-ref param).
	RES002 = "RES002"

	// ============================================================
	// Security errors (SEC###) -- internal/violation
	// ============================================================

	// SEC001 indicates a denied member access reached the default
	// violation handler.
	SEC001 = "SEC001"
)
