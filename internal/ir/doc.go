// Package ir provides the shared intermediate representation for kanachord.
//
// A compiled layout (Layout) is the read-only input of a compilation pass;
// GeneratedRule values are its output. Every other internal package imports
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - Mode and KeyboardVariant are closed enums, never free-form strings
//   - GeneratedRule values are never mutated once accepted by the emitter
//   - Digests use canonical JSON (RFC 8785) with NFC-normalised strings
//   - All JSON tags use snake_case
package ir
