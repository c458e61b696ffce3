// Package store keeps the build history of compiled layouts in SQLite.
//
// Each successful compile that writes a document records a Build: which
// layout, the digests of the compiled layout and of the written document,
// where it went and how many rules it held. The compile command uses the
// latest build to skip rewriting an unchanged document, and the history
// command lists past builds.
//
// # Ordering
//
//   - Builds are ordered by seq INTEGER, the insertion order, NEVER by
//     created_at, so wall-clock changes cannot reorder history
//   - Ties cannot occur; seq is the primary key
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Digests are computed in internal/ir/hash.go using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package store
