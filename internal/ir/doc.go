// Package ir provides the value types shared by comparisons, keys and
// records, plus the canonical serialization used for version-stable hashing.
//
// ir imports nothing internal. Every other internal package may import it.
//
// Key design constraints:
//   - No float types anywhere; use Int for numbers
//   - Canonical JSON (RFC 8785) is the only input to persisted hashes
//   - Hash domains carry a version suffix
package ir
