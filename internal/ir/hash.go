package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for version-stable hashes.
// The version suffix allows the algorithm to change without silently
// colliding with hashes persisted by an older release.
const (
	DomainComparisons = "rangeplan/comparisons/v" + PlanHashVersion
	DomainPlan        = "rangeplan/plan/v" + PlanHashVersion
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)

	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// StableHash64 hashes the canonical JSON form of v under domain and returns
// the first eight bytes of the digest as a big-endian integer.
//
// The result depends only on the canonical bytes, so it is identical across
// processes, platforms and releases that keep the same domain string.
func StableHash64(domain string, v any) (uint64, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return 0, fmt.Errorf("stable hash %s: %w", domain, err)
	}
	sum := HashWithDomain(domain, canonical)
	return binary.BigEndian.Uint64(sum[:8]), nil
}

// MustStableHash64 is like StableHash64 but panics on error.
// Use only when v is built from Values, which always marshal.
func MustStableHash64(domain string, v any) uint64 {
	h, err := StableHash64(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}

// HexDigest returns the full hex SHA-256 of v's canonical form under domain.
func HexDigest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	sum := HashWithDomain(domain, canonical)
	return hex.EncodeToString(sum[:]), nil
}
