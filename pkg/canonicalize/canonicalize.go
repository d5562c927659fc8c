// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and the hash primitives used across the registry: canonical
// hashing, chain hashing, merkle node hashing and anonymous-ID derivation.
//
// Canonical JSON is load-bearing here. Every hash in the system is computed
// over the canonical form, so identical input must yield identical bytes
// across runs and platforms: keys sorted at every depth, UTF-8, compact
// separators, no HTML escaping.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the previous_hash of the first chain entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

var hexDigestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with encoding/json (so struct tags are respected),
// then the intermediate document is transformed into canonical form.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the lowercase hex SHA-256 digest of the canonical
// JSON form of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 digest of raw bytes as lowercase hex.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ChainHash computes SHA256(canonical(v) || prevHash) where prevHash is the
// ASCII hex digest of the predecessor (GenesisHash for the first entry).
func ChainHash(v interface{}, prevHash string) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(append(b, prevHash...)), nil
}

// NodeHash combines two merkle node digests by hashing the ASCII hex
// concatenation left || right.
func NodeHash(left, right string) string {
	return HashBytes([]byte(left + right))
}

// AnonymousID derives the pseudonymous identifier anon_<12-hex> from an
// identity and a caller-held salt. The inputs are never persisted.
func AnonymousID(identity, salt string) string {
	full := HashBytes([]byte(identity + "||" + salt))
	return "anon_" + full[:12]
}

// VerifyAnonymousID reports whether identity and salt derive anonID. It lets
// a reporter prove ownership of a pseudonym to a trusted party.
func VerifyAnonymousID(identity, salt, anonID string) bool {
	return AnonymousID(identity, salt) == anonID
}

// IsDigest reports whether s is a 64-char lowercase hex SHA-256 digest.
func IsDigest(s string) bool {
	return hexDigestRe.MatchString(s)
}

// Timestamp renders t as ISO-8601 UTC with second precision, the uniform
// timestamp format for hashing and storage.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
