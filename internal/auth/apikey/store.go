package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
)

// DefaultHeaderName is the header credentials are read from when none is configured.
const DefaultHeaderName = "X-Api-Key"

// digest is the SHA-256 of a credential. Only digests are retained.
type digest [sha256.Size]byte

// CredentialSet is the immutable set of accepted API keys.
//
// It is built once at startup and never mutated afterwards, so lookups
// are safe from any number of goroutines without locking. Membership is
// ordinal: keys match only when byte-for-byte identical, case included.
// An empty set is legal but every lookup fails.
type CredentialSet struct {
	headerName string
	digests    []digest
}

// NewCredentialSet creates a credential set from the configured keys.
// Duplicates are collapsed and empty strings are ignored; keys are used
// exactly as given, without trimming.
func NewCredentialSet(headerName string, keys []string) *CredentialSet {
	if headerName == "" {
		headerName = DefaultHeaderName
	}

	seen := make(map[digest]struct{}, len(keys))
	digests := make([]digest, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		d := sha256.Sum256([]byte(key))
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		digests = append(digests, d)
	}

	return &CredentialSet{
		headerName: headerName,
		digests:    digests,
	}
}

// HeaderName returns the request header carrying the credential.
func (s *CredentialSet) HeaderName() string {
	return s.headerName
}

// Len returns the number of distinct keys.
func (s *CredentialSet) Len() int {
	return len(s.digests)
}

// IsEmpty reports whether no keys are configured.
func (s *CredentialSet) IsEmpty() bool {
	return len(s.digests) == 0
}

// Contains reports whether presented is one of the configured keys.
// Every stored digest is compared so timing does not depend on which
// key matched.
func (s *CredentialSet) Contains(presented string) bool {
	if presented == "" {
		return false
	}

	d := sha256.Sum256([]byte(presented))
	match := 0
	for i := range s.digests {
		match |= subtle.ConstantTimeCompare(d[:], s.digests[i][:])
	}
	return match == 1
}
