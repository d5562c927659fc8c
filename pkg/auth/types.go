package auth

import "github.com/afr-project/afr/pkg/transparency"

// Party is a registered API client: a lab, an auditor, or a government
// agency. The API key itself is never stored, only its SHA-256 hash.
type Party struct {
	ID           string            `json:"party_id"`
	Name         string            `json:"name"`
	Role         transparency.Role `json:"role"`
	KeyHash      string            `json:"key_hash"`
	CreatedAt    string            `json:"created_at"`
	KeyRotatedAt string            `json:"key_rotated_at,omitempty"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	PartyID string            `json:"party_id"`
	Name    string            `json:"name"`
	Role    transparency.Role `json:"role"`
}

// HasRole reports whether the principal holds one of the given roles. An
// empty role list means any authenticated party qualifies.
func (p Principal) HasRole(roles ...transparency.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
