package session

import (
	"context"
	"hash/fnv"
	"strconv"
)

// Vendor identity is a best-effort fingerprint of "who is using this
// profile right now", used only to keep one vendor's chat history from
// surfacing under another's login. It is a cache-partitioning heuristic,
// not a security boundary.
//
// Derivation order: the email already persisted on the session record wins
// (stable across token refreshes); otherwise a hash of the external auth
// token stands in until the first answer carries contact details; with
// neither, the actor is anonymous and has no identity.

// hashToken fingerprints an auth token. Non-cryptographic on purpose: any
// stable string hash serves, the token itself never leaves the client.
func hashToken(token string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return "vendor_" + strconv.FormatUint(uint64(h.Sum32()), 36)
}

// vendorID derives the current identity. It reads the record raw, without
// the vendor or TTL checks of Stored, so derivation and validation cannot
// recurse into each other.
func (m *Manager) vendorID(ctx context.Context) string {
	if rec, ok := m.readRaw(ctx); ok && rec.UserInfo != nil && rec.UserInfo.Email != "" {
		return rec.UserInfo.Email
	}
	token := m.token(ctx)
	if token == "" {
		return ""
	}
	return hashToken(token)
}

// CheckVendorChanged compares the freshly derived identity with the
// persisted marker and wipes all session state when they disagree. It runs
// at the start of every read so stale cross-vendor data is never observed.
// Returns true when state was cleared. Storage errors count as "no change".
func (m *Manager) CheckVendorChanged(ctx context.Context) bool {
	current := m.vendorID(ctx)
	marker, ok, err := m.store.Get(ctx, m.vendorKey)
	if err != nil {
		m.debugf(err, "vendor marker read failed")
		return false
	}
	if !ok {
		marker = ""
	}

	switch {
	case current == "" && marker != "":
		// Vendor logged out: drop everything including the marker.
		m.Clear(ctx)
		if err := m.store.Delete(ctx, m.vendorKey); err != nil {
			m.debugf(err, "vendor marker delete failed")
		}
		return true
	case current != "" && marker != "" && current != marker:
		m.Clear(ctx)
		if err := m.store.Set(ctx, m.vendorKey, current); err != nil {
			m.debugf(err, "vendor marker write failed")
		}
		return true
	case current != "" && marker == "":
		// First observation of this vendor.
		if err := m.store.Set(ctx, m.vendorKey, current); err != nil {
			m.debugf(err, "vendor marker write failed")
		}
		return false
	default:
		return false
	}
}
