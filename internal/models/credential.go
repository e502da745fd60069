package models

import (
	"strings"
	"time"
)

// CredentialRecord is a single authentication cookie captured from the portal
// login flow. Expiry and Secure are optional on the wire; a nil Expiry means
// the record is a session cookie with no server-side expiration.
type CredentialRecord struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
	Expiry *int64 `json:"expiry,omitempty"` // unix seconds
	Secure *bool  `json:"secure,omitempty"`
}

// Valid reports whether the record is usable at the given time.
//
// Policy: a record without an expiry is treated as valid (session cookie).
// Whole-set validity is decided by CredentialSet.Valid, which additionally
// requires at least one record with a future expiry so a set of nothing but
// session cookies cannot pass indefinitely.
func (r CredentialRecord) Valid(now time.Time) bool {
	if r.Expiry == nil {
		return true
	}
	return *r.Expiry >= now.Unix()
}

// ExtendExpiry pushes the record's expiry forward by the given grace period.
// Session cookies (nil expiry) are left untouched.
func (r *CredentialRecord) ExtendExpiry(grace time.Duration) {
	if r.Expiry == nil {
		return
	}
	extended := *r.Expiry + int64(grace.Seconds())
	r.Expiry = &extended
}

// CredentialSet is the full, ordered collection of records needed to
// authenticate one session. Sets are superseded wholesale on
// re-authentication, never mutated record by record.
type CredentialSet []CredentialRecord

// Header renders the set as a single Cookie header value in record order.
func (s CredentialSet) Header() string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(r.Name)
		b.WriteString("=")
		b.WriteString(r.Value)
	}
	return b.String()
}

// Valid reports whether the whole set is usable at the given time: every
// record carrying an expiry must still be valid, and at least one record must
// carry a future expiry.
func (s CredentialSet) Valid(now time.Time) bool {
	if len(s) == 0 {
		return false
	}
	hasExpiring := false
	for _, r := range s {
		if r.Expiry != nil {
			hasExpiring = true
		}
		if !r.Valid(now) {
			return false
		}
	}
	return hasExpiring
}

// Extend applies ExtendExpiry to every record in the set.
func (s CredentialSet) Extend(grace time.Duration) {
	for i := range s {
		s[i].ExtendExpiry(grace)
	}
}
