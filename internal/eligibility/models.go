// Package eligibility turns extracted document facts into the numeric snapshot
// and per-requirement availability results the proof step consumes.
package eligibility

import (
	"time"

	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// FactsSchemaVersion is the current closed document-fact schema version.
// Unknown fields and unknown versions are rejected, never silently ignored.
const FactsSchemaVersion = 1

// License status tags. Only LicenseStatusValid counts toward validity; any
// other tag fails the license check regardless of expiry.
const (
	LicenseStatusValid     = "valid"
	LicenseStatusSuspended = "suspended"
	LicenseStatusExpired   = "expired"
)

// dateLayout is the wire format for document dates.
const dateLayout = "2006-01-02"

// DocumentFacts is one document's extracted field set. The schema is closed
// and versioned: every field a document can contribute is enumerated here.
type DocumentFacts struct {
	SchemaVersion int    `json:"schema_version"`
	BirthDate     string `json:"birthdate,omitempty"`
	LicenseStatus string `json:"license_status,omitempty"`
	LicenseExpiry string `json:"license_expiry,omitempty"`
	DrivingPoints *int   `json:"driving_points,omitempty"`
}

// Validate checks the fact set against the closed schema.
func (f DocumentFacts) Validate() error {
	if f.SchemaVersion != FactsSchemaVersion {
		return dErrors.New(dErrors.CodeValidation, "unsupported fact schema version")
	}
	if f.BirthDate != "" {
		if _, err := time.Parse(dateLayout, f.BirthDate); err != nil {
			return dErrors.New(dErrors.CodeValidation, "birthdate must be YYYY-MM-DD")
		}
	}
	switch f.LicenseStatus {
	case "", LicenseStatusValid, LicenseStatusSuspended, LicenseStatusExpired:
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown license status tag")
	}
	if f.LicenseExpiry != "" {
		if _, err := time.Parse(dateLayout, f.LicenseExpiry); err != nil {
			return dErrors.New(dErrors.CodeValidation, "license expiry must be YYYY-MM-DD")
		}
	}
	if f.DrivingPoints != nil && *f.DrivingPoints < 0 {
		return dErrors.New(dErrors.CodeValidation, "driving points cannot be negative")
	}
	return nil
}

// Requirements are the eligibility thresholds a client supplies at session
// creation. Nil fields are unset: an unset requirement is automatically
// satisfied. LicenseStatus keeps the integer-flag wire shape (1 = license must
// be valid) for entry-URL compatibility.
type Requirements struct {
	AgeMin        *int `json:"age_min,omitempty"`
	LicenseStatus *int `json:"license_status,omitempty"`
	PointsMax     *int `json:"points_max,omitempty"`
}

// IsEmpty reports whether no requirement is set.
func (r Requirements) IsEmpty() bool {
	return r.AgeMin == nil && r.LicenseStatus == nil && r.PointsMax == nil
}

// WantsLicense reports whether the client requires a valid license.
func (r Requirements) WantsLicense() bool {
	return r.LicenseStatus != nil && *r.LicenseStatus == 1
}

// Validate rejects requirement values outside their closed domains.
func (r Requirements) Validate() error {
	if r.AgeMin != nil && (*r.AgeMin < 0 || *r.AgeMin > 150) {
		return dErrors.New(dErrors.CodeValidation, "age_min out of range")
	}
	if r.LicenseStatus != nil && *r.LicenseStatus != 0 && *r.LicenseStatus != 1 {
		return dErrors.New(dErrors.CodeValidation, "license_status must be 0 or 1")
	}
	if r.PointsMax != nil && *r.PointsMax < 0 {
		return dErrors.New(dErrors.CodeValidation, "points_max cannot be negative")
	}
	return nil
}

// Snapshot is the derived numeric view of a user's eligibility facts. It is
// ephemeral: it exists only inside the active verification flow and is never
// persisted or disclosed to the client.
type Snapshot struct {
	Age          int
	LicenseValid bool
	Points       int
}

// ScanResult reports, per requirement, whether the available facts suffice to
// DECIDE that requirement. This is a data-availability check, not a pass/fail
// check: a 20-year-old with a birthdate on file scans true for age even if the
// client demands 25.
type ScanResult struct {
	Age     bool `json:"age"`
	License bool `json:"license_status"`
	Points  bool `json:"points"`
}

// AllPresent reports whether every requirement can be decided.
func (r ScanResult) AllPresent() bool {
	return r.Age && r.License && r.Points
}
