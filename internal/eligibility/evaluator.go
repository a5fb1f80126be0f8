package eligibility

import (
	"time"

	domain "github.com/bamarler/flaZK/pkg/domain"
)

// Scan reports whether the supplied fact sets carry enough data to decide each
// requested requirement. Unset requirements need no data and always scan true.
func Scan(facts []DocumentFacts, req Requirements) ScanResult {
	result := ScanResult{
		Age:     req.AgeMin == nil,
		License: req.LicenseStatus == nil,
		Points:  req.PointsMax == nil,
	}

	for _, f := range facts {
		if f.BirthDate != "" {
			result.Age = true
		}
		if f.LicenseStatus != "" && f.LicenseExpiry != "" {
			result.License = true
		}
		if f.DrivingPoints != nil {
			result.Points = true
		}
	}

	return result
}

// Extract derives the eligibility snapshot from the fact sets.
//
// Fields follow last-write-wins in input order: when two documents supply the
// same fact, the later document's value is authoritative. Callers must pass
// documents in processing order; the policy is deliberate and covered by tests.
//
// Age uses the approximate floor(days/365.25) calculation. License validity
// requires the "valid" status tag AND an expiry strictly after now. Fields with
// no supporting document keep their zero value.
func Extract(facts []DocumentFacts, now time.Time) Snapshot {
	var snap Snapshot

	for _, f := range facts {
		if f.BirthDate != "" {
			if birth, err := time.Parse(dateLayout, f.BirthDate); err == nil {
				snap.Age = domain.ApproxAgeYears(birth, now)
			}
		}

		if f.LicenseStatus != "" && f.LicenseExpiry != "" {
			valid := false
			if f.LicenseStatus == LicenseStatusValid {
				if expiry, err := time.Parse(dateLayout, f.LicenseExpiry); err == nil {
					valid = expiry.After(now)
				}
			}
			snap.LicenseValid = valid
		}

		if f.DrivingPoints != nil {
			snap.Points = *f.DrivingPoints
		}
	}

	return snap
}

// Merge overlays partial facts from a freshly analyzed document onto an
// existing fact set, again last-write-wins per field.
func Merge(base DocumentFacts, overlay DocumentFacts) DocumentFacts {
	merged := base
	if overlay.BirthDate != "" {
		merged.BirthDate = overlay.BirthDate
	}
	if overlay.LicenseStatus != "" {
		merged.LicenseStatus = overlay.LicenseStatus
	}
	if overlay.LicenseExpiry != "" {
		merged.LicenseExpiry = overlay.LicenseExpiry
	}
	if overlay.DrivingPoints != nil {
		points := *overlay.DrivingPoints
		merged.DrivingPoints = &points
	}
	return merged
}
