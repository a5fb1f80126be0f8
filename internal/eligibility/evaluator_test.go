package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func TestScanAllUnsetRequirements(t *testing.T) {
	// With every requirement unset, no data is needed: all-true regardless of facts.
	cases := [][]DocumentFacts{
		nil,
		{},
		{{SchemaVersion: 1}},
		{{SchemaVersion: 1, BirthDate: "1990-01-01"}},
	}
	for _, facts := range cases {
		result := Scan(facts, Requirements{})
		assert.True(t, result.Age)
		assert.True(t, result.License)
		assert.True(t, result.Points)
		assert.True(t, result.AllPresent())
	}
}

func TestScanReportsAvailabilityNotPassing(t *testing.T) {
	// An underage birthdate still scans true: Scan answers "do we have the
	// data", not "does it pass".
	facts := []DocumentFacts{{
		SchemaVersion: 1,
		BirthDate:     "2010-01-01",
	}}
	req := Requirements{AgeMin: intPtr(25), LicenseStatus: intPtr(1), PointsMax: intPtr(6)}

	result := Scan(facts, req)

	assert.True(t, result.Age)
	assert.False(t, result.License, "no license facts supplied")
	assert.False(t, result.Points, "no points facts supplied")
	assert.False(t, result.AllPresent())
}

func TestScanLicenseNeedsStatusAndExpiry(t *testing.T) {
	req := Requirements{LicenseStatus: intPtr(1)}

	statusOnly := []DocumentFacts{{SchemaVersion: 1, LicenseStatus: LicenseStatusValid}}
	assert.False(t, Scan(statusOnly, req).License)

	both := []DocumentFacts{{SchemaVersion: 1, LicenseStatus: LicenseStatusValid, LicenseExpiry: "2030-01-01"}}
	assert.True(t, Scan(both, req).License)
}

func TestExtractApproximateAge(t *testing.T) {
	facts := []DocumentFacts{{SchemaVersion: 1, BirthDate: "1996-06-15"}}

	snap := Extract(facts, testNow)

	// floor(days/365.25); the calculation is deliberately approximate, not
	// calendar-exact, preserving the upstream eligibility rule.
	assert.Equal(t, 30, snap.Age)
}

func TestExtractLicenseValidity(t *testing.T) {
	cases := []struct {
		name   string
		status string
		expiry string
		want   bool
	}{
		{"valid and future expiry", LicenseStatusValid, "2030-01-01", true},
		{"valid but expired", LicenseStatusValid, "2020-01-01", false},
		{"suspended with future expiry", LicenseStatusSuspended, "2030-01-01", false},
		{"expiry equal to now counts as invalid", LicenseStatusValid, "2026-08-31", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facts := []DocumentFacts{{SchemaVersion: 1, LicenseStatus: tc.status, LicenseExpiry: tc.expiry}}
			snap := Extract(facts, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
			assert.Equal(t, tc.want, snap.LicenseValid)
		})
	}
}

func TestExtractLastWriteWinsAcrossDocuments(t *testing.T) {
	// Scenario: two documents supply conflicting points facts. The later
	// document in input order is authoritative, deterministically.
	first := DocumentFacts{SchemaVersion: 1, DrivingPoints: intPtr(8)}
	second := DocumentFacts{SchemaVersion: 1, DrivingPoints: intPtr(2)}

	snap := Extract([]DocumentFacts{first, second}, testNow)
	assert.Equal(t, 2, snap.Points)

	reversed := Extract([]DocumentFacts{second, first}, testNow)
	assert.Equal(t, 8, reversed.Points)
}

func TestExtractDefaultsWhenNoFacts(t *testing.T) {
	snap := Extract(nil, testNow)
	assert.Equal(t, Snapshot{}, snap)
}

func TestMergeOverlaysPerField(t *testing.T) {
	base := DocumentFacts{SchemaVersion: 1, BirthDate: "1990-01-01", DrivingPoints: intPtr(4)}
	overlay := DocumentFacts{SchemaVersion: 1, DrivingPoints: intPtr(1), LicenseStatus: LicenseStatusValid}

	merged := Merge(base, overlay)

	assert.Equal(t, "1990-01-01", merged.BirthDate)
	assert.Equal(t, LicenseStatusValid, merged.LicenseStatus)
	assert.Equal(t, 1, *merged.DrivingPoints)
}

func TestDocumentFactsValidate(t *testing.T) {
	valid := DocumentFacts{SchemaVersion: 1, BirthDate: "1990-01-01", LicenseStatus: LicenseStatusValid, LicenseExpiry: "2030-01-01", DrivingPoints: intPtr(3)}
	assert.NoError(t, valid.Validate())

	badVersion := DocumentFacts{SchemaVersion: 2}
	assert.Error(t, badVersion.Validate())

	badDate := DocumentFacts{SchemaVersion: 1, BirthDate: "01/01/1990"}
	assert.Error(t, badDate.Validate())

	badStatus := DocumentFacts{SchemaVersion: 1, LicenseStatus: "fine"}
	assert.Error(t, badStatus.Validate())

	negativePoints := DocumentFacts{SchemaVersion: 1, DrivingPoints: intPtr(-1)}
	assert.Error(t, negativePoints.Validate())
}

func TestRequirementsValidate(t *testing.T) {
	assert.NoError(t, Requirements{}.Validate())
	assert.NoError(t, Requirements{AgeMin: intPtr(25), LicenseStatus: intPtr(1), PointsMax: intPtr(6)}.Validate())

	assert.Error(t, Requirements{AgeMin: intPtr(-1)}.Validate())
	assert.Error(t, Requirements{LicenseStatus: intPtr(2)}.Validate())
	assert.Error(t, Requirements{PointsMax: intPtr(-3)}.Validate())
}
