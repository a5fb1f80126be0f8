package domain

import "time"

// daysPerYear is the mean Julian year length used for age approximation.
const daysPerYear = 365.25

// ApproxAgeYears returns the whole-year age of a person born at birthDate as of
// the reference time, computed as floor(elapsed-days / 365.25).
//
// This is deliberately NOT calendar-exact: around a birthday the result can be
// off by a day relative to true calendar age. The approximation is preserved
// from the upstream eligibility rules; callers that need exact birthday
// semantics must not use this helper.
func ApproxAgeYears(birthDate, now time.Time) int {
	if birthDate.After(now) {
		return 0
	}
	days := now.Sub(birthDate).Hours() / 24
	return int(days / daysPerYear)
}
