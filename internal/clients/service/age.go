package service

import "time"

// AgeOn returns the age in whole years on the given day, or nil without a birth date.
func AgeOn(birthDate *time.Time, on time.Time) *int {
	if birthDate == nil {
		return nil
	}
	by, bm, bd := birthDate.Date()
	y, m, d := on.Date()

	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return &age
}
