package extract

import "time"

// addWarrantyDays applies a warranty period expressed in days as calendar
// arithmetic: whole 365-day chunks become calendar years, the remainder is
// added as days. 365 days after 2024-01-10 is therefore 2025-01-10, even
// across the leap year.
func addWarrantyDays(d time.Time, days int) time.Time {
	return addYears(d, days/365).AddDate(0, 0, days%365)
}

// addYears adds whole calendar years, clamping Feb 29 to Feb 28 when the
// target year is not a leap year.
func addYears(d time.Time, years int) time.Time {
	y, m, day := d.Date()
	if m == time.February && day == 29 && !isLeapYear(y+years) {
		day = 28
	}
	return time.Date(y+years, m, day, 0, 0, 0, 0, time.UTC)
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
