// Package birthday decides whether a birthday falls into a window of days starting today.
//
// The window never wraps into the next year: a birthday is projected onto the current calendar
// year only, so a birthday on January 2 checked on December 30 is not upcoming. A February 29
// birthday is projected onto February 28 in years that are not leap years.
package birthday

import (
	"time"

	"gitlab.com/dirk.krummacker/contactbook/internal/model"
)

// Project returns the occurrence of the birthday's month and day in the given year, as a UTC date.
func Project(birthday time.Time, year int) time.Time {
	month, day := birthday.Month(), birthday.Day()
	if month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of whole days from today until this year's occurrence of the
// birthday. The result is negative when the birthday has already passed this year.
func DaysUntil(birthday time.Time, today time.Time) int {
	start := date(today)
	next := Project(birthday, start.Year())
	return int(next.Sub(start).Hours() / 24)
}

// InWindow reports whether the birthday is between 0 and days days away from today, both ends
// included.
func InWindow(birthday time.Time, today time.Time, days int) bool {
	d := DaysUntil(birthday, today)
	return d >= 0 && d <= days
}

// Upcoming keeps the contacts whose birthday is within the window. Contacts without a birthday
// are dropped. The order of the input is preserved.
func Upcoming(contacts []model.Contact, today time.Time, days int) []model.Contact {
	upcoming := []model.Contact{}
	for _, contact := range contacts {
		if contact.Birthday == nil {
			continue
		}
		if InWindow(*contact.Birthday, today, days) {
			upcoming = append(upcoming, contact)
		}
	}
	return upcoming
}

// date strips the clock from t, keeping the calendar day as seen in t's location.
func date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
