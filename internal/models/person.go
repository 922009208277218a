package models

import "time"

// PersonRecord holds the identity fields shared by students and
// instructors. It is embedded as a value rather than modelled as a
// parent entity; derived behavior lives in free functions below.
type PersonRecord struct {
	DocumentID string    `gorm:"index" json:"document_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `gorm:"index" json:"last_name"`
	BirthDate  time.Time `gorm:"type:date" json:"birth_date"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
}

// FullName renders "first last".
func FullName(p PersonRecord) string {
	return p.FirstName + " " + p.LastName
}

// Age computes whole years lived at the given instant.
func Age(p PersonRecord, at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}
