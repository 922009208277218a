package models

import (
	"time"
)

// SessionState enumerates the lesson lifecycle. The Spanish state names
// are the persisted wire values carried over from the school's records.
type SessionState string

const (
	// StateScheduled is the initial state of every booked lesson.
	StateScheduled SessionState = "PROGRAMADA"
	// StateStarted is entered automatically once the start time passes.
	StateStarted SessionState = "INICIADA"
	// StateCompleted is entered automatically once the completion window
	// elapses. Terminal.
	StateCompleted SessionState = "COMPLETADA"
	// StateCancelled is only reachable through an explicit state change.
	// Terminal.
	StateCancelled SessionState = "CANCELADA"
	// StateAbsent marks an absence with notice ("ausente con aviso").
	// Only reachable through an explicit state change. Terminal.
	StateAbsent SessionState = "ACA"
)

// KnownState reports whether s is a recognised lifecycle state.
func KnownState(s SessionState) bool {
	switch s {
	case StateScheduled, StateStarted, StateCompleted, StateCancelled, StateAbsent:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateAbsent:
		return true
	}
	return false
}

// Specialty tags a lesson with its riding discipline.
type Specialty string

const (
	SpecialtyEquitation Specialty = "EQUITACION"
	SpecialtyJumping    Specialty = "SALTO"
	SpecialtyDressage   Specialty = "ADIESTRAMIENTO"
	SpecialtyTrailRide  Specialty = "MONTA"
)

// KnownSpecialty reports whether s is a recognised discipline.
func KnownSpecialty(s Specialty) bool {
	switch s {
	case SpecialtyEquitation, SpecialtyJumping, SpecialtyDressage, SpecialtyTrailRide:
		return true
	}
	return false
}

// DefaultDurationMinutes applies when a booking omits the duration.
const DefaultDurationMinutes = 30

// Session is one scheduled instance of a riding lesson. Day is a
// UTC-midnight calendar day and StartsAt the "15:04" time of day; the
// split keeps the (day, time) slot the collision key the school uses.
//
// The composite unique indexes make the store authoritative for the
// no-double-booking invariant even when two requests pass the
// read-then-write conflict pre-check concurrently.
type Session struct {
	ID          string       `gorm:"type:uuid;primaryKey" json:"id"`
	Specialty   Specialty    `gorm:"type:varchar(16);index" json:"specialty"`
	Day         time.Time    `gorm:"type:date;index;uniqueIndex:uq_slot_student,priority:1;uniqueIndex:uq_slot_horse,priority:1" json:"day"`
	StartsAt    string       `gorm:"type:varchar(5);uniqueIndex:uq_slot_student,priority:2;uniqueIndex:uq_slot_horse,priority:2" json:"starts_at"`
	DurationMin int          `json:"duration_min"`
	State       SessionState `gorm:"type:varchar(12);index" json:"state"`
	Notes       string       `gorm:"type:varchar(120)" json:"notes"`
	Trial       bool         `gorm:"index" json:"trial"`

	// Exactly one rider reference: a Student for regular sessions, a
	// Student or TrialPerson for trial sessions, never both.
	StudentID     *string `gorm:"type:uuid;index;uniqueIndex:uq_slot_student,priority:3" json:"student_id,omitempty"`
	TrialPersonID *string `gorm:"type:uuid;index" json:"trial_person_id,omitempty"`
	InstructorID  string  `gorm:"type:uuid;index" json:"instructor_id"`
	HorseID       string  `gorm:"type:uuid;index;uniqueIndex:uq_slot_horse,priority:3" json:"horse_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Student is an enrolled rider.
type Student struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	PersonRecord `gorm:"embedded" json:"person"`
	EnrolledAt   time.Time `gorm:"type:date" json:"enrolled_at"`
	LessonQuota  int       `json:"lesson_quota"`
	Active       bool      `gorm:"index" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Instructor teaches lessons.
type Instructor struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	PersonRecord `gorm:"embedded" json:"person"`
	HiredAt      time.Time `gorm:"type:date" json:"hired_at"`
	Active       bool      `gorm:"index" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HorseKind distinguishes school horses from privately owned ones.
type HorseKind string

const (
	HorseSchool  HorseKind = "ESCUELA"
	HorsePrivate HorseKind = "PRIVADO"
)

// Horse is a mount assignable to lessons.
type Horse struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"index" json:"name"`
	Kind      HorseKind `gorm:"type:varchar(8)" json:"kind"`
	Available bool      `gorm:"index" json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrialPerson is a lightweight placeholder for someone trying a lesson
// without full enrollment.
type TrialPerson struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `gorm:"index" json:"last_name"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `gorm:"type:date" json:"registered_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuditLog records administrative and lifecycle actions.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Action       string         `gorm:"type:varchar(48);index" json:"action"`
	ResourceType string         `gorm:"type:varchar(24);index" json:"resource_type"`
	ResourceID   string         `gorm:"type:uuid;index" json:"resource_id"`
	Details      map[string]any `gorm:"serializer:json" json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}
