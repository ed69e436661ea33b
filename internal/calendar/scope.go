// Package calendar holds the pure availability model: working-hour rules,
// exceptions, interval algebra, slot generation and conflict checks. Nothing
// in this package performs I/O.
package calendar

import "fmt"

// ScopeKind distinguishes tenant-wide entries from staff-specific ones.
type ScopeKind int

const (
	ScopeAllStaff ScopeKind = iota
	ScopeSpecificStaff
)

// StaffScope says which staff members a rule or exception applies to.
// The zero value is AllStaff.
type StaffScope struct {
	kind    ScopeKind
	staffID string
}

// AllStaff scopes an entry to every staff member of the tenant.
func AllStaff() StaffScope {
	return StaffScope{kind: ScopeAllStaff}
}

// SpecificStaff scopes an entry to one staff member.
func SpecificStaff(id string) StaffScope {
	return StaffScope{kind: ScopeSpecificStaff, staffID: id}
}

// ScopeFromNullable maps a nullable staff column onto a scope.
func ScopeFromNullable(staffID *string) StaffScope {
	if staffID == nil || *staffID == "" {
		return AllStaff()
	}
	return SpecificStaff(*staffID)
}

// Kind reports the variant.
func (s StaffScope) Kind() ScopeKind { return s.kind }

// StaffID returns the staff id for SpecificStaff scopes and "" otherwise.
func (s StaffScope) StaffID() string { return s.staffID }

// Applies reports whether an entry with this scope covers staffID.
// An empty staffID stands for the tenant acting as its own single resource,
// which only tenant-wide entries cover.
func (s StaffScope) Applies(staffID string) bool {
	switch s.kind {
	case ScopeAllStaff:
		return true
	case ScopeSpecificStaff:
		return staffID != "" && s.staffID == staffID
	default:
		panic(fmt.Sprintf("calendar: unknown scope kind %d", s.kind))
	}
}

// IsSpecificTo reports whether the scope names exactly staffID.
func (s StaffScope) IsSpecificTo(staffID string) bool {
	return s.kind == ScopeSpecificStaff && staffID != "" && s.staffID == staffID
}

func (s StaffScope) String() string {
	if s.kind == ScopeSpecificStaff {
		return "staff:" + s.staffID
	}
	return "all-staff"
}
