package entity

import "madrasah-backend/errs"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

const RoleField = "role"

var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Plural is the collection-style path segment, e.g. "teachers".
func (r Role) Plural() string {
	return string(r) + "s"
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errs.ErrInvalidRole
	}
	return r, nil
}

// RoleOf reports the role stored on a user document. Documents without a
// recognised role yield "".
func RoleOf(d Document) Role {
	s, _ := d[RoleField].(string)
	r := Role(s)
	if !r.Valid() {
		return ""
	}
	return r
}
