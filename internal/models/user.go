package models

// UserRole represents the dashboards a caller may open.
type UserRole string

const (
	RoleLibrarian  UserRole = "LIBRARIAN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
	RoleNASStudent UserRole = "NAS_STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleLibrarian, RoleTeacher, RoleStudent, RoleNASStudent:
		return true
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	PageIndex  int `json:"page_index"`
	PageSize   int `json:"page_size"`
	PageCount  int `json:"page_count"`
	TotalCount int `json:"total_count"`
}
