package models

// RecordScope narrows the rows a record source returns for the caller.
// Empty fields impose no constraint.
type RecordScope struct {
	StudentID  string
	GradeLevel string
}

// Key renders the scope for cache keys.
func (s RecordScope) Key() string {
	return "student=" + s.StudentID + ";grade=" + s.GradeLevel
}

// ViewCaller identifies who is driving a view session.
type ViewCaller struct {
	UserID     string
	Role       UserRole
	IDNumber   string
	GradeLevel string
	// SessionID separates independent tabs of the same user; may be empty.
	SessionID string
}

// CallerFromClaims builds a caller from verified token claims.
func CallerFromClaims(claims *JWTClaims, sessionID string) ViewCaller {
	if claims == nil {
		return ViewCaller{SessionID: sessionID}
	}
	return ViewCaller{
		UserID:     claims.UserID,
		Role:       claims.Role,
		IDNumber:   claims.IDNumber,
		GradeLevel: claims.GradeLevel,
		SessionID:  sessionID,
	}
}

// Attribute returns the caller attribute that seeds a sticky filter field.
func (c ViewCaller) Attribute(field string) string {
	switch field {
	case "gradeLevel":
		return c.GradeLevel
	case "idNumber":
		return c.IDNumber
	}
	return ""
}
