package domain

type UserID string

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleClinician UserRole = "clinician"
	RolePatient   UserRole = "patient"
)

// RecordingKind tells which endpoint a recording arrived through.
type RecordingKind string

const (
	RecordingFromCall   RecordingKind = "record"
	RecordingFromUpload RecordingKind = "upload"
)
