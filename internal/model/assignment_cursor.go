package model

// AssignmentCursor is the singleton row (id=1) holding the id of the last
// adviser assigned a new ticket. Read-modify-write must be serialized
// against concurrent assignments.
type AssignmentCursor struct {
	ID               uint    `json:"id" gorm:"primaryKey"`
	LastAssignedUser *uint64 `json:"last_assigned_user"`
}

// TableName specifies the table name for AssignmentCursor
func (AssignmentCursor) TableName() string {
	return "assignment_cursor"
}
