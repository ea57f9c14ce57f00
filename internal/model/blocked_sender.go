package model

// BlockedSender is an address blocklist entry. Membership is tested by
// exact lowercase match before any ticket mutation.
type BlockedSender struct {
	ID     uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Email  string `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Reason string `json:"reason" gorm:"type:varchar(500)"`
}

// TableName specifies the table name for BlockedSender
func (BlockedSender) TableName() string {
	return "blocked_senders"
}
