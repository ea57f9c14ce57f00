package model

import (
	"time"
)

// MessageDirection marks a conversation turn as inbound or outbound.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// TicketMessage is one turn in a ticket conversation. Messages are
// append-only; ordering within a ticket is by SentAt, not insertion order,
// since the pipeline can insert out-of-order historical messages.
type TicketMessage struct {
	ID              uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	TicketID        uint64           `json:"ticket_id" gorm:"not null;index"`
	Direction       MessageDirection `json:"direction" gorm:"type:varchar(10);not null"`
	FromEmail       string           `json:"from_email" gorm:"type:varchar(255);not null"`
	ToEmail         string           `json:"to_email" gorm:"type:varchar(255);not null"`
	Subject         string           `json:"subject" gorm:"type:varchar(500);not null"`
	Body            string           `json:"body" gorm:"type:longtext;not null"`
	AttachmentsJSON *string          `json:"attachments_json" gorm:"type:longtext"`
	ProviderMsgID   *string          `json:"provider_msg_id" gorm:"type:varchar(255)"`
	InReplyTo       *string          `json:"in_reply_to" gorm:"type:varchar(255)"`
	SentAt          time.Time        `json:"sent_at" gorm:"index"`
	CreatedBy       *uint64          `json:"created_by"`

	Ticket *Ticket `json:"-" gorm:"foreignKey:TicketID"`
}

// TableName specifies the table name for TicketMessage
func (TicketMessage) TableName() string {
	return "ticket_messages"
}

// AttachmentMeta describes one stored attachment of a message.
type AttachmentMeta struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}
