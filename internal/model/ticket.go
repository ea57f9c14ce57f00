package model

import (
	"time"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen    TicketStatus = "Open"
	StatusPending TicketStatus = "Pending"
	StatusClosed  TicketStatus = "Closed"
)

// ChannelType identifies the channel a ticket arrived on.
type ChannelType string

const (
	ChannelEmail     ChannelType = "email"
	ChannelInstagram ChannelType = "instagram"
)

// Ticket represents a customer conversation. CustomerEmail (for email) or
// Channel+ChannelIdentifier (for other channels) is the durable correlation
// key for future inbound messages.
type Ticket struct {
	ID                uint64       `json:"id" gorm:"primaryKey;autoIncrement"`
	CustomerEmail     string       `json:"customer_email" gorm:"type:varchar(255);not null;index"`
	CustomerName      string       `json:"customer_name" gorm:"type:varchar(255)"`
	Subject           string       `json:"subject" gorm:"type:varchar(500);not null"`
	Status            TicketStatus `json:"status" gorm:"type:varchar(20);not null;default:'Open';index"`
	AssignedTo        *uint64      `json:"assigned_to" gorm:"index"`
	LanguageID        *uint        `json:"language_id"`
	VOCID             *uint        `json:"voc_id"`
	PriorityID        *uint        `json:"priority_id"`
	Channel           ChannelType  `json:"channel" gorm:"type:varchar(20);not null;default:'email'"`
	ChannelIdentifier *string      `json:"channel_identifier" gorm:"type:varchar(255);index"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"index"`

	AssignedUser *User             `json:"assigned_user,omitempty" gorm:"foreignKey:AssignedTo"`
	Language     *CategoryLanguage `json:"language,omitempty" gorm:"foreignKey:LanguageID"`
	VOC          *CategoryVOC      `json:"voc,omitempty" gorm:"foreignKey:VOCID"`
	Priority     *CategoryPriority `json:"priority,omitempty" gorm:"foreignKey:PriorityID"`
	Messages     []TicketMessage   `json:"messages,omitempty" gorm:"foreignKey:TicketID"`
}

// TableName specifies the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}
