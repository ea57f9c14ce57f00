package model

import (
	"time"
)

// IngestStatus is the processing state of one inbound message attempt.
// queued is the only non-terminal state; a record transitions exactly once
// to processed, skipped or error.
type IngestStatus string

const (
	IngestQueued    IngestStatus = "queued"
	IngestProcessed IngestStatus = "processed"
	IngestSkipped   IngestStatus = "skipped"
	IngestError     IngestStatus = "error"
)

// IngestRecord is the audit/dedup ledger entry for one raw inbound message.
// The unique index on ProviderMessageID is the authoritative dedup signal:
// a second delivery of the same id fails the insert and is treated as
// already handled.
type IngestRecord struct {
	ID                uint64       `json:"id" gorm:"primaryKey;autoIncrement"`
	ProviderMessageID string       `json:"provider_message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	FromEmail         string       `json:"from_email" gorm:"type:varchar(255);not null"`
	Subject           string       `json:"subject" gorm:"type:varchar(500);not null"`
	ReceivedAt        time.Time    `json:"received_at"`
	ProcessedAt       *time.Time   `json:"processed_at"`
	Status            IngestStatus `json:"status" gorm:"type:varchar(20);not null;default:'queued';index"`
	ErrorText         *string      `json:"error_text" gorm:"type:text"`
}

// TableName specifies the table name for IngestRecord
func (IngestRecord) TableName() string {
	return "ingest_records"
}
