// internal/storage/models/sell.go
package models

import "github.com/shopspring/decimal"

// Sell is a confirmed exit recorded in the journal.
type Sell struct {
	BaseModel
	Mint        string          `gorm:"index;size:44"`
	Signature   string          `gorm:"uniqueIndex;size:88"`
	Reason      string          `gorm:"size:32"`
	Attempts    int
	SlippageBps uint16
	SlippagePct decimal.Decimal `gorm:"type:decimal(10,4)"`
}

func (Sell) TableName() string { return "sells" }

// SessionError is a failed sell or rejected signal.
type SessionError struct {
	BaseModel
	Mint    string `gorm:"index;size:44"`
	Message string
}

func (SessionError) TableName() string { return "session_errors" }
