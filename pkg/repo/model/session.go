package model

import (
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStarting SessionStatus = "starting"
	SessionRunning  SessionStatus = "running"
	SessionClosed   SessionStatus = "closed"
	SessionDead     SessionStatus = "dead"
)

// Session is one live R kernel owned by a notebook user.
type Session struct {
	BaseModel
	UserID     string        `gorm:"type:varchar(64);index" json:"user_id"`
	Notebook   string        `gorm:"type:varchar(256)" json:"notebook"`
	KernelID   string        `gorm:"type:varchar(64);index" json:"kernel_id"`
	KernelName string        `gorm:"type:varchar(32)" json:"kernel_name"`
	GatewayURL string        `gorm:"type:varchar(256)" json:"gateway_url"`
	Language   string        `gorm:"type:varchar(16)" json:"language"`
	Status     SessionStatus `gorm:"type:varchar(16);index" json:"status"`
}

func (Session) TableName() string {
	return "sosr_session"
}

type TransferDirection string

const (
	TransferGet TransferDirection = "get"
	TransferPut TransferDirection = "put"
)

type TransferStatus string

const (
	TransferOk     TransferStatus = "ok"
	TransferFailed TransferStatus = "failed"
)

// Transfer records one variable crossing the boundary, either direction.
type Transfer struct {
	BaseModel
	SessionID  int64             `gorm:"index" json:"session_id"`
	Direction  TransferDirection `gorm:"type:varchar(8)" json:"direction"`
	SourceName string            `gorm:"type:varchar(256)" json:"source_name"`
	TargetName string            `gorm:"type:varchar(256)" json:"target_name"`
	RClass     string            `gorm:"type:varchar(64)" json:"r_class"`
	ByteSize   int64             `json:"byte_size"`
	Status     TransferStatus    `gorm:"type:varchar(8)" json:"status"`
	Error      string            `gorm:"type:text" json:"error"`
	Meta       datatypes.JSON    `json:"meta"`
}

func (Transfer) TableName() string {
	return "sosr_transfer"
}
