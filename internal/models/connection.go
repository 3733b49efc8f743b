package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionStatus enumerates the lifecycle of a Connection to the Channel.
type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusInactive ConnectionStatus = "inactive"
	ConnectionStatusError    ConnectionStatus = "error"
)

// Connection is one per project, to one channel provider.
// At most one connection exists per (project_id, provider); mutated by the
// HTTP client (status) and the outbox worker (sync time), never deleted
// while referenced by mappings.
type Connection struct {
	ID                 uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProjectID          uuid.UUID        `json:"project_id" gorm:"type:uuid;not null;index"`
	Provider           string           `json:"provider" gorm:"size:50;not null;default:'channex'"`
	APIKey             string           `json:"-" gorm:"size:255;not null"`
	ExternalPropertyID string           `json:"external_property_id" gorm:"size:100;not null;index"`
	WebhookSecret      string           `json:"-" gorm:"size:255"`
	Status             ConnectionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	LastSyncAt         *time.Time       `json:"last_sync_at"`
	LastError          string           `json:"last_error" gorm:"size:1000"`
	ErrorCount         int              `json:"error_count" gorm:"default:0"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	DeletedAt          gorm.DeletedAt   `json:"-" gorm:"index"`

	Mappings []ExternalMapping `json:"mappings,omitempty" gorm:"foreignKey:ConnectionID"`
}

func (Connection) TableName() string { return "connections" }

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the connection may be used to push/pull data.
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusActive
}

// ExternalMapping relates a unit to a (room_type, rate_plan) pair on the Channel.
// Unique per (connection_id, unit_id); both external ids must be non-null
// when is_active.
type ExternalMapping struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConnectionID        uuid.UUID  `json:"connection_id" gorm:"type:uuid;not null;index:idx_mapping_conn_unit,unique"`
	UnitID              uuid.UUID  `json:"unit_id" gorm:"type:uuid;not null;index:idx_mapping_conn_unit,unique"`
	ExternalRoomTypeID  string     `json:"external_room_type_id" gorm:"size:100"`
	ExternalRatePlanID  string     `json:"external_rate_plan_id" gorm:"size:100"`
	IsActive            bool       `json:"is_active" gorm:"default:true"`
	LastPriceSyncAt     *time.Time `json:"last_price_sync_at"`
	LastAvailSyncAt     *time.Time `json:"last_avail_sync_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (ExternalMapping) TableName() string { return "external_mappings" }

func (m *ExternalMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsUsableForRates reports whether the mapping can drive a price_update push.
func (m *ExternalMapping) IsUsableForRates() bool {
	return m.IsActive && m.ExternalRatePlanID != ""
}

// IsUsableForAvailability reports whether the mapping can drive an avail_update push.
func (m *ExternalMapping) IsUsableForAvailability() bool {
	return m.IsActive && m.ExternalRoomTypeID != ""
}
