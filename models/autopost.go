package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one dealer account, the unit of data partitioning and failure
// isolation.
type Tenant struct {
	ID             uuid.UUID `json:"id" db:"id"`
	DealerID       string    `json:"dealer_id" db:"dealer_id"`
	Name           string    `json:"name" db:"name"`
	SourceID       string    `json:"source_id" db:"source_id"`
	FacebookPageID string    `json:"facebook_page_id" db:"facebook_page_id"`
	PageToken      string    `json:"page_token" db:"page_token"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AutoPostConfig is tenant-owned posting configuration. All optional fields
// carry explicit defaults; see Normalize.
type AutoPostConfig struct {
	ID              uuid.UUID `json:"id" db:"id"`
	TenantID        uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Active          bool      `json:"active" db:"active"`
	CollectionName  string    `json:"collection_name" db:"collection_name"`
	DesignUUIDs     []string  `json:"design_uuids" db:"design_uuids"`
	Channels        []string  `json:"channels" db:"channels"`
	UseAutoInterval bool      `json:"use_auto_interval" db:"use_auto_interval"`
	ManualInterval  int       `json:"manual_interval" db:"manual_interval"`
	CarsCount       int       `json:"cars_count" db:"cars_count"`
	LastUpdated     time.Time `json:"last_updated" db:"last_updated"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// DefaultRotationInterval is used when no manual interval is configured and
// the inventory size falls outside every auto-interval band.
const DefaultRotationInterval = 17

// Normalize fills defaulted optional fields in place.
func (c *AutoPostConfig) Normalize() {
	if c.ManualInterval <= 0 {
		c.ManualInterval = DefaultRotationInterval
	}
}

// HasChannel reports whether the config targets the given platform.
func (c *AutoPostConfig) HasChannel(name string) bool {
	for _, ch := range c.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

// Post channels
const (
	ChannelFacebook  = "facebook"
	ChannelInstagram = "instagram"
)

// Post unit types
const (
	PostTypeCarousel = "carouselPost"
	PostTypeSingle   = "singlePost"
)

// Post status; pending posts are picked up by the downstream publisher.
const (
	PostStatusPending = "pending"
)

// PostChild is one vehicle inside a post unit, with its rendered asset.
type PostChild struct {
	CaseID   string   `json:"caseId"`
	Headline string   `json:"headline"`
	Subject  string   `json:"subject"`
	Price    int      `json:"price"`
	Images   []string `json:"images"`
	CaseURL  string   `json:"caseUrl"`
}

// PostUnit is a scheduled promotional post produced by the generator.
// Immutable once created except for status transitions by the publisher.
type PostUnit struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	TenantID       uuid.UUID   `json:"tenant_id" db:"tenant_id"`
	AutoPostID     uuid.UUID   `json:"auto_post_id" db:"auto_post_id"`
	Type           string      `json:"type" db:"type"`
	Subject        string      `json:"subject" db:"subject"`
	Text           string      `json:"text" db:"text"`
	Channels       []string    `json:"channels" db:"channels"`
	CollectionName string      `json:"collection_name" db:"collection_name"`
	PostingType    string      `json:"posting_type" db:"posting_type"`
	Children       []PostChild `json:"children" db:"children"`
	ScheduledDate  time.Time   `json:"scheduled_date" db:"scheduled_date"`
	Status         string      `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// TimelineEntry records one vehicle's appearance in a generated post, for
// the tenant-facing activity feed.
type TimelineEntry struct {
	ID             uuid.UUID `json:"id" db:"id"`
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	VehicleID      string    `json:"vehicle_id" db:"vehicle_id"`
	Headline       string    `json:"headline" db:"headline"`
	PostType       string    `json:"post_type" db:"post_type"`
	CollectionName string    `json:"collection_name" db:"collection_name"`
	ScheduledDate  time.Time `json:"scheduled_date" db:"scheduled_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
