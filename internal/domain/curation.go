package domain

import (
	"time"
)

// CurationStatus is the review state of a curation record
type CurationStatus string

const (
	CurationStatusPending  CurationStatus = "pending"
	CurationStatusApproved CurationStatus = "approved"
	CurationStatusRejected CurationStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed on the record
func (s CurationStatus) IsTerminal() bool {
	return s == CurationStatusApproved || s == CurationStatusRejected
}

// CurationKind selects which entity a curation reviews
type CurationKind string

const (
	CurationKindCollection CurationKind = "collection"
	CurationKindItem       CurationKind = "item"
)

// Curation is implemented by both curation records
type Curation interface {
	GetID() string
	GetStatus() CurationStatus
}

// CollectionCuration is one review cycle of a collection
type CollectionCuration struct {
	ID           string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	CollectionID string         `gorm:"column:collection_id;size:36;index;not null" json:"collection_id"`
	Status       CurationStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Assignee     *string        `gorm:"column:assignee;size:42" json:"assignee"`
	CreatedAt    time.Time      `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (CollectionCuration) TableName() string { return "collection_curations" }

func (c *CollectionCuration) GetID() string             { return c.ID }
func (c *CollectionCuration) GetStatus() CurationStatus { return c.Status }

// ItemCuration is one review cycle of an item. ContentHash and IsMappingComplete
// snapshot the item at the time of the last write.
type ItemCuration struct {
	ID                string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	ItemID            string         `gorm:"column:item_id;size:36;index;not null" json:"item_id"`
	Status            CurationStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	ContentHash       string         `gorm:"column:content_hash;size:128" json:"content_hash"`
	IsMappingComplete bool           `gorm:"column:is_mapping_complete;not null;default:false" json:"is_mapping_complete"`
	Assignee          *string        `gorm:"column:assignee;size:42" json:"assignee"`
	CreatedAt         time.Time      `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (ItemCuration) TableName() string { return "item_curations" }

func (c *ItemCuration) GetID() string             { return c.ID }
func (c *ItemCuration) GetStatus() CurationStatus { return c.Status }

// ForumPostResult reports the outcome of a best-effort forum notification
type ForumPostResult struct {
	CollectionID string `json:"collection_id"`
	Assignee     string `json:"assignee"`
	Status       string `json:"status"` // created, duplicate, failed
	TopicURL     string `json:"topic_url,omitempty"`
}

const (
	ForumPostCreated   = "created"
	ForumPostDuplicate = "duplicate"
	ForumPostFailed    = "failed"
)
