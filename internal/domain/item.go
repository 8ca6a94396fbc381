package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Item is a wearable, optionally belonging to a collection.
// Legacy standalone items have no collection id.
type Item struct {
	ID               string                                `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name             string                                `gorm:"column:name;size:255;not null" json:"name"`
	CollectionID     *string                               `gorm:"column:collection_id;size:36;index" json:"collection_id"`
	EthAddress       string                                `gorm:"column:eth_address;size:42;index;not null" json:"eth_address"`
	BlockchainItemID *string                               `gorm:"column:blockchain_item_id;size:64" json:"blockchain_item_id"`
	URNSuffix        *string                               `gorm:"column:urn_suffix;size:255" json:"urn_suffix"`
	Contents         datatypes.JSONType[map[string]string] `gorm:"column:contents" json:"contents"`
	Mappings         datatypes.JSON                        `gorm:"column:mappings" json:"mappings"`
	LocalContentHash *string                               `gorm:"column:local_content_hash;size:128" json:"local_content_hash"`
	IsPublished      bool                                  `gorm:"column:is_published;not null;default:false" json:"is_published"`
	IsApproved       bool                                  `gorm:"column:is_approved;not null;default:false" json:"is_approved"`
	CreatedAt        time.Time                             `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time                             `gorm:"column:updated_at" json:"updated_at"`

	// BlockchainContentHash is filled from the remote item on merge, never stored
	BlockchainContentHash string `gorm:"-" json:"content_hash,omitempty"`
}

func (Item) TableName() string { return "items" }

// IsDCL reports whether the item belongs to the DCL factory rather than a third party
func (i *Item) IsDCL() bool {
	return i.URNSuffix == nil || *i.URNSuffix == ""
}

// HasMappings reports whether mapping metadata is present
func (i *Item) HasMappings() bool {
	s := string(i.Mappings)
	return len(s) > 0 && s != "null"
}

// ContentFiles returns the file -> content hash map
func (i *Item) ContentFiles() map[string]string {
	files := i.Contents.Data()
	if files == nil {
		return map[string]string{}
	}
	return files
}

// MergeRemoteItem overlays on-chain state onto a local item
func MergeRemoteItem(local Item, remote *RemoteItem) Item {
	merged := local
	if remote == nil {
		return merged
	}
	merged.IsPublished = true
	merged.IsApproved = remote.IsApproved
	merged.BlockchainContentHash = remote.ContentHash
	return merged
}
