package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Collection is the locally stored collection of wearables.
// DCL collections are deployed through the factory and carry a contract address;
// third-party (linked) collections carry a third party id and a urn suffix instead.
type Collection struct {
	ID              string                      `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name            string                      `gorm:"column:name;size:255;not null" json:"name"`
	EthAddress      string                      `gorm:"column:eth_address;size:42;index;not null" json:"eth_address"`
	ContractAddress *string                     `gorm:"column:contract_address;size:42;index" json:"contract_address"`
	ThirdPartyID    *string                     `gorm:"column:third_party_id;size:255;index" json:"third_party_id"`
	URNSuffix       *string                     `gorm:"column:urn_suffix;size:255" json:"urn_suffix"`
	Managers        datatypes.JSONSlice[string] `gorm:"column:managers" json:"managers"`
	Minters         datatypes.JSONSlice[string] `gorm:"column:minters" json:"minters"`
	IsPublished     bool                        `gorm:"column:is_published;not null;default:false" json:"is_published"`
	IsApproved      bool                        `gorm:"column:is_approved;not null;default:false" json:"is_approved"`
	CreatedAt       time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Collection) TableName() string { return "collections" }

// IsThirdParty reports whether the collection is a linked third-party collection
func (c *Collection) IsThirdParty() bool {
	return c.ThirdPartyID != nil && *c.ThirdPartyID != ""
}

// HasManager reports an exact match of address in the managers list.
// Stored addresses are lowercase, so callers must normalize first.
func (c *Collection) HasManager(address string) bool {
	for _, m := range c.Managers {
		if m == address {
			return true
		}
	}
	return false
}

// MergeRemoteCollection overlays on-chain state onto a local DCL collection
func MergeRemoteCollection(local Collection, remote *RemoteCollection) Collection {
	merged := local
	if remote == nil {
		return merged
	}
	if remote.Creator != "" {
		merged.EthAddress = remote.Creator
	}
	merged.Managers = append(datatypes.JSONSlice[string]{}, remote.Managers...)
	merged.Minters = append(datatypes.JSONSlice[string]{}, remote.Minters...)
	merged.IsPublished = true
	merged.IsApproved = remote.IsApproved
	return merged
}

// MergeThirdParty overlays the third party registry record onto a local linked collection.
// The third party managers are the collection managers.
func MergeThirdParty(local Collection, tp *ThirdParty) Collection {
	merged := local
	if tp == nil {
		return merged
	}
	merged.Managers = append(datatypes.JSONSlice[string]{}, tp.Managers...)
	merged.IsPublished = true
	merged.IsApproved = tp.IsApproved
	return merged
}
