package migration

import (
	"fmt"

	"github.com/scenekit/builder-backend/internal/domain"
	"gorm.io/gorm"
)

// pendingIndexes enforce one outstanding review per entity on engines with partial indexes
var pendingIndexes = []struct {
	name, table, column string
}{
	{"ux_collection_curations_pending", "collection_curations", "collection_id"},
	{"ux_item_curations_pending", "item_curations", "item_id"},
}

// Run executes AutoMigrate for the curation schema and creates the pending-review indexes.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Collection{},
		&domain.Item{},
		&domain.CollectionCuration{},
		&domain.ItemCuration{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return createPendingIndexes(db)
}

func createPendingIndexes(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "postgres", "sqlite":
	default:
		// MySQL has no partial indexes; the insert transaction is the only guard there
		return nil
	}

	for _, idx := range pendingIndexes {
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s) WHERE status = 'pending'",
			idx.name, idx.table, idx.column,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DuplicatePending is an entity with more than one pending curation row
type DuplicatePending struct {
	Table     string
	ForeignID string
	Count     int64
}

// Verify lists entities that violate the one-pending-review rule
func Verify(db *gorm.DB) ([]DuplicatePending, error) {
	var out []DuplicatePending
	for _, idx := range pendingIndexes {
		var rows []struct {
			ForeignID string
			Count     int64
		}
		err := db.Table(idx.table).
			Select(idx.column+" AS foreign_id, COUNT(*) AS count").
			Where("status = ?", domain.CurationStatusPending).
			Group(idx.column).
			Having("COUNT(*) > 1").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", idx.table, err)
		}
		for _, r := range rows {
			out = append(out, DuplicatePending{Table: idx.table, ForeignID: r.ForeignID, Count: r.Count})
		}
	}
	return out, nil
}
