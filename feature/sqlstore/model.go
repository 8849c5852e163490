package sqlstore

import "time"

// TableName is the table holding every stored entity.
const TableName = "inventory_entities"

// entityRow stores one entity. Attributes are JSON encoded; the natural key is
// stored in its encoded form so composite keys round-trip.
type entityRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EntityType string    `gorm:"column:entity_type;size:64;not null;uniqueIndex:idx_inventory_entity_key,priority:1"`
	NaturalKey string    `gorm:"column:natural_key;size:191;not null;uniqueIndex:idx_inventory_entity_key,priority:2"`
	Attributes string    `gorm:"column:attributes;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (entityRow) TableName() string { return TableName }

// columns are the columns Prepare requires when migrations are disabled.
var columns = []string{"id", "entity_type", "natural_key", "attributes", "created_at", "updated_at"}
