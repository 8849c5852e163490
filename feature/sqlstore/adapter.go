package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inventory-sync/core/database"
	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Adapter stores an inventory graph in a single SQL table. It serves as a
// source or a destination for any schema.
type Adapter struct {
	db     *gorm.DB
	schema *graph.Schema
	cfg    Config
	logger *zap.Logger
}

// NewAdapter creates a SQL store over db for the schema.
func NewAdapter(db *gorm.DB, schema *graph.Schema, cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		db:     db,
		schema: schema,
		cfg:    cfg,
		logger: logger.With(zap.String("adapter", "sql")),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "sql" }

// Prepare migrates the entity table, or verifies it when migrations are off.
func (a *Adapter) Prepare(ctx context.Context) error {
	db := a.db.WithContext(ctx)
	if a.cfg.AutoMigrate {
		if err := db.AutoMigrate(&entityRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", TableName, err)
		}
		return nil
	}

	missing, err := database.MissingColumns(db, TableName, columns...)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s is missing columns: %s", TableName, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads every row into a graph.
func (a *Adapter) Load(ctx context.Context) (*graph.Graph, error) {
	var rows []entityRow
	if err := a.db.WithContext(ctx).Order("entity_type, natural_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", TableName, err)
	}

	byType := make(map[graph.EntityType][]entityRow)
	for _, r := range rows {
		t := graph.EntityType(r.EntityType)
		if _, ok := a.schema.Lookup(t); !ok {
			return nil, fmt.Errorf("row %d: %w", r.ID, &graph.SchemaError{Type: t, Reason: "entity type is not declared"})
		}
		byType[t] = append(byType[t], r)
	}

	g := graph.New(a.schema)
	for _, t := range a.schema.Types() {
		ts, _ := a.schema.Lookup(t)
		for _, r := range byType[t] {
			values, err := decodeAttributes(r.Attributes)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r.ID, err)
			}
			for i, part := range graph.NaturalKey(r.NaturalKey).Parts() {
				if i < len(ts.Key) {
					values[ts.Key[i]] = part
				}
			}
			if _, err := g.RegisterValues(t, values, strconv.FormatInt(r.ID, 10)); err != nil {
				return nil, fmt.Errorf("row %d: %w", r.ID, err)
			}
		}
	}
	g.LinkReferences()

	a.logger.Debug("Loaded stored inventory", zap.Int("entities", g.Size()))
	return g, nil
}

// Create inserts an entity. Every reference must name a stored entity.
func (a *Adapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	ts, ok := a.schema.Lookup(t)
	if !ok {
		return graph.Entity{}, &graph.SchemaError{Type: t, Reason: "entity type is not declared"}
	}
	payload, err := encodeAttributes(attrs)
	if err != nil {
		return graph.Entity{}, err
	}

	row := entityRow{EntityType: string(t), NaturalKey: string(key), Attributes: payload}
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, ts, key, attrs); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return graph.Entity{}, &graph.DuplicateKeyError{Type: t, Key: key}
	}
	if err != nil {
		return graph.Entity{}, err
	}

	return graph.Entity{Type: t, Key: key, Attributes: attrs.Clone(), BackendID: strconv.FormatInt(row.ID, 10)}, nil
}

// Update merges changed into the stored attributes.
func (a *Adapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	ts, ok := a.schema.Lookup(entity.Type)
	if !ok {
		return graph.Entity{}, &graph.SchemaError{Type: entity.Type, Reason: "entity type is not declared"}
	}

	var out graph.Entity
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, entity)
		if err != nil {
			return err
		}
		attrs, err := decodeAttributes(row.Attributes)
		if err != nil {
			return err
		}
		for k, v := range changed {
			attrs[k] = v
		}
		if err := checkReferences(tx, ts, entity.Key, changed); err != nil {
			return err
		}

		payload, err := encodeAttributes(attrs)
		if err != nil {
			return err
		}
		if err := tx.Model(&row).Update("attributes", payload).Error; err != nil {
			return err
		}

		out = entity.Clone()
		out.Attributes = graph.Attributes(attrs)
		out.BackendID = strconv.FormatInt(row.ID, 10)
		return nil
	})
	if err != nil {
		return graph.Entity{}, err
	}
	return out, nil
}

// Delete removes an entity. It fails with *reconcile.ConstraintError while
// stored entities still reference it.
func (a *Adapter) Delete(ctx context.Context, entity graph.Entity) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, entity)
		if err != nil {
			return err
		}

		dependents, err := a.referrers(tx, entity.Type, entity.Key)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			return &reconcile.ConstraintError{
				Type:       entity.Type,
				Key:        entity.Key,
				Dependents: dependents,
				Err:        errors.New("still referenced by stored entities"),
			}
		}
		return tx.Delete(&row).Error
	})
}

// Reset deletes every stored entity.
func (a *Adapter) Reset(ctx context.Context) (int64, error) {
	res := a.db.WithContext(ctx).Where("1 = 1").Delete(&entityRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("reset %s: %w", TableName, res.Error)
	}
	a.logger.Info("Stored inventory reset", zap.Int64("deleted", res.RowsAffected))
	return res.RowsAffected, nil
}

// referrers lists "type key" for stored entities whose reference fields name
// (t, key).
func (a *Adapter) referrers(tx *gorm.DB, t graph.EntityType, key graph.NaturalKey) ([]string, error) {
	var out []string
	deps := a.schema.Dependents(t)
	for _, dt := range a.schema.Types() {
		fields, ok := deps[dt]
		if !ok {
			continue
		}
		var rows []entityRow
		if err := tx.Where("entity_type = ?", string(dt)).Order("natural_key").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			attrs, err := decodeAttributes(r.Attributes)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r.ID, err)
			}
			for _, f := range fields {
				if v, _ := attrs[f.Name].(string); graph.NaturalKey(v) == key {
					out = append(out, fmt.Sprintf("%s %s", dt, graph.NaturalKey(r.NaturalKey)))
					break
				}
			}
		}
	}
	return out, nil
}

// checkReferences verifies that every reference in attrs names a stored entity.
func checkReferences(tx *gorm.DB, ts graph.TypeSchema, key graph.NaturalKey, attrs graph.Attributes) error {
	for _, f := range ts.Refs() {
		v, ok := attrs[f.Name]
		if !ok {
			continue
		}
		s, _ := v.(string)
		var n int64
		if err := tx.Model(&entityRow{}).
			Where("entity_type = ? AND natural_key = ?", string(f.Ref), s).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return &reconcile.ReferenceResolutionError{Type: ts.Type, Key: key, Field: f.Name, RefType: f.Ref, RefValue: s}
		}
	}
	return nil
}

// findRow looks an entity up by backend id, falling back to its natural key.
func findRow(tx *gorm.DB, e graph.Entity) (entityRow, error) {
	var row entityRow
	q := tx.Where("entity_type = ?", string(e.Type))
	if id, err := strconv.ParseInt(e.BackendID, 10, 64); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("natural_key = ?", string(e.Key))
	}
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("%s %s: %w", e.Type, e.Key, reconcile.ErrNotFound)
	}
	return row, err
}

func encodeAttributes(attrs graph.Attributes) (string, error) {
	if attrs == nil {
		attrs = graph.Attributes{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

func decodeAttributes(s string) (map[string]any, error) {
	values := map[string]any{}
	if s == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return values, nil
}
