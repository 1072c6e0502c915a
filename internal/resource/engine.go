package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/internal"
)

// Item is one resource row, keyed by column (or relationship field key).
type Item map[string]interface{}

// Upload is a file received for a file-typed field.
type Upload struct {
	Filename string
	Content  io.Reader
}

type ListParams struct {
	Search  string
	Sort    string
	Dir     string
	Page    int
	PerPage int
}

type ListResult struct {
	Data    []Item `json:"data"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// Option is one selectable value for a relationship-backed field.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Engine performs configuration-driven CRUD against arbitrary backing
// tables. All access decisions use the caller's role slugs against the
// schema's allow-lists.
type Engine struct {
	db       *gorm.DB
	registry *Registry
	storage  *Storage
	logger   *slog.Logger
}

func NewEngine(db *gorm.DB, registry *Registry, storage *Storage, logger *slog.Logger) *Engine {
	return &Engine{
		db:       db,
		registry: registry,
		storage:  storage,
		logger:   logger,
	}
}

var (
	errAccessDenied = internal.NewForbiddenError("You do not have access to this resource.", internal.ErrCodeAccessDenied)
	errReadonly     = internal.NewForbiddenError("Your role only has read access to this resource.", internal.ErrCodeResourceReadonly)
)

func (e *Engine) schemaForView(key string, roles []string) (*Schema, error) {
	schema, err := e.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	if !schema.CanView(roles) {
		return nil, errAccessDenied
	}
	return schema, nil
}

func (e *Engine) schemaForMutation(key string, roles []string) (*Schema, error) {
	schema, err := e.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	if !schema.CanView(roles) {
		return nil, errAccessDenied
	}
	if !schema.CanMutate(roles) {
		return nil, errReadonly
	}
	return schema, nil
}

// List returns a page of items, searched case-insensitively across the
// schema's search columns and sorted by the requested field when it is
// declared sortable, otherwise by newest first.
func (e *Engine) List(ctx context.Context, key string, roles []string, params ListParams) (*ListResult, error) {
	schema, err := e.schemaForView(key, roles)
	if err != nil {
		return nil, err
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 {
		params.PerPage = internal.DefaultPageSize
	}

	q := e.db.WithContext(ctx).Table(schema.Table)

	if params.Search != "" {
		cols := schema.SearchColumns()
		if len(cols) > 0 {
			needle := "%" + strings.ToLower(params.Search) + "%"
			var clauses []string
			var args []interface{}
			for _, col := range cols {
				clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", col))
				args = append(args, needle)
			}
			q = q.Where(strings.Join(clauses, " OR "), args...)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, internal.NewInternalError("failed to count resources", err)
	}

	order := "created_at DESC"
	if params.Sort != "" && schema.Sortable(params.Sort) {
		dir := "ASC"
		if strings.EqualFold(params.Dir, "desc") {
			dir = "DESC"
		}
		order = params.Sort + " " + dir
	}

	var rows []map[string]interface{}
	offset := (params.Page - 1) * params.PerPage
	if err := q.Order(order).Limit(params.PerPage).Offset(offset).Find(&rows).Error; err != nil {
		return nil, internal.NewInternalError("failed to list resources", err)
	}

	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = e.present(schema, row)
	}

	if err := e.attachRelationships(ctx, schema, items); err != nil {
		return nil, internal.NewInternalError("failed to load relationships", err)
	}

	return &ListResult{
		Data:    items,
		Total:   total,
		Page:    params.Page,
		PerPage: params.PerPage,
	}, nil
}

// Get returns one item with its relationship selections. Readonly roles
// may call it, the check is view-level only.
func (e *Engine) Get(ctx context.Context, key string, roles []string, id int64) (Item, error) {
	schema, err := e.schemaForView(key, roles)
	if err != nil {
		return nil, err
	}
	return e.fetch(ctx, schema, id)
}

func (e *Engine) fetch(ctx context.Context, schema *Schema, id int64) (Item, error) {
	var rows []map[string]interface{}
	err := e.db.WithContext(ctx).Table(schema.Table).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, internal.NewInternalError("failed to load resource", err)
	}
	if len(rows) == 0 {
		return nil, internal.NewNotFoundError("Record not found", internal.ErrCodeRecordNotFound)
	}

	item := e.present(schema, rows[0])
	items := []Item{item}
	if err := e.attachRelationships(ctx, schema, items); err != nil {
		return nil, internal.NewInternalError("failed to load relationships", err)
	}
	return items[0], nil
}

// Create validates and inserts a new item, then syncs its relationship
// memberships inside the same transaction.
func (e *Engine) Create(ctx context.Context, key string, roles []string, payload map[string]interface{}, files map[string]Upload) (Item, error) {
	schema, err := e.schemaForMutation(key, roles)
	if err != nil {
		return nil, err
	}

	payload = e.normalize(schema, payload, false)
	relations := extractRelations(schema, payload)

	if err := ValidatePayload(ctx, schema, payload, 0, e); err != nil {
		return nil, err
	}

	if err := e.storeFiles(schema, payload, files); err != nil {
		return nil, err
	}
	if err := e.hashPasswords(schema, payload); err != nil {
		return nil, err
	}

	now := time.Now()
	payload["created_at"] = now
	payload["updated_at"] = now

	var id int64
	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insertedID, err := insertRow(tx, schema.Table, payload)
		if err != nil {
			return err
		}
		id = insertedID
		return syncRelations(tx, schema, id, relations)
	})
	if txErr != nil {
		if appErr := TranslateConstraintError(txErr); appErr != nil {
			return nil, appErr
		}
		return nil, internal.NewInternalError("failed to create resource", txErr)
	}

	e.logger.InfoContext(ctx, "resource created", "resource", schema.Key, "id", id)
	return e.fetch(ctx, schema, id)
}

// Update applies a partial update. Empty password fields keep the
// current credential, file fields without a new upload keep the stored
// path, and absent multi-valued relationship fields clear membership.
func (e *Engine) Update(ctx context.Context, key string, roles []string, id int64, payload map[string]interface{}, files map[string]Upload) (Item, error) {
	schema, err := e.schemaForMutation(key, roles)
	if err != nil {
		return nil, err
	}

	current, err := e.fetch(ctx, schema, id)
	if err != nil {
		return nil, err
	}

	payload = e.normalize(schema, payload, true)
	relations := extractRelations(schema, payload)

	if err := ValidatePayload(ctx, schema, payload, id, e); err != nil {
		return nil, err
	}

	var replacedFiles []string
	for _, f := range schema.Fields {
		if f.Kind != KindFile {
			continue
		}
		if _, uploaded := files[f.Key]; uploaded {
			if old, ok := current[f.Key].(string); ok && old != "" {
				replacedFiles = append(replacedFiles, old)
			}
		} else {
			// no new upload, keep the stored value
			delete(payload, f.Key)
		}
	}

	if err := e.storeFiles(schema, payload, files); err != nil {
		return nil, err
	}
	if err := e.hashPasswords(schema, payload); err != nil {
		return nil, err
	}

	payload["updated_at"] = time.Now()

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(payload) > 0 {
			if err := tx.Table(schema.Table).Where("id = ?", id).Updates(payload).Error; err != nil {
				return err
			}
		}
		return syncRelations(tx, schema, id, relations)
	})
	if txErr != nil {
		if appErr := TranslateConstraintError(txErr); appErr != nil {
			return nil, appErr
		}
		return nil, internal.NewInternalError("failed to update resource", txErr)
	}

	// old file cleanup is best-effort and never blocks the response
	for _, old := range replacedFiles {
		e.storage.Remove(old)
	}

	e.logger.InfoContext(ctx, "resource updated", "resource", schema.Key, "id", id)
	return e.fetch(ctx, schema, id)
}

// Delete removes the item and its relationship memberships, then cleans
// up stored files best-effort.
func (e *Engine) Delete(ctx context.Context, key string, roles []string, id int64) error {
	schema, err := e.schemaForMutation(key, roles)
	if err != nil {
		return err
	}

	current, err := e.fetch(ctx, schema, id)
	if err != nil {
		return err
	}

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range schema.Fields {
			if !f.IsRelationship() {
				continue
			}
			rel := f.Relationship
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rel.JoinTable, rel.ForeignKey), id).Error; err != nil {
				return err
			}
		}
		return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", schema.Table), id).Error
	})
	if txErr != nil {
		return internal.NewInternalError("failed to delete resource", txErr)
	}

	for _, f := range schema.Fields {
		if f.Kind == KindFile {
			if stored, ok := current[f.Key].(string); ok {
				e.storage.Remove(stored)
			}
		}
	}

	e.logger.InfoContext(ctx, "resource deleted", "resource", schema.Key, "id", id)
	return nil
}

// Options loads every selectable value for each relationship-backed
// field, for form rendering.
func (e *Engine) Options(ctx context.Context, key string, roles []string) (map[string][]Option, error) {
	schema, err := e.schemaForView(key, roles)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]Option)
	for _, f := range schema.Fields {
		if !f.IsRelationship() {
			continue
		}
		rel := f.Relationship

		rows, err := e.db.WithContext(ctx).
			Raw(fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY %s`, rel.LabelColumn, rel.RelatedTable, rel.LabelColumn)).
			Rows()
		if err != nil {
			return nil, internal.NewInternalError("failed to load options", err)
		}

		var options []Option
		for rows.Next() {
			var opt Option
			if err := rows.Scan(&opt.ID, &opt.Label); err != nil {
				rows.Close()
				return nil, internal.NewInternalError("failed to scan option", err)
			}
			options = append(options, opt)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, internal.NewInternalError("failed to load options", err)
		}

		result[f.Key] = options
	}
	return result, nil
}

// IsUnique backs the "unique" validation rule with a store lookup.
func (e *Engine) IsUnique(ctx context.Context, table, column string, value interface{}, excludeID int64) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).Table(table).
		Where(column+" = ? AND id <> ?", value, excludeID).
		Count(&count).Error
	return count == 0, err
}

// normalize applies field-kind coercions: booleans absent from the
// payload become false, empty passwords are dropped on update, and
// multi-valued relationship selections become int64 slices.
func (e *Engine) normalize(schema *Schema, payload map[string]interface{}, isUpdate bool) map[string]interface{} {
	normalized := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if schema.FieldByKey(k) != nil {
			normalized[k] = v
		}
	}

	for _, f := range schema.Fields {
		switch {
		case f.Kind == KindBoolean, f.Kind == KindCheckbox && !f.IsRelationship():
			normalized[f.Key] = truthy(normalized[f.Key])
		case f.Kind == KindPassword:
			if s, ok := normalized[f.Key].(string); isUpdate && (!ok || s == "") {
				delete(normalized, f.Key)
			}
		case f.IsMultiValued():
			if _, present := normalized[f.Key]; !present && !isUpdate {
				continue
			}
			// absent on update means "all options unchecked"
			normalized[f.Key] = toIDSlice(normalized[f.Key])
		}
	}
	return normalized
}

// present strips credential values from an outgoing row.
func (e *Engine) present(schema *Schema, row map[string]interface{}) Item {
	for _, f := range schema.Fields {
		if f.Kind == KindPassword {
			delete(row, f.Key)
		}
	}
	return Item(row)
}

// attachRelationships batch-loads the selected IDs for every
// relationship field across a page of items, avoiding per-row queries.
func (e *Engine) attachRelationships(ctx context.Context, schema *Schema, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	index := make(map[int64]Item, len(items))
	for _, item := range items {
		id := toInt64(item["id"])
		ids = append(ids, id)
		index[id] = item
	}

	for _, f := range schema.Fields {
		if !f.IsRelationship() {
			continue
		}
		rel := f.Relationship

		for _, item := range items {
			item[f.Key] = []int64{}
		}

		rows, err := e.db.WithContext(ctx).
			Raw(fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN ?`,
				rel.ForeignKey, rel.RelatedKey, rel.JoinTable, rel.ForeignKey), ids).
			Rows()
		if err != nil {
			return err
		}

		for rows.Next() {
			var ownerID, relatedID int64
			if err := rows.Scan(&ownerID, &relatedID); err != nil {
				rows.Close()
				return err
			}
			if item, ok := index[ownerID]; ok {
				item[f.Key] = append(item[f.Key].([]int64), relatedID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) storeFiles(schema *Schema, payload map[string]interface{}, files map[string]Upload) error {
	for _, f := range schema.Fields {
		if f.Kind != KindFile {
			continue
		}
		upload, ok := files[f.Key]
		if !ok {
			delete(payload, f.Key)
			continue
		}
		stored, err := e.storage.Save(schema.Key, upload.Filename, upload.Content)
		if err != nil {
			return internal.NewInternalError("failed to store upload", err)
		}
		payload[f.Key] = stored
	}
	return nil
}

func (e *Engine) hashPasswords(schema *Schema, payload map[string]interface{}) error {
	for _, f := range schema.Fields {
		if f.Kind != KindPassword {
			continue
		}
		plain, ok := payload[f.Key].(string)
		if !ok || plain == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return internal.NewInternalError("failed to hash password", err)
		}
		payload[f.Key] = string(hash)
	}
	return nil
}

// extractRelations removes multi-valued relationship selections from the
// payload so they never reach the column update, returning them for a
// post-write sync.
func extractRelations(schema *Schema, payload map[string]interface{}) map[string][]int64 {
	relations := make(map[string][]int64)
	for _, f := range schema.Fields {
		if !f.IsMultiValued() {
			continue
		}
		if v, present := payload[f.Key]; present {
			if ids, ok := v.([]int64); ok {
				relations[f.Key] = ids
			} else {
				relations[f.Key] = toIDSlice(v)
			}
			delete(payload, f.Key)
		}
	}
	return relations
}

// syncRelations fully replaces each extracted membership set.
func syncRelations(tx *gorm.DB, schema *Schema, ownerID int64, relations map[string][]int64) error {
	for fieldKey, relatedIDs := range relations {
		f := schema.FieldByKey(fieldKey)
		if f == nil || !f.IsRelationship() {
			continue
		}
		rel := f.Relationship

		if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rel.JoinTable, rel.ForeignKey), ownerID).Error; err != nil {
			return err
		}
		seen := make(map[int64]bool, len(relatedIDs))
		for _, relatedID := range relatedIDs {
			if seen[relatedID] {
				continue
			}
			seen[relatedID] = true
			row := map[string]interface{}{
				rel.ForeignKey: ownerID,
				rel.RelatedKey: relatedID,
			}
			if err := tx.Table(rel.JoinTable).Create(row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// insertRow builds the INSERT by hand so the new identifier comes back
// on every supported dialect.
func insertRow(tx *gorm.DB, table string, payload map[string]interface{}) (int64, error) {
	cols := make([]string, 0, len(payload))
	placeholders := make([]string, 0, len(payload))
	args := make([]interface{}, 0, len(payload))
	for col, val := range payload {
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, val)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := tx.Raw(query, args...).Scan(&id).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	case float64:
		return t != 0
	case int64:
		return t != 0
	}
	return false
}

func toIDSlice(v interface{}) []int64 {
	switch t := v.(type) {
	case nil:
		return []int64{}
	case []int64:
		return t
	case []interface{}:
		ids := make([]int64, 0, len(t))
		for _, raw := range t {
			ids = append(ids, toInt64(raw))
		}
		return ids
	case []string:
		ids := make([]int64, 0, len(t))
		for _, raw := range t {
			ids = append(ids, toInt64(raw))
		}
		return ids
	}
	return []int64{}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var parsed int64
		fmt.Sscanf(t, "%d", &parsed)
		return parsed
	}
	return 0
}
