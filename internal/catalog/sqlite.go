package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteRepo implements Repo over a local SQLite menu database. Small
// stores run fine on SQLite; swapping in Postgres later only touches
// this file.
type SQLiteRepo struct {
	db *sql.DB
}

const menuDDL = `
CREATE TABLE IF NOT EXISTS menu_items (
	item_id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL,
	kiosk_type TEXT NOT NULL,

	name TEXT NOT NULL,
	category TEXT NOT NULL,
	price INTEGER,
	currency TEXT DEFAULT 'USD',

	option_groups_json TEXT,
	required_option_groups_json TEXT,

	tags_json TEXT,
	dietary TEXT,
	allergens_json TEXT,

	available INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_menu_items_scope
ON menu_items(store_id, kiosk_type);

CREATE INDEX IF NOT EXISTS idx_menu_items_name
ON menu_items(store_id, kiosk_type, name);
`

// NewSQLiteRepo opens the menu database and ensures the schema exists.
func NewSQLiteRepo(dbPath string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if _, err := db.Exec(menuDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure catalog schema: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

// Close closes the underlying database.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const itemColumns = `item_id, store_id, kiosk_type, name, category,
	COALESCE(price, 0), COALESCE(currency, 'USD'),
	option_groups_json, required_option_groups_json,
	tags_json, COALESCE(dietary, ''), allergens_json, available`

// GetItemByName resolves an item by exact name, case-insensitive.
func (r *SQLiteRepo) GetItemByName(ctx context.Context, storeID, kioskType, name string) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM menu_items
		WHERE store_id = ? AND kiosk_type = ? AND name = ? COLLATE NOCASE
		LIMIT 1`,
		storeID, kioskType, name)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog item: %w", err)
	}
	return item, nil
}

// SearchItems runs a filtered search for the recommendation flow. Query
// matching is prefix-based so the name index stays usable.
func (r *SQLiteRepo) SearchItems(ctx context.Context, storeID, kioskType string, filter SearchFilter) ([]Item, error) {
	where := []string{"store_id = ?", "kiosk_type = ?", "available = 1"}
	args := []any{storeID, kioskType}

	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "name LIKE ? COLLATE NOCASE")
		args = append(args, q+"%")
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, c)
	}
	if filter.BudgetMax > 0 {
		where = append(where, "(price IS NULL OR price <= ?)")
		args = append(args, filter.BudgetMax)
	}
	if d := strings.TrimSpace(filter.Dietary); d != "" {
		where = append(where, "dietary = ? COLLATE NOCASE")
		args = append(args, d)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 12
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM menu_items
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY name
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		// Temperature filter lives in JSON, applied after the scan.
		if t := strings.TrimSpace(filter.Temperature); t != "" {
			if len(item.OptionGroups["temperature"]) == 0 {
				continue
			}
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Seed replaces the rows for a store scope. Used by the seeder command
// and tests.
func (r *SQLiteRepo) Seed(ctx context.Context, items []Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		available := 0
		if it.Available {
			available = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO menu_items (
				item_id, store_id, kiosk_type, name, category, price, currency,
				option_groups_json, required_option_groups_json,
				tags_json, dietary, allergens_json, available
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ItemID, it.StoreID, it.KioskType, it.Name, it.Category, it.Price, it.Currency,
			marshalJSON(it.OptionGroups), marshalJSON(it.RequiredOptionGroups),
			marshalJSON(it.Tags), it.Dietary, marshalJSON(it.Allergens), available)
		if err != nil {
			return fmt.Errorf("failed to seed item %q: %w", it.Name, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var ogJSON, reqJSON, tagsJSON, allergensJSON sql.NullString
	var available int

	err := row.Scan(
		&it.ItemID, &it.StoreID, &it.KioskType, &it.Name, &it.Category,
		&it.Price, &it.Currency,
		&ogJSON, &reqJSON, &tagsJSON, &it.Dietary, &allergensJSON, &available)
	if err != nil {
		return nil, err
	}

	it.Available = available == 1
	unmarshalJSON(ogJSON, &it.OptionGroups)
	unmarshalJSON(reqJSON, &it.RequiredOptionGroups)
	unmarshalJSON(tagsJSON, &it.Tags)
	unmarshalJSON(allergensJSON, &it.Allergens)
	return &it, nil
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalJSON(s sql.NullString, dest any) {
	if !s.Valid || s.String == "" {
		return
	}
	// Malformed JSON in a seeded row degrades to an empty field.
	_ = json.Unmarshal([]byte(s.String), dest)
}
