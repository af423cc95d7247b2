package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Seed(context.Background(), []Item{
		{
			ItemID: "itm_1", StoreID: "store_1", KioskType: "cafe",
			Name: "Americano", Category: "coffee", Price: 3500, Currency: "KRW",
			OptionGroups:         map[string][]string{"temperature": {"hot", "iced"}, "size": {"S", "M", "L"}},
			RequiredOptionGroups: []string{"temperature"},
			Available:            true,
		},
		{
			ItemID: "itm_2", StoreID: "store_1", KioskType: "cafe",
			Name: "Cheesecake", Category: "dessert", Price: 5500, Currency: "KRW",
			Allergens: []string{"milk", "egg"},
			Available: true,
		},
		{
			ItemID: "itm_3", StoreID: "store_1", KioskType: "cafe",
			Name: "Cafe Latte", Category: "coffee", Price: 4000, Currency: "KRW",
			OptionGroups: map[string][]string{"temperature": {"hot", "iced"}},
			Available:    true,
		},
		{
			ItemID: "itm_4", StoreID: "store_2", KioskType: "cafe",
			Name: "Americano", Category: "coffee", Price: 3000, Currency: "KRW",
			Available: true,
		},
	}))
	return repo
}

func TestGetItemByNameCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item, err := repo.GetItemByName(ctx, "store_1", "cafe", "americano")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Americano", item.Name)
	assert.Equal(t, 3500, item.Price)
	assert.Equal(t, []string{"hot", "iced"}, item.OptionGroups["temperature"])
	assert.Equal(t, []string{"temperature"}, item.RequiredGroups())
}

func TestGetItemByNameScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item, err := repo.GetItemByName(ctx, "store_2", "cafe", "Americano")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 3000, item.Price)

	item, err = repo.GetItemByName(ctx, "store_2", "cafe", "Cheesecake")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGetItemByNameMissingIsNotError(t *testing.T) {
	repo := newTestRepo(t)

	item, err := repo.GetItemByName(context.Background(), "store_1", "cafe", "Flat White")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSearchItemsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	items, err := repo.SearchItems(ctx, "store_1", "cafe", SearchFilter{Category: "coffee"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = repo.SearchItems(ctx, "store_1", "cafe", SearchFilter{BudgetMax: 4000})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.LessOrEqual(t, it.Price, 4000)
	}

	items, err = repo.SearchItems(ctx, "store_1", "cafe", SearchFilter{Query: "cafe"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cafe Latte", items[0].Name)
}

func TestRequiredGroupsInference(t *testing.T) {
	// No explicit list: a temperature group with choices is mandatory.
	it := &Item{OptionGroups: map[string][]string{"temperature": {"hot", "iced"}}}
	assert.Equal(t, []string{"temperature"}, it.RequiredGroups())

	// No option groups at all: nothing required.
	assert.Empty(t, (&Item{}).RequiredGroups())

	// Explicit list wins and is deduplicated.
	it = &Item{RequiredOptionGroups: []string{"size", "size", "temperature"}}
	assert.Equal(t, []string{"size", "temperature"}, it.RequiredGroups())
}
