package plancatalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogJSON = `{
    "vip_plans": [
        {"id": 1, "name": "Mensal", "price": 29.9, "duration_days": 30, "groups": [-100111, -100222]},
        {"id": 2, "name": "Trimestral", "price": 79.9, "duration_days": 90, "groups": [-100111]},
        {"id": 3, "name": "Vitalicio", "price": 299.9, "duration_days": -1, "groups": [-100111]}
    ]
}`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCatalog_List(t *testing.T) {
	catalog := New(writeCatalog(t, catalogJSON))

	plans, err := catalog.List()
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "Mensal", plans[0].Name)
	assert.Equal(t, []int64{-100111, -100222}, plans[0].Groups)
}

func TestCatalog_Plan(t *testing.T) {
	catalog := New(writeCatalog(t, catalogJSON))

	plan, err := catalog.Plan(3)
	require.NoError(t, err)
	assert.Equal(t, "Vitalicio", plan.Name)
	assert.True(t, plan.IsPermanent())

	_, err = catalog.Plan(99)
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCatalog_RereadsFileOnEveryCall(t *testing.T) {
	path := writeCatalog(t, catalogJSON)
	catalog := New(path)

	plan, err := catalog.Plan(1)
	require.NoError(t, err)
	assert.Equal(t, 29.9, plan.Price)

	// Операционное изменение цены вступает в силу без перезапуска.
	updated := `{"vip_plans": [{"id": 1, "name": "Mensal", "price": 39.9, "duration_days": 30, "groups": []}]}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	plan, err = catalog.Plan(1)
	require.NoError(t, err)
	assert.Equal(t, 39.9, plan.Price)
}

func TestCatalog_MissingFile(t *testing.T) {
	catalog := New(filepath.Join(t.TempDir(), "absent.json"))

	_, err := catalog.List()
	require.Error(t, err)
}
