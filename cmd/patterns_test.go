package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/importfile"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
)

func sheetFromCSV(t *testing.T, data string) *importfile.Sheet {
	t.Helper()
	sheet, err := importfile.ReadCSV(context.Background(), strings.NewReader(data), importfile.Options{})
	require.NoError(t, err)
	return sheet
}

func TestParseHeaderSeeds(t *testing.T) {
	sheet := sheetFromCSV(t, "organization_id,entity,source_header,target_field,usage_count,last_used_at\n"+
		"org1,clients,Correo,email,7,2024-03-01\n"+
		"org1,clients,Mail,email,,\n")

	got, err := parseHeaderSeeds(sheet)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Correo", got[0].SourceHeader)
	assert.Equal(t, 7, got[0].UsageCount)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got[0].LastUsedAt.UTC())

	assert.Equal(t, 0, got[1].UsageCount, "zero count is defaulted by the store")
	assert.True(t, got[1].LastUsedAt.IsZero())
}

func TestParseHeaderSeeds_MissingColumns(t *testing.T) {
	sheet := sheetFromCSV(t, "organization_id,source_header\norg1,Correo\n")

	_, err := parseHeaderSeeds(sheet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity")
	assert.Contains(t, err.Error(), "target_field")
}

func TestParseHeaderSeeds_BadUsageCount(t *testing.T) {
	sheet := sheetFromCSV(t, "organization_id,entity,source_header,target_field,usage_count\norg1,clients,Correo,email,many\n")

	_, err := parseHeaderSeeds(sheet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseValueSeeds_NormalizesTypedFields(t *testing.T) {
	schema, err := registry.Builtin()
	require.NoError(t, err)

	sheet := sheetFromCSV(t, "organization_id,entity,comp_field,source_value,target_id\n"+
		"org1,payments,currency_code,Pesos,uuid-ars\n"+
		"org1,clients,email,  Ana@Example.COM ,uuid-ana\n"+
		"org1,payments,amount,not money,uuid-x\n")

	got, err := parseValueSeeds(sheet, schema)
	require.NoError(t, err)
	require.Len(t, got, 2, "unparseable typed value is dropped")

	assert.Equal(t, "Pesos", got[0].SourceValue)
	assert.Equal(t, "uuid-ars", got[0].TargetID)
	assert.Equal(t, "ana@example.com", got[1].SourceValue)
}

func TestReadSeedCSV_CommentsAndPadding(t *testing.T) {
	useTestConfig(t)

	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"# exported 2024-03-01; legacy system\n"+
			"organization_id, entity, source_header, target_field\n"+
			"# clients\n"+
			"org1 , clients,  Correo , email\n"), 0o644))

	sheet, err := readSeedCSV(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"organization_id", "entity", "source_header", "target_field"}, sheet.Headers)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, []string{"org1", "clients", "Correo", "email"}, sheet.Rows[0])
}

func TestSeedThenList(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"organization_id,entity,source_header,target_field,usage_count\n"+
			"org1,payments,Monto,amount,3\n"+
			"org1,payments,Monto,amount,2\n"), 0o644))

	sheet, err := readSeedCSV(ctx, path)
	require.NoError(t, err)
	patterns, err := parseHeaderSeeds(sheet)
	require.NoError(t, err)

	env, err := initEnv(ctx, "cli")
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Store.SeedHeaderPatterns(ctx, patterns)
	require.NoError(t, err)

	got, err := env.Store.ListHeaderPatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "payments"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].UsageCount)
}
