package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func TestMergeHeaderSeeds(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	got := mergeHeaderSeeds([]model.HeaderPattern{
		{OrganizationID: "org1", Entity: "clients", SourceHeader: "Correo", TargetField: "email", UsageCount: 2},
		{OrganizationID: "org1", Entity: "clients", SourceHeader: "Correo", TargetField: "email", LastUsedAt: later},
		{OrganizationID: "org1", Entity: "clients", SourceHeader: "Correo", TargetField: "notes", UsageCount: 1},
		{OrganizationID: "org1", Entity: "clients", SourceHeader: "Ignorar", TargetField: ""},
		{OrganizationID: "", Entity: "clients", SourceHeader: "Mail", TargetField: "email"},
	}, now)

	require.Len(t, got, 2)
	assert.Equal(t, "email", got[0].TargetField)
	assert.Equal(t, 3, got[0].UsageCount)
	assert.True(t, later.Equal(got[0].LastUsedAt))
	assert.Equal(t, "notes", got[1].TargetField)
	assert.True(t, now.Equal(got[1].LastUsedAt))
}

func TestMergeValueSeeds_LatestTargetWins(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got := mergeValueSeeds([]model.ValuePattern{
		{OrganizationID: "org1", Entity: "payments", CompField: "currency_code", SourceValue: "Pesos", TargetID: "uuid-b", UsageCount: 1, LastUsedAt: now.Add(time.Hour)},
		{OrganizationID: "org1", Entity: "payments", CompField: "currency_code", SourceValue: "Pesos", TargetID: "uuid-a", UsageCount: 4, LastUsedAt: now},
		{OrganizationID: "org1", Entity: "payments", CompField: "currency_code", SourceValue: "BTC", TargetID: ""},
	}, now)

	require.Len(t, got, 1)
	assert.Equal(t, "uuid-b", got[0].TargetID)
	assert.Equal(t, 5, got[0].UsageCount)
}

func TestSortHeaderPatterns(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ps := []model.HeaderPattern{
		{ID: "c", TargetField: "a", UsageCount: 1, LastUsedAt: t0},
		{ID: "b", TargetField: "b", UsageCount: 5, LastUsedAt: t0},
		{ID: "a", TargetField: "c", UsageCount: 5, LastUsedAt: t0},
		{ID: "d", TargetField: "d", UsageCount: 5, LastUsedAt: t0.Add(time.Minute)},
	}
	sortHeaderPatterns(ps)

	var ids []string
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestValidateValue(t *testing.T) {
	scope := model.Scope{OrganizationID: "org1", Entity: "payments"}

	assert.NoError(t, validateValue(scope, "currency_code", "Pesos", "uuid"))
	assert.ErrorIs(t, validateValue(scope, "currency_code", "Pesos", ""), ErrSkipped)
	assert.ErrorIs(t, validateValue(model.Scope{}, "currency_code", "Pesos", "uuid"), ErrInvalidScope)
	assert.Error(t, validateValue(scope, "", "Pesos", "uuid"))
	assert.Error(t, validateValue(scope, "currency_code", "", "uuid"))
}
