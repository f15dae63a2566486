package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func TestGetHeaderPatterns_FirstWins(t *testing.T) {
	ms := new(mockStore)
	scope := model.Scope{OrganizationID: "org1", Entity: "clients"}
	ms.On("ListHeaderPatterns", mock.Anything, scope).Return([]model.HeaderPattern{
		{ID: "2", SourceHeader: "Nombre", TargetField: "name", UsageCount: 10},
		{ID: "1", SourceHeader: "Nombre", TargetField: "notes", UsageCount: 5},
		{ID: "3", SourceHeader: "Correo", TargetField: "email", UsageCount: 1},
	}, nil)

	e := New(ms, nil, Options{})
	got, err := e.GetHeaderPatterns(context.Background(), "org1", "clients")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Nombre": "name", "Correo": "email"}, got)
}

func TestGetHeaderPatterns_PropagatesError(t *testing.T) {
	ms := new(mockStore)
	ms.On("ListHeaderPatterns", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	e := New(ms, nil, Options{})
	_, err := e.GetHeaderPatterns(context.Background(), "org1", "clients")
	assert.Error(t, err)
}

func TestGetValuePatterns_OneField(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()
	scope := model.Scope{OrganizationID: "org1", Entity: "payments"}

	require.NoError(t, st.UpsertValuePattern(ctx, scope, "currency_code", "Pesos", "uuid-ars"))
	require.NoError(t, st.UpsertValuePattern(ctx, scope, "wallet_name", "Pesos", "uuid-wallet"))

	got, err := e.GetValuePatterns(ctx, "org1", "payments", "currency_code")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Pesos": "uuid-ars"}, got)

	empty, err := e.GetValuePatterns(ctx, "org1", "payments", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetAllValuePatternsForEntity_SingleFetch(t *testing.T) {
	ms := new(mockStore)
	now := time.Now()
	ms.On("ListValuePatterns", mock.Anything, model.Scope{OrganizationID: "org1", Entity: "payments"}, "").
		Return([]model.ValuePattern{
			{CompField: "currency_code", SourceValue: "Pesos", TargetID: "uuid-ars", UsageCount: 4, LastUsedAt: now},
			{CompField: "wallet_name", SourceValue: "Caja", TargetID: "uuid-w", UsageCount: 2, LastUsedAt: now},
			{CompField: "currency_code", SourceValue: "Pesos", TargetID: "uuid-old", UsageCount: 1, LastUsedAt: now},
		}, nil).Once()

	e := New(ms, nil, Options{})
	got, err := e.GetAllValuePatternsForEntity(context.Background(), "org1", "payments")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]string{
		"currency_code": {"Pesos": "uuid-ars"},
		"wallet_name":   {"Caja": "uuid-w"},
	}, got)
	ms.AssertExpectations(t)
}

func TestConfidence(t *testing.T) {
	assert.Zero(t, Confidence(0, 2))
	assert.InDelta(t, 0.5, Confidence(2, 2), 1e-9)
	assert.InDelta(t, 0.6, Confidence(3, 2), 1e-9)
	assert.InDelta(t, 1.0/3.0, Confidence(1, 0), 1e-9)

	prev := 0.0
	for n := 1; n <= 50; n++ {
		c := Confidence(n, 2)
		assert.Greater(t, c, prev)
		assert.Less(t, c, 1.0)
		prev = c
	}
}
