package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/store"
)

func TestLearn_TwiceIncrements(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()
	c := model.Confirmation{Headers: map[string]string{"Correo": "email"}}

	e.Learn(ctx, "org1", "clients", c)
	res := e.Learn(ctx, "org1", "clients", c)
	assert.Equal(t, 1, res.Persisted)

	got, err := st.ListHeaderPatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "clients"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].UsageCount)
}

func TestLearn_ValueTargetOverwrite(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	e.Learn(ctx, "org1", "payments", model.Confirmation{
		Values: map[string]map[string]string{"currency_code": {"Pesos": "uuid-a"}},
	})
	e.Learn(ctx, "org1", "payments", model.Confirmation{
		Values: map[string]map[string]string{"currency_code": {"Pesos": "uuid-b"}},
	})

	got, err := st.ListValuePatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "payments"}, "currency_code")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "uuid-b", got[0].TargetID)
	assert.Equal(t, 2, got[0].UsageCount)
}

func TestLearn_SkipsEmptyTargets(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	res := e.Learn(ctx, "org1", "payments", model.Confirmation{
		Headers: map[string]string{"Observaciones": "", "Moneda": "currency_code"},
		Values: map[string]map[string]string{
			"currency_code": {"Bitcoin": "", "Pesos": "uuid-ars"},
		},
	})
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.NoError(t, res.Err)

	scope := model.Scope{OrganizationID: "org1", Entity: "payments"}
	headers, err := st.ListHeaderPatterns(ctx, scope)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, "Moneda", headers[0].SourceHeader)

	values, err := st.ListValuePatterns(ctx, scope, "")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "Pesos", values[0].SourceValue)
}

func TestLearn_TypedValuesStoredNormalized(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	res := e.Learn(ctx, "org1", "movements", model.Confirmation{
		Values: map[string]map[string]string{
			"contact_email": {" Ana@Obra.com": "uuid-ana"},
			"amount":        {"no es un número": "uuid-x"},
		},
	})
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, 1, res.Skipped)

	got, err := st.ListValuePatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "movements"}, "contact_email")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ana@obra.com", got[0].SourceValue)
}

func TestLearn_SpellingsOfOneKeyCountOnce(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	res := e.Learn(ctx, "org1", "movements", model.Confirmation{
		Values: map[string]map[string]string{
			"contact_email": {
				"A@x.com":   "uuid-a",
				"a@x.com":   "uuid-a",
				" a@X.com ": "uuid-a",
			},
		},
	})
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, 2, res.Skipped)

	got, err := st.ListValuePatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "movements"}, "contact_email")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a@x.com", got[0].SourceValue)
	assert.Equal(t, 1, got[0].UsageCount)
}

func TestLearn_SpellingsOfOneKeyPickTargetDeterministically(t *testing.T) {
	e, st := newSQLiteEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e.Learn(ctx, "org1", "movements", model.Confirmation{
			Values: map[string]map[string]string{
				"contact_email": {"B@x.com": "uuid-upper", "b@x.com": "uuid-lower"},
			},
		})
	}

	got, err := st.ListValuePatterns(ctx, model.Scope{OrganizationID: "org1", Entity: "movements"}, "contact_email")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "uuid-upper", got[0].TargetID)
	assert.Equal(t, 5, got[0].UsageCount)
}

func TestLearn_PartialFailureDoesNotAffectSiblings(t *testing.T) {
	ms := new(mockStore)
	scope := model.Scope{OrganizationID: "org1", Entity: "clients"}
	boom := errors.New("deadlock detected")

	ms.On("UpsertHeaderPattern", mock.Anything, scope, "Correo", "email").Return(nil)
	ms.On("UpsertHeaderPattern", mock.Anything, scope, "Teléfono", "phone").Return(boom)
	ms.On("UpsertHeaderPattern", mock.Anything, scope, "Nombre", "name").Return(nil)
	ms.On("UpsertValuePattern", mock.Anything, scope, "client_type", "Empresa", "uuid-co").Return(nil)

	e := New(ms, nil, Options{})
	res := e.Learn(context.Background(), "org1", "clients", model.Confirmation{
		Headers: map[string]string{"Correo": "email", "Teléfono": "phone", "Nombre": "name"},
		Values:  map[string]map[string]string{"client_type": {"Empresa": "uuid-co"}},
	})

	assert.Equal(t, 3, res.Persisted)
	assert.Equal(t, 1, res.Failed)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, boom)
	ms.AssertExpectations(t)
}

func TestLearn_CollectsEveryFailure(t *testing.T) {
	ms := new(mockStore)
	ms.On("UpsertHeaderPattern", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))

	e := New(ms, nil, Options{Concurrency: 2})
	res := e.Learn(context.Background(), "org1", "clients", model.Confirmation{
		Headers: map[string]string{"a": "name", "b": "email", "c": "phone"},
	})

	assert.Equal(t, 3, res.Failed)
	assert.Len(t, multierr.Errors(res.Err), 3)
}

func TestLearn_WritesSurviveCallerCancel(t *testing.T) {
	ms := new(mockStore)
	var sawLiveCtx atomic.Bool
	ms.On("UpsertHeaderPattern", mock.Anything, mock.Anything, "Correo", "email").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			sawLiveCtx.Store(ctx.Err() == nil)
		}).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(ms, nil, Options{})
	res := e.Learn(ctx, "org1", "clients", model.Confirmation{Headers: map[string]string{"Correo": "email"}})

	assert.Equal(t, 1, res.Persisted)
	assert.True(t, sawLiveCtx.Load(), "upsert must not inherit the caller's cancellation")
}

func TestLearn_TimeoutBoundsWrites(t *testing.T) {
	ms := new(mockStore)
	ms.On("UpsertHeaderPattern", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	e := New(ms, nil, Options{LearnTimeout: 20 * time.Millisecond})
	start := time.Now()
	res := e.Learn(context.Background(), "org1", "clients", model.Confirmation{Headers: map[string]string{"Correo": "email"}})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, res.Failed)
}

func TestLearn_InvalidScope(t *testing.T) {
	ms := new(mockStore)
	e := New(ms, nil, Options{})

	res := e.Learn(context.Background(), "", "clients", model.Confirmation{Headers: map[string]string{"Correo": "email"}})
	assert.ErrorIs(t, res.Err, store.ErrInvalidScope)
	ms.AssertNotCalled(t, "UpsertHeaderPattern", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLearn_ThenResolveRoundTrip(t *testing.T) {
	e, _ := newSQLiteEngine(t)
	ctx := context.Background()

	e.Learn(ctx, "org1", "payments", model.Confirmation{
		Headers: map[string]string{"Moneda": "currency_code"},
		Values:  map[string]map[string]string{"currency_code": {"Pesos": "uuid-ars"}},
	})

	headers := e.ResolveHeaders(ctx, "org1", "payments", []string{"Moneda"})
	assert.Equal(t, "currency_code", headers["Moneda"].Target)

	values := e.ResolveValues(ctx, "org1", "payments", "currency_code", []string{"Pesos"})
	assert.Equal(t, "uuid-ars", values["Pesos"].Target)
}
