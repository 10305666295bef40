package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
	"github.com/osg-htc/topology-institutions-admin/internal/core/listquery"
	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/institutions"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/institutions/fakeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() []domain.Institution {
	return []domain.Institution{
		{ID: domain.FullID("01y2jtd41"), Name: "University of Wisconsin-Madison", UnitID: "240444", State: "WI"},
		{ID: domain.FullID("05gvnxz63"), Name: "Morgridge Institute", Longitude: "-89.4", Latitude: "43.07", State: "WI"},
		{ID: domain.FullID("00hx57361"), Name: "Princeton University", UnitID: "186131", State: "NJ"},
	}
}

func startFake(t *testing.T, records ...domain.Institution) (*fakeapi.Server, *institutions.Client) {
	t.Helper()
	fake := fakeapi.New(records...)
	server := fake.Start()
	t.Cleanup(server.Close)
	return fake, institutions.NewClient(institutions.Config{BaseURL: server.URL}, nil)
}

func names(records []domain.Institution) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

type failingLister struct{}

func (failingLister) List(ctx context.Context) ([]domain.Institution, error) {
	return nil, errors.New("connection refused")
}

type stubChecker struct {
	err   error
	calls []string
}

func (s *stubChecker) Check(ctx context.Context, rorID string) error {
	s.calls = append(s.calls, rorID)
	return s.err
}

// =============================================================================
// List
// =============================================================================

func TestList_RefreshLoadsSortedByName(t *testing.T) {
	_, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{}, nil)
	defer list.Close()

	require.NoError(t, list.Refresh(context.Background()))

	assert.Equal(t, 3, list.Total())
	assert.Equal(t, []string{
		"Morgridge Institute",
		"Princeton University",
		"University of Wisconsin-Madison",
	}, names(list.Visible()))
	assert.Equal(t, listquery.DefaultQuery(), list.Query())
}

func TestList_RefreshError(t *testing.T) {
	list := NewList(failingLister{}, ListConfig{}, nil)
	defer list.Close()

	err := list.Refresh(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh institutions")
	assert.Zero(t, list.Total())
}

func TestList_RefreshPicksUpBackendChanges(t *testing.T) {
	fake, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	_, err := client.Create(context.Background(), domain.Institution{Name: "Fermilab"})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total())

	require.NoError(t, list.Refresh(context.Background()))
	assert.Equal(t, 4, list.Total())
	assert.Equal(t, 2, fake.Requests(http.MethodGet))
}

func TestList_SearchIsDebounced(t *testing.T) {
	_, client := startFake(t, seed()...)

	var mu sync.Mutex
	var changes int
	list := NewList(client, ListConfig{
		Debounce: 30 * time.Millisecond,
		OnChange: func([]listquery.Row) {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	mu.Lock()
	changes = 0
	mu.Unlock()

	list.SetSearch("w")
	list.SetSearch("wi")
	list.SetSearch("wis")
	assert.True(t, list.SearchPending())
	assert.Len(t, list.Visible(), 3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changes == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "wis", list.Query().SearchText)
	assert.Equal(t, []string{"University of Wisconsin-Madison"}, names(list.Visible()))

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, changes)
	mu.Unlock()
}

func TestList_FlushSearch(t *testing.T) {
	_, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{Debounce: time.Hour}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	list.SetSearch("PRINCE")
	assert.True(t, list.FlushSearch())

	assert.Equal(t, []string{"Princeton University"}, names(list.Visible()))
}

func TestList_CloseCancelsPendingSearch(t *testing.T) {
	_, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{Debounce: 10 * time.Millisecond}, nil)
	require.NoError(t, list.Refresh(context.Background()))

	list.SetSearch("morgridge")
	list.Close()
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, list.Query().SearchText)
	assert.Len(t, list.Visible(), 3)
}

func TestList_SortToggle(t *testing.T) {
	_, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	list.Sort(listquery.SortByName)
	assert.Equal(t, listquery.Desc, list.Query().SortDirection)
	assert.Equal(t, "University of Wisconsin-Madison", list.Visible()[0].Name)

	list.Sort(listquery.SortByState)
	assert.Equal(t, listquery.SortByState, list.Query().SortField)
	assert.Equal(t, listquery.Asc, list.Query().SortDirection)
	assert.Equal(t, "NJ", list.Visible()[0].State)
}

func TestList_UnitIDOnlyAndMatchID(t *testing.T) {
	_, client := startFake(t, seed()...)
	list := NewList(client, ListConfig{Debounce: time.Millisecond}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	list.SetUnitIDOnly(true)
	assert.Equal(t, []string{"Princeton University", "University of Wisconsin-Madison"}, names(list.Visible()))

	list.SetUnitIDOnly(false)
	list.SetMatchID(true)
	list.SetSearch("05gvnxz63")
	list.FlushSearch()
	assert.Equal(t, []string{"Morgridge Institute"}, names(list.Visible()))

	rows := list.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "05gvnxz63", rows[0].OSGID)
}

func TestList_InitialQuery(t *testing.T) {
	_, client := startFake(t, seed()...)
	q := listquery.Query{SortField: listquery.SortByName, SortDirection: listquery.Desc}
	list := NewList(client, ListConfig{Query: &q}, nil)
	defer list.Close()
	require.NoError(t, list.Refresh(context.Background()))

	assert.Equal(t, "University of Wisconsin-Madison", list.Visible()[0].Name)
}

// =============================================================================
// Form
// =============================================================================

func TestForm_LiveValidation(t *testing.T) {
	_, client := startFake(t)
	form := NewCreateForm(client)

	assert.Equal(t, validation.MsgNameRequired, form.Errors()[domain.FieldName])

	require.NoError(t, form.Set(domain.FieldName, "Fermilab"))
	require.NoError(t, form.Set(domain.FieldState, "Illinois"))

	assert.Empty(t, form.Errors()[domain.FieldName])
	assert.Equal(t, validation.MsgStateLength, form.Errors()[domain.FieldState])
}

func TestForm_InvalidSubmitSendsNothing(t *testing.T) {
	fake, client := startFake(t)
	form := NewCreateForm(client)
	require.NoError(t, form.Set(domain.FieldUnitID, "12345"))

	created, err := form.Submit(context.Background())

	require.Error(t, err)
	assert.Nil(t, created)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{domain.FieldName, domain.FieldUnitID}, verr.Errors.Fields())
	assert.Zero(t, fake.Requests(http.MethodPost))
	assert.Zero(t, fake.Requests(http.MethodPut))
}

func TestForm_WhitespaceNameIsRejected(t *testing.T) {
	fake, client := startFake(t)
	form := NewCreateForm(client)
	require.NoError(t, form.Set(domain.FieldName, "   "))

	_, err := form.Submit(context.Background())

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, validation.MsgNameRequired, verr.Errors[domain.FieldName])
	assert.Zero(t, fake.Requests(http.MethodPost))
}

func TestForm_CreateAssignsID(t *testing.T) {
	fake, client := startFake(t)
	form := NewCreateForm(client)
	require.NoError(t, form.Set(domain.FieldName, "  Fermilab "))
	require.NoError(t, form.Set(domain.FieldLongitude, "-88.25"))
	require.NoError(t, form.Set(domain.FieldLatitude, "41.84"))
	require.NoError(t, form.Set(domain.FieldState, "IL"))

	created, err := form.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Fermilab", created.Name)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.ID, form.Draft().ID)
	require.Len(t, fake.Records(), 1)
	assert.Equal(t, "Fermilab", fake.Records()[0].Name)
}

func TestForm_UnitIDLocksGeoFields(t *testing.T) {
	_, client := startFake(t)
	form := NewCreateForm(client)

	assert.True(t, form.Editable(domain.FieldState))
	require.NoError(t, form.Set(domain.FieldUnitID, "240444"))

	assert.False(t, form.Editable(domain.FieldState))
	assert.False(t, form.Editable(domain.FieldLongitude))
	assert.True(t, form.Editable(domain.FieldName))
	assert.False(t, form.Editable(domain.FieldID))

	err := form.Set(domain.FieldLatitude, "abc")
	assert.True(t, errors.Is(err, ErrFieldLocked))

	require.NoError(t, form.Set(domain.FieldUnitID, ""))
	assert.NoError(t, form.Set(domain.FieldLatitude, "43.07"))
}

func TestForm_RORCheck(t *testing.T) {
	fake, client := startFake(t)
	checker := &stubChecker{err: errors.New("institution does not exist in the ROR registry")}
	form := NewCreateForm(client, WithRORChecker(checker))
	require.NoError(t, form.Set(domain.FieldName, "Fermilab"))
	require.NoError(t, form.Set(domain.FieldRORID, "https://ror.org/020hgte69"))

	_, err := form.Submit(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify ror id")
	assert.Equal(t, []string{"https://ror.org/020hgte69"}, checker.calls)
	assert.Zero(t, fake.Requests(http.MethodPost))

	checker.err = nil
	_, err = form.Submit(context.Background())
	assert.NoError(t, err)
}

func TestForm_EditAndUpdate(t *testing.T) {
	fake, client := startFake(t, seed()...)
	form, err := LoadEditForm(context.Background(), client, "05gvnxz63")
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, form.Mode())

	require.NoError(t, form.Set(domain.FieldName, "Morgridge Institute for Research"))
	updated, err := form.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.FullID("05gvnxz63"), updated.ID)
	assert.Equal(t, 1, fake.Requests(http.MethodPut))

	got, err := client.Get(context.Background(), "05gvnxz63")
	require.NoError(t, err)
	assert.Equal(t, "Morgridge Institute for Research", got.Name)
	assert.Equal(t, domain.Coordinate("-89.4"), got.Longitude)
}

func TestForm_LoadEditFormNotFound(t *testing.T) {
	_, client := startFake(t)

	_, err := LoadEditForm(context.Background(), client, "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, institutions.ErrNotFound))
}

func TestForm_UpdateWithoutID(t *testing.T) {
	fake, client := startFake(t)
	form := NewEditForm(client, domain.Institution{Name: "Orphan"})

	_, err := form.Submit(context.Background())

	assert.True(t, errors.Is(err, ErrMissingID))
	assert.Zero(t, fake.Requests(http.MethodPut))
}

func TestForm_Delete(t *testing.T) {
	fake, client := startFake(t, seed()...)
	form, err := LoadEditForm(context.Background(), client, domain.FullID("00hx57361"))
	require.NoError(t, err)

	require.NoError(t, form.Delete(context.Background()))
	assert.Len(t, fake.Records(), 2)

	assert.True(t, errors.Is(NewCreateForm(client).Delete(context.Background()), ErrMissingID))
}

func TestForm_ResetAfterCreate(t *testing.T) {
	fake, client := startFake(t)
	form := NewCreateForm(client)

	for _, name := range []string{"Fermilab", "Argonne National Laboratory"} {
		require.NoError(t, form.Set(domain.FieldName, name))
		_, err := form.Submit(context.Background())
		require.NoError(t, err)
		form.Reset()
		assert.Equal(t, domain.Institution{}, form.Draft())
		assert.Equal(t, ModeCreate, form.Mode())
	}

	assert.Len(t, fake.Records(), 2)
}
