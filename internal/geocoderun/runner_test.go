package geocoderun

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/pkg/geocode"
)

type fakeStore struct {
	store.Store
	pending   []model.Job
	limit     int
	updates   map[string]store.GeocodeUpdate
	updateErr error
}

func (f *fakeStore) PendingGeocode(_ context.Context, limit int) ([]model.Job, error) {
	f.limit = limit
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) CountPendingGeocode(context.Context) (int, error) {
	return len(f.pending) - len(f.updates), nil
}

func (f *fakeStore) UpdateGeocode(_ context.Context, id string, u store.GeocodeUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = map[string]store.GeocodeUpdate{}
	}
	f.updates[id] = u
	return nil
}

type fakeClient struct {
	configErr error
	results   map[string]*geocode.Result
	calls     int
}

func (f *fakeClient) Configured() error { return f.configErr }

func (f *fakeClient) GeocodeOnce(_ context.Context, addr string) *geocode.Result {
	f.calls++
	return f.results[addr]
}

func TestRun(t *testing.T) {
	st := &fakeStore{pending: []model.Job{
		{ID: "a", FullAddress: "1 Main Street, Springfield, IL 62704"},
		{ID: "b", FullAddress: "nowhere"},
		{ID: "c"},
	}}
	client := &fakeClient{results: map[string]*geocode.Result{
		"1 Main St, Springfield, IL 62704": {Lat: 39.78, Lng: -89.65, Zip: "62704"},
	}}
	r := New(st, client, Config{Pacing: -1})

	sum, err := r.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultLimit, st.limit)
	assert.Equal(t, 3, sum.Attempted)
	assert.Equal(t, 1, sum.Success)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 0, sum.Remaining)
	assert.Equal(t, 2, client.calls, "empty address never reaches the client")

	require.NotNil(t, st.updates["a"].Lat)
	assert.Equal(t, model.GeocodeOK, st.updates["a"].Status)
	assert.Equal(t, "62704", st.updates["a"].Zip)
	assert.Equal(t, model.GeocodeNoMatch, st.updates["b"].Status)
	assert.Equal(t, model.GeocodeSkipped, st.updates["c"].Status)
}

func TestRun_NotConfigured(t *testing.T) {
	st := &fakeStore{pending: []model.Job{{ID: "a", FullAddress: "x"}}}
	client := &fakeClient{configErr: geocode.ErrNotConfigured}

	_, err := New(st, client, Config{Pacing: -1}).Run(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, eris.Is(err, geocode.ErrNotConfigured))
	assert.Zero(t, client.calls)
	assert.Zero(t, st.limit, "store is not queried")
}

func TestRun_UpdateError(t *testing.T) {
	st := &fakeStore{
		pending:   []model.Job{{ID: "a", FullAddress: "x"}, {ID: "b", FullAddress: "y"}},
		updateErr: errors.New("deadlock"),
	}
	client := &fakeClient{}

	sum, err := New(st, client, Config{Pacing: -1}).Run(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update job a")
	assert.Equal(t, 1, sum.Attempted)
}

func TestClampLimit(t *testing.T) {
	r := New(nil, nil, Config{})

	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-3, 50},
		{1, 1},
		{120, 120},
		{500, 500},
		{10000, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.ClampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestRun_RespectsLimit(t *testing.T) {
	st := &fakeStore{pending: []model.Job{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	sum, err := New(st, &fakeClient{}, Config{Pacing: -1}).Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, st.limit)
	assert.Equal(t, 2, sum.Attempted)
	assert.Equal(t, 1, sum.Remaining)
}

func TestRun_MissKeepsExistingCoordinates(t *testing.T) {
	lat, lng := 39.78, -89.65
	st := &fakeStore{pending: []model.Job{
		{ID: "a", FullAddress: "Springfield IL", Lat: &lat, Lng: &lng, NeedsGeocode: true},
	}}

	sum, err := New(st, &fakeClient{}, Config{Pacing: -1}).Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	u := st.updates["a"]
	assert.Equal(t, model.GeocodeNoMatch, u.Status)
	require.NotNil(t, u.Lat)
	require.NotNil(t, u.Lng)
	assert.InDelta(t, lat, *u.Lat, 1e-9)
	assert.InDelta(t, lng, *u.Lng, 1e-9)
}

func TestRun_MissKeepsStoredCoordinatesSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	lat, lng := 39.78, -89.65
	_, err = st.Upsert(ctx, []model.Job{{
		Name: "Ada", ServiceDate: "2024-01-05", Price: 10,
		FullAddress: "Springfield IL", Lat: &lat, Lng: &lng,
		NeedsGeocode: true, GeocodeStatus: model.GeocodePending,
	}})
	require.NoError(t, err)

	sum, err := New(st, &fakeClient{}, Config{Pacing: -1}).Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Attempted)

	jobs, err := st.Select(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.GeocodeNoMatch, jobs[0].GeocodeStatus)
	require.True(t, jobs[0].HasCoordinates())
	assert.InDelta(t, lat, *jobs[0].Lat, 1e-9)
	assert.InDelta(t, lng, *jobs[0].Lng, 1e-9)
}
