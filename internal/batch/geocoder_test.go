package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/pkg/geocode"
)

type fakeClient struct {
	mu       sync.Mutex
	results  map[string]*geocode.Result
	calls    []string
	delay    time.Duration
	delayFor func(addr string) time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeClient) Configured() error { return nil }

func (f *fakeClient) GeocodeOnce(_ context.Context, addr string) *geocode.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.delayFor != nil {
		time.Sleep(f.delayFor(addr))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, addr)
	return f.results[addr]
}

func ptr(v float64) *float64 { return &v }

func TestRun_PerRowPolicy(t *testing.T) {
	client := &fakeClient{results: map[string]*geocode.Result{
		"1 Main St, Springfield, IL 00000": {Lat: 39.78, Lng: -89.65, Zip: "62704"},
		"9 Elm St, Chicago, IL":            {Lat: 41.88, Lng: -87.63},
	}}
	jobs := []model.Job{
		{Name: "hit", Street: "1 Main Street", City: "Springfield", State: "IL", Zip: "00000", NeedsGeocode: true},
		{Name: "keep zip", FullAddress: "9 Elm St, Chicago, IL", Zip: "60601", NeedsGeocode: true},
		{Name: "miss", FullAddress: "nowhere", NeedsGeocode: true},
		{Name: "empty", NeedsGeocode: true},
		{Name: "resolved", FullAddress: "already", Lat: ptr(1), Lng: ptr(2)},
	}

	out, sum := NewGeocoder(client).Run(context.Background(), jobs, nil, Options{Pacing: -1})

	require.Len(t, out, 5)
	for i := range jobs {
		assert.Equal(t, jobs[i].Name, out[i].Name, "order preserved")
	}

	assert.Equal(t, model.GeocodeOK, out[0].GeocodeStatus)
	require.NotNil(t, out[0].Lat)
	assert.InDelta(t, 39.78, *out[0].Lat, 1e-9)
	assert.Equal(t, "62704", out[0].Zip)
	assert.False(t, out[0].NeedsGeocode)

	assert.Equal(t, "60601", out[1].Zip, "zip kept when provider returns none")
	assert.Equal(t, model.GeocodeOK, out[1].GeocodeStatus)

	assert.Equal(t, model.GeocodeNoMatch, out[2].GeocodeStatus)
	assert.Nil(t, out[2].Lat)
	assert.False(t, out[2].NeedsGeocode)

	assert.Equal(t, model.GeocodeSkipped, out[3].GeocodeStatus)
	assert.False(t, out[3].NeedsGeocode)

	assert.InDelta(t, 1, *out[4].Lat, 1e-9)

	assert.NotContains(t, client.calls, "already")
	assert.Len(t, client.calls, 3)
	assert.Equal(t, model.GeocodeSummary{Attempted: 4, Success: 2, Failed: 2}, sum)

	assert.True(t, jobs[0].NeedsGeocode, "input slice is not modified")
	assert.Nil(t, jobs[0].Lat)
}

func TestRun_CustomAddressFunc(t *testing.T) {
	client := &fakeClient{results: map[string]*geocode.Result{
		"custom": {Lat: 1, Lng: 1},
	}}
	out, sum := NewGeocoder(client).Run(context.Background(),
		[]model.Job{{Name: "a"}},
		func(model.Job) string { return " custom " },
		Options{Pacing: -1},
	)
	assert.Equal(t, model.GeocodeOK, out[0].GeocodeStatus)
	assert.Equal(t, 1, sum.Success)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	client := &fakeClient{delay: 5 * time.Millisecond, results: map[string]*geocode.Result{}}
	jobs := make([]model.Job, 20)
	for i := range jobs {
		jobs[i] = model.Job{FullAddress: fmt.Sprintf("%d Oak Ave", i)}
	}

	_, sum := NewGeocoder(client).Run(context.Background(), jobs, nil, Options{Concurrency: 3, Pacing: time.Millisecond})

	assert.Equal(t, 20, sum.Attempted)
	assert.LessOrEqual(t, client.peak.Load(), int32(3))
	assert.Len(t, client.calls, 20)
}

func TestRun_WorkersCappedByRows(t *testing.T) {
	client := &fakeClient{delay: 5 * time.Millisecond, results: map[string]*geocode.Result{}}
	jobs := []model.Job{{FullAddress: "a"}, {FullAddress: "b"}}

	NewGeocoder(client).Run(context.Background(), jobs, nil, Options{Concurrency: 50, Pacing: -1})

	assert.LessOrEqual(t, client.peak.Load(), int32(2))
}

func TestRun_Progress(t *testing.T) {
	client := &fakeClient{results: map[string]*geocode.Result{}}
	jobs := []model.Job{
		{FullAddress: "a"},
		{FullAddress: "b", Lat: ptr(1), Lng: ptr(1)},
		{},
		{FullAddress: "c"},
	}

	var seen []int
	NewGeocoder(client).Run(context.Background(), jobs, nil, Options{
		Concurrency: 4,
		Pacing:      -1,
		Progress: func(done, total int) {
			assert.Equal(t, 4, total)
			seen = append(seen, done)
		},
	})

	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestRun_Empty(t *testing.T) {
	out, sum := NewGeocoder(&fakeClient{}).Run(context.Background(), nil, nil, Options{})
	assert.Empty(t, out)
	assert.Zero(t, sum)
}

func TestRun_OutOfOrderCompletion(t *testing.T) {
	const n = 8
	results := map[string]*geocode.Result{}
	jobs := make([]model.Job, n)
	delays := map[string]time.Duration{}
	for i := range jobs {
		addr := fmt.Sprintf("%d Main St", i)
		jobs[i] = model.Job{Name: fmt.Sprintf("job-%d", i), FullAddress: addr}
		results[addr] = &geocode.Result{Lat: float64(i), Lng: float64(-i), Zip: fmt.Sprintf("%05d", i)}
		// Later rows finish first.
		delays[addr] = time.Duration(n-i) * 4 * time.Millisecond
	}
	client := &fakeClient{results: results, delayFor: func(addr string) time.Duration { return delays[addr] }}

	out, sum := NewGeocoder(client).Run(context.Background(), jobs, nil, Options{Concurrency: n, Pacing: -1})

	assert.Equal(t, n, sum.Success)
	require.Len(t, client.calls, n)
	assert.NotEqual(t, "0 Main St", client.calls[0], "rows complete out of claim order")
	for i := range jobs {
		assert.Equal(t, jobs[i].Name, out[i].Name)
		require.NotNil(t, out[i].Lat, "row %d", i)
		assert.InDelta(t, float64(i), *out[i].Lat, 1e-9, "row %d", i)
		assert.InDelta(t, float64(-i), *out[i].Lng, 1e-9, "row %d", i)
		assert.Equal(t, fmt.Sprintf("%05d", i), out[i].Zip)
	}
}
