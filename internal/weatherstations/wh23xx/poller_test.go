package wh23xx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResult struct {
	raw []byte
	err error
}

// fakeReader hands out scripted GetCurrent results, then repeats the last one
type fakeReader struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
}

func (f *fakeReader) GetCurrent(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.raw, r.err
}

func (f *fakeReader) StationName() string {
	return "fake"
}

func rainTotals(tenths uint32) []byte {
	return []byte{ItemRainTotals, byte(tenths >> 24), byte(tenths >> 16), byte(tenths >> 8), byte(tenths)}
}

func newTestPoller(ctx context.Context, wg *sync.WaitGroup, r CurrentReader, out chan<- Sample, m *Metrics) *Poller {
	p := NewPoller(ctx, wg, r, 10*time.Millisecond, out, m, zap.NewNop().Sugar())
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func TestPollRainDelta(t *testing.T) {
	r := &fakeReader{results: []fakeResult{
		{raw: rainTotals(1221)},
		{raw: rainTotals(1225)},
		{raw: []byte{0x06, 0x32}},
		{raw: rainTotals(1230)},
		{raw: rainTotals(100)},
		{raw: rainTotals(104)},
	}}
	p := newTestPoller(context.Background(), &sync.WaitGroup{}, r, nil, nil)

	tests := []struct {
		name      string
		wantValid bool
		wantRain  float64
	}{
		{"first sample has no baseline", false, 0},
		{"counter increased", true, 0.4},
		{"counter missing", false, 0},
		{"baseline lost with missing counter", false, 0},
		{"counter reset", false, 0},
		{"after reset", true, 0.4},
	}
	for _, tt := range tests {
		s, ok, err := p.Poll()
		require.NoError(t, err, tt.name)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.wantValid, s.RainValid, tt.name)
		if tt.wantValid {
			assert.InDelta(t, tt.wantRain, s.Rain, 1e-9, tt.name)
		}
		assert.Equal(t, "fake", s.StationName)
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), s.Timestamp)
	}
}

func TestPollNoData(t *testing.T) {
	r := &fakeReader{results: []fakeResult{{raw: nil}}}
	p := newTestPoller(context.Background(), &sync.WaitGroup{}, r, nil, nil)

	_, ok, err := p.Poll()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPollDecodeError(t *testing.T) {
	r := &fakeReader{results: []fakeResult{{raw: []byte{0x30, 0x00}}}}
	m := NewMetrics(prometheus.NewRegistry())
	p := newTestPoller(context.Background(), &sync.WaitGroup{}, r, nil, m)

	_, ok, err := p.Poll()
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors))
}

func TestPollerDeliversSamples(t *testing.T) {
	r := &fakeReader{results: []fakeResult{
		{raw: nil},
		{raw: []byte{0x02, 0x02, 0x13}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	out := make(chan Sample)

	p := newTestPoller(ctx, wg, r, out, nil)
	require.NoError(t, p.StartWeatherStation())
	assert.Equal(t, "fake", p.StationName())

	select {
	case s := <-out:
		v, ok := s.Observations.Value("out_temp")
		require.True(t, ok)
		assert.InDelta(t, 13.1, v, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no sample delivered")
	}

	cancel()
	waitGroupDone(t, wg)
}

func TestPollerStopsWhenTransportGone(t *testing.T) {
	r := &fakeReader{results: []fakeResult{{err: ErrTransportUnavailable}}}
	wg := &sync.WaitGroup{}

	p := newTestPoller(context.Background(), wg, r, make(chan Sample), nil)
	require.NoError(t, p.StartWeatherStation())
	waitGroupDone(t, wg)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 1, r.calls)
}

func waitGroupDone(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}
