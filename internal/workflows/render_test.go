package workflows

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image-handler/internal/config"
	"github.com/tendant/simple-image-handler/internal/filters"
	"github.com/tendant/simple-image-handler/internal/logging"
	"github.com/tendant/simple-image-handler/internal/metrics"
	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/internal/registry"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

// recorder collects the order in which collaborators are called.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeProvider struct {
	rec   *recorder
	data  []byte
	err   error
	delay time.Duration
	count atomic.Int32
}

func (p *fakeProvider) Fetch(ctx context.Context, locator string) ([]byte, error) {
	p.count.Add(1)
	p.rec.add("fetch:" + locator)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.data, p.err
}

type fakeTool struct {
	rec       *recorder
	out       []byte
	decodeErr error
	filterErr error
}

func (t *fakeTool) Decode(ctx context.Context, data []byte) (*tool.Image, error) {
	t.rec.add("decode")
	if t.decodeErr != nil {
		return nil, t.decodeErr
	}
	return &tool.Image{Source: data, Format: "png"}, nil
}

func (t *fakeTool) ApplyFilters(ctx context.Context, ps *params.Set, img *tool.Image) (bool, error) {
	t.rec.add("filter")
	if t.filterErr != nil {
		return false, t.filterErr
	}
	img.Modified = true
	return true, nil
}

func (t *fakeTool) Encode(ctx context.Context, ps *params.Set, img *tool.Image) (*tool.Output, error) {
	t.rec.add("encode")
	return &tool.Output{Data: t.out, Format: "png", ContentType: "image/png"}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	rec       *recorder
	data      map[params.Key][]byte
	lookupErr error
	writeErr  error
}

func (s *fakeStore) Lookup(ctx context.Context, key params.Key) ([]byte, bool, error) {
	s.rec.add("lookup")
	if s.lookupErr != nil {
		return nil, false, s.lookupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *fakeStore) Write(ctx context.Context, key params.Key, data []byte) error {
	s.rec.add("write")
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

type fakeComponents struct {
	provider storage.Provider
	tool     tool.Tool
	store    storage.Store
}

func (c *fakeComponents) Provider() (storage.Provider, error) { return c.provider, nil }
func (c *fakeComponents) Tool() (tool.Tool, error)            { return c.tool, nil }
func (c *fakeComponents) Store() (storage.Store, error)       { return c.store, nil }

type fakeLedger struct{ keys []params.Key }

func (l *fakeLedger) Record(ctx context.Context, key params.Key, source string) (int, error) {
	l.keys = append(l.keys, key)
	return len(l.keys), nil
}

type fixture struct {
	rec      *recorder
	provider *fakeProvider
	tool     *fakeTool
	store    *fakeStore
	metrics  *metrics.Recorder
	workflow *RenderWorkflow
}

func newFixture(opts ...RenderOption) *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		provider: &fakeProvider{rec: rec, data: []byte("source")},
		tool:     &fakeTool{rec: rec, out: []byte("rendered")},
		store:    &fakeStore{rec: rec, data: make(map[params.Key][]byte)},
		metrics:  metrics.New(),
	}
	components := &fakeComponents{provider: f.provider, tool: f.tool, store: f.store}
	opts = append([]RenderOption{WithMetrics(f.metrics)}, opts...)
	f.workflow = NewRenderWorkflow(components, logging.Discard(), opts...)
	return f
}

func srcParams(src string, kv ...string) *params.Set {
	ps := params.New()
	ps.Set("src", src)
	for i := 0; i+1 < len(kv); i += 2 {
		ps.Set(kv[i], kv[i+1])
	}
	return ps
}

func TestRender_MissOrder(t *testing.T) {
	f := newFixture()

	res, err := f.workflow.Render(context.Background(), srcParams("a.png", "width", "10"))
	require.NoError(t, err)

	assert.False(t, res.Hit)
	assert.Equal(t, []byte("rendered"), res.Data)
	assert.Equal(t, "image/png", res.ContentType)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"lookup", "fetch:a.png", "decode", "filter", "encode", "write"}, f.rec.list())
	assert.Equal(t, []byte("rendered"), f.store.data[res.Key])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests().WithLabelValues(metrics.ResultMiss)))
}

func TestRender_HitSkipsProviderAndTool(t *testing.T) {
	f := newFixture()
	ps := srcParams("a.png", "width", "10")
	png := encodePNG(t, 2, 2)
	f.store.data[ps.DeriveKey()] = png

	res, err := f.workflow.Render(context.Background(), ps)
	require.NoError(t, err)

	assert.True(t, res.Hit)
	assert.Equal(t, png, res.Data)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, []string{"lookup"}, f.rec.list())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests().WithLabelValues(metrics.ResultHit)))
}

func TestRender_SecondRequestHits(t *testing.T) {
	f := newFixture()
	ps := srcParams("a.png")

	first, err := f.workflow.Render(context.Background(), ps)
	require.NoError(t, err)
	second, err := f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)

	assert.False(t, first.Hit)
	assert.True(t, second.Hit)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, int32(1), f.provider.count.Load())
}

func TestRender_WriteFailureStillReturnsBytes(t *testing.T) {
	f := newFixture()
	f.store.writeErr = errors.New("disk full")

	res, err := f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), res.Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreErrors().WithLabelValues(metrics.OpWrite)))
}

func TestRender_LookupFailureIsMiss(t *testing.T) {
	f := newFixture()
	f.store.lookupErr = errors.New("connection reset")

	res, err := f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, []string{"lookup", "fetch:a.png", "decode", "filter", "encode", "write"}, f.rec.list())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreErrors().WithLabelValues(metrics.OpLookup)))
}

func TestRender_ProviderErrorNothingCached(t *testing.T) {
	f := newFixture()
	f.provider.err = storage.ErrNotFound

	_, err := f.workflow.Render(context.Background(), srcParams("missing.png"))
	var pe *storage.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "missing.png", pe.Locator)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotContains(t, f.rec.list(), "write")
	assert.NotContains(t, f.rec.list(), "decode")
	assert.Empty(t, f.store.data)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests().WithLabelValues(metrics.ResultError)))
}

func TestRender_ToolAndFilterErrorsNothingCached(t *testing.T) {
	f := newFixture()
	f.tool.decodeErr = &tool.ToolError{Op: tool.OpDecode, Err: tool.ErrUnsupportedFormat}

	_, err := f.workflow.Render(context.Background(), srcParams("a.txt"))
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, f.store.data)

	f = newFixture()
	f.tool.filterErr = &filters.FilterError{Filter: "crop", Err: filters.ErrInvalidParameter}

	_, err = f.workflow.Render(context.Background(), srcParams("a.png"))
	var fe *filters.FilterError
	require.ErrorAs(t, err, &fe)
	assert.NotContains(t, f.rec.list(), "write")
}

func TestRender_MissingSource(t *testing.T) {
	f := newFixture()

	_, err := f.workflow.Render(context.Background(), params.FromMap(map[string]string{"width": "10"}))
	assert.ErrorIs(t, err, ErrMissingSource)
	assert.Empty(t, f.rec.list())
}

func TestRender_KeyLength(t *testing.T) {
	f := newFixture(WithKeyLength(16))

	res, err := f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)
	assert.Len(t, res.Key.String(), 16)
}

func TestRender_Ledger(t *testing.T) {
	ledger := &fakeLedger{}
	f := newFixture(WithLedger(ledger))

	res, err := f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)
	_, err = f.workflow.Render(context.Background(), srcParams("a.png"))
	require.NoError(t, err)

	assert.Equal(t, []params.Key{res.Key}, ledger.keys)
}

func TestRender_ConcurrentMissesWithoutCoalescing(t *testing.T) {
	f := newFixture()
	f.provider.delay = 20 * time.Millisecond

	runConcurrently(t, f.workflow, 8)
	assert.Equal(t, int32(8), f.provider.count.Load())
}

func TestRender_CoalescedMisses(t *testing.T) {
	f := newFixture(WithCoalescing(true))
	f.provider.delay = 50 * time.Millisecond

	results := runConcurrently(t, f.workflow, 8)
	assert.Equal(t, int32(1), f.provider.count.Load())

	runIDs := make(map[string]struct{})
	for _, r := range results {
		assert.Equal(t, []byte("rendered"), r.Data)
		runIDs[r.RunID] = struct{}{}
	}
	assert.Len(t, runIDs, 8)
}

func TestRender_CoalescedMissSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(WithCoalescing(true))
	f.provider.delay = 200 * time.Millisecond

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.workflow.Render(firstCtx, srcParams("a.png"))
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.provider.count.Load() == 1 }, time.Second, time.Millisecond)

	secondRes := make(chan *Result, 1)
	secondErr := make(chan error, 1)
	go func() {
		res, err := f.workflow.Render(context.Background(), srcParams("a.png"))
		secondRes <- res
		secondErr <- err
	}()
	time.Sleep(30 * time.Millisecond)
	cancelFirst()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	require.NoError(t, <-secondErr)
	res := <-secondRes
	assert.Equal(t, []byte("rendered"), res.Data)
	assert.Equal(t, int32(1), f.provider.count.Load())
}

func runConcurrently(t *testing.T, w *RenderWorkflow, n int) []*Result {
	t.Helper()
	results := make([]*Result, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := w.Render(context.Background(), srcParams("a.png"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 3), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestRender_EndToEndWithRegistry(t *testing.T) {
	srcDir := t.TempDir()
	source := encodePNG(t, 64, 32)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "photo.png"), source, 0o644))

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Provider.BasePath = srcDir

	reg := registry.New(registry.Builtin(context.Background(), cfg, logging.Discard()), registry.Settings{
		Provider:   "filesystem",
		Tool:       "imaging",
		Store:      "memory",
		Parameters: "simple",
	})
	defer reg.Close()

	w := NewRenderWorkflow(reg, logging.Discard())

	// No transformation: bytes pass through unchanged.
	res, err := w.Render(context.Background(), srcParams("photo.png"))
	require.NoError(t, err)
	assert.Equal(t, source, res.Data)

	res, err = w.Render(context.Background(), srcParams("photo.png", "width", "16", "format", "jpeg"))
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, "image/jpeg", res.ContentType)
	img, format, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Pt(16, 8), img.Bounds().Size())

	again, err := w.Render(context.Background(), srcParams("photo.png", "format", "jpeg", "width", "16"))
	require.NoError(t, err)
	assert.True(t, again.Hit)
	assert.Equal(t, res.Data, again.Data)
	assert.Equal(t, "image/jpeg", again.ContentType)

	_, err = w.Render(context.Background(), srcParams("nope.png"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRender_ConfigurationErrorSurfaces(t *testing.T) {
	reg := registry.New(registry.NewCatalog(), registry.Settings{Store: "NoSuchStore"})
	w := NewRenderWorkflow(reg, logging.Discard())

	_, err := w.Render(context.Background(), srcParams("a.png"))
	var ce *registry.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "NoSuchStore", ce.Identifier)
}
