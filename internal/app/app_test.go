package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/petems/wavspool/internal/audio"
	"github.com/petems/wavspool/internal/config"
	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/shutdown"
	"github.com/petems/wavspool/internal/spool"
	"github.com/petems/wavspool/internal/wavfile"
)

// mockCapture delivers its blocks synchronously from Start, the way a
// backend callback would before Start returns.
type mockCapture struct {
	ranges    []audio.ConfigRange
	queryErr  error
	startErr  error
	blocks    [][]float32
	startedCh chan struct{} // closed once Start has delivered its blocks

	mu      sync.Mutex
	started bool
	stopped bool
	stream  audio.StreamConfig
}

func (m *mockCapture) SupportedConfigs() ([]audio.ConfigRange, error) {
	return m.ranges, m.queryErr
}

func (m *mockCapture) Start(ctx context.Context, cfg audio.StreamConfig, cb audio.Callbacks) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	m.started = true
	m.stream = cfg
	m.mu.Unlock()

	for _, b := range m.blocks {
		cb.Data(b)
	}
	if m.startedCh != nil {
		close(m.startedCh)
	}
	return nil
}

func (m *mockCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockCapture) ListDevices() ([]audio.AudioDevice, error) {
	return []audio.AudioDevice{{ID: "default", Name: "Default", Default: true}}, nil
}

func (m *mockCapture) Close() error {
	return nil
}

// immediateWatcher behaves like a key pressed right away.
type immediateWatcher struct{}

func (immediateWatcher) Watch(ctx context.Context, token *shutdown.Token) error {
	token.Signal()
	return nil
}

// idleWatcher never sees a key press.
type idleWatcher struct{}

func (idleWatcher) Watch(ctx context.Context, token *shutdown.Token) error {
	select {
	case <-ctx.Done():
	case <-token.Done():
	}
	return nil
}

// stuckWatcher is blocked in a read that neither ctx nor the token can
// interrupt.
type stuckWatcher struct{ release chan struct{} }

func (w stuckWatcher) Watch(context.Context, *shutdown.Token) error {
	<-w.release
	return nil
}

type erroringWatcher struct{ err error }

func (w erroringWatcher) Watch(context.Context, *shutdown.Token) error {
	return w.err
}

type failingSink struct{ err error }

func (s failingSink) WriteFile(string, audio.StreamConfig, []float32) error { return s.err }

func standardRanges() []audio.ConfigRange {
	var out []audio.ConfigRange
	for _, r := range []int{8000, 44100, 48000, 96000} {
		out = append(out, audio.ConfigRange{Channels: 1, MinSampleRate: r, MaxSampleRate: r, Format: audio.FormatFloat32})
	}
	return out
}

func injected(blocks, n int) ([][]float32, []float32) {
	var all []float32
	out := make([][]float32, blocks)
	for b := range out {
		out[b] = make([]float32, n)
		for i := range out[b] {
			v := float32(b*n+i) / 10000
			out[b][i] = v
			all = append(all, v)
		}
	}
	return out, all
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)
	return m
}

func newTestApp(t *testing.T, capture audio.Capture, watcher Watcher, sink spool.Sink, dir string, threshold int64) *App {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.PollInterval = 10 * time.Millisecond

	return New(Config{
		Audio:     capture,
		Sink:      sink,
		Namer:     wavfile.NewNamer(dir),
		Watcher:   watcher,
		Config:    cfg,
		Logger:    zerolog.Nop(),
		Metrics:   testMetrics(t),
		Threshold: threshold,
	})
}

func wavFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	require.NoError(t, err)
	sort.Strings(matches)
	return matches
}

func runWithTimeout(t *testing.T, a *App, ctx context.Context) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRecordThreeBlocksThenStop(t *testing.T) {
	dir := t.TempDir()
	blocks, want := injected(3, 1000)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	a := newTestApp(t, capture, immediateWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	require.NoError(t, runWithTimeout(t, a, context.Background()))

	files := wavFiles(t, dir)
	require.Len(t, files, 1)

	info, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 32, info.BitDepth)
	assert.True(t, info.Float())
	assert.Equal(t, want, samples)

	assert.Equal(t, 48000, capture.stream.SampleRate)
	assert.True(t, capture.stopped, "capture is stopped after the writer finishes")
	assert.True(t, a.Token().Cancelled())
}

func TestThresholdSplitsRecording(t *testing.T) {
	dir := t.TempDir()
	blocks, want := injected(5, 1000)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	// 2000 samples per file.
	a := newTestApp(t, capture, immediateWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 8000)

	require.NoError(t, runWithTimeout(t, a, context.Background()))

	files := wavFiles(t, dir)
	require.Len(t, files, 3)

	var got []float32
	var sizes []int
	for _, f := range files {
		_, samples, err := wavfile.Read(f)
		require.NoError(t, err)
		sizes = append(sizes, len(samples))
		got = append(got, samples...)
	}
	assert.Equal(t, []int{2000, 2000, 1000}, sizes)
	assert.Equal(t, want, got)
}

func TestLowRateDeviceFallsBackToMax(t *testing.T) {
	dir := t.TempDir()
	capture := &mockCapture{ranges: []audio.ConfigRange{
		{Channels: 1, MinSampleRate: 8000, MaxSampleRate: 8000, Format: audio.FormatFloat32},
		{Channels: 1, MinSampleRate: 22050, MaxSampleRate: 22050, Format: audio.FormatFloat32},
	}}
	a := newTestApp(t, capture, immediateWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	require.NoError(t, runWithTimeout(t, a, context.Background()))

	files := wavFiles(t, dir)
	require.Len(t, files, 1)
	info, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, 22050, info.SampleRate)
	assert.Empty(t, samples, "a stop with nothing buffered still writes a file")
}

func TestNoSupportedConfigIsFatalAtStartup(t *testing.T) {
	dir := t.TempDir()
	capture := &mockCapture{}
	a := newTestApp(t, capture, immediateWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	err := a.Run(context.Background())

	assert.ErrorIs(t, err, audio.ErrNoConfig)
	assert.False(t, capture.started)
	assert.Empty(t, wavFiles(t, dir))
}

func TestStartFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	startErr := errors.New("device busy")
	capture := &mockCapture{ranges: standardRanges(), startErr: startErr}
	a := newTestApp(t, capture, immediateWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	err := a.Run(context.Background())

	assert.ErrorIs(t, err, startErr)
	assert.Empty(t, wavFiles(t, dir))
}

func TestSinkFailureShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()
	sinkErr := errors.New("read-only file system")
	blocks, _ := injected(2, 1000)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	// The first block crosses the threshold, so the writer fails while the
	// watcher is still waiting for a key.
	a := newTestApp(t, capture, idleWatcher{}, failingSink{err: sinkErr}, dir, 400)

	err := runWithTimeout(t, a, context.Background())

	assert.ErrorIs(t, err, sinkErr)
	assert.True(t, a.Token().Cancelled(), "a failing writer stops the other goroutines")
	assert.True(t, capture.stopped)
}

func TestContextCancelFlushes(t *testing.T) {
	dir := t.TempDir()
	blocks, want := injected(2, 500)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	a := newTestApp(t, capture, idleWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	require.NoError(t, runWithTimeout(t, a, ctx))

	files := wavFiles(t, dir)
	require.Len(t, files, 1)
	_, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, want, samples)

	_, err = os.Stat(files[0] + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestListDevices(t *testing.T) {
	a := newTestApp(t, &mockCapture{}, nil, failingSink{}, t.TempDir(), 0)

	devices, err := a.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].Default)
}

func TestStopReturnsPromptlyAfterSignal(t *testing.T) {
	dir := t.TempDir()
	blocks, want := injected(3, 1000)
	started := make(chan struct{})
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks, startedCh: started}
	a := newTestApp(t, capture, idleWatcher{}, wavfile.NewSink(zerolog.Nop()), dir, 0)
	poll := 100 * time.Millisecond
	a.cfg.PollInterval = poll

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("capture never started")
	}
	signaled := time.Now()
	a.Token().Signal()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	// One poll interval at most, plus the final write.
	assert.Less(t, time.Since(signaled), 3*poll)

	files := wavFiles(t, dir)
	require.Len(t, files, 1)
	_, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, want, samples)
}

func TestBlockedWatcherDoesNotHoldUpFailure(t *testing.T) {
	dir := t.TempDir()
	sinkErr := errors.New("no space left on device")
	blocks, _ := injected(2, 1000)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	a := newTestApp(t, capture, stuckWatcher{release: release}, failingSink{err: sinkErr}, dir, 400)
	a.watchGrace = 50 * time.Millisecond

	err := runWithTimeout(t, a, context.Background())

	assert.ErrorIs(t, err, sinkErr)
	assert.True(t, capture.stopped)
}

func TestBlockedWatcherDoesNotHoldUpShutdown(t *testing.T) {
	dir := t.TempDir()
	blocks, want := injected(2, 1000)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	a := newTestApp(t, capture, stuckWatcher{release: release}, wavfile.NewSink(zerolog.Nop()), dir, 0)
	a.watchGrace = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	require.NoError(t, runWithTimeout(t, a, ctx))

	files := wavFiles(t, dir)
	require.Len(t, files, 1)
	_, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, want, samples)
}

func TestWatcherErrorStopsRecording(t *testing.T) {
	dir := t.TempDir()
	watchErr := errors.New("failed to read terminal state")
	blocks, want := injected(1, 100)
	capture := &mockCapture{ranges: standardRanges(), blocks: blocks}
	a := newTestApp(t, capture, erroringWatcher{err: watchErr}, wavfile.NewSink(zerolog.Nop()), dir, 0)

	err := runWithTimeout(t, a, context.Background())

	assert.ErrorIs(t, err, watchErr)
	assert.True(t, a.Token().Cancelled())

	// The buffered audio is still written.
	files := wavFiles(t, dir)
	require.Len(t, files, 1)
	_, samples, err := wavfile.Read(files[0])
	require.NoError(t, err)
	assert.Equal(t, want, samples)
}
