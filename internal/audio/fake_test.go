package audio

import "context"

type fakeCapture struct {
	ranges []ConfigRange
	err    error
}

func (f *fakeCapture) SupportedConfigs() ([]ConfigRange, error) { return f.ranges, f.err }

func (f *fakeCapture) Start(ctx context.Context, cfg StreamConfig, cb Callbacks) error { return nil }

func (f *fakeCapture) Stop() error { return nil }

func (f *fakeCapture) ListDevices() ([]AudioDevice, error) { return nil, nil }

func (f *fakeCapture) Close() error { return nil }
