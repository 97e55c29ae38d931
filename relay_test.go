package virtualcam_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

// mockDevice records its lifecycle calls and fails on demand.
type mockDevice struct {
	mu    sync.Mutex
	calls []string

	openErr     error
	cfgVideoErr error
	cfgDepthErr error
	startErr    error

	pollFailAt int // poll number returning a runtime event (0 = never)
	polls      int

	handler virtualcam.FrameHandler
	video   []byte // published on every successful poll when set
}

func (d *mockDevice) record(name string) {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()
}

func (d *mockDevice) callList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *mockDevice) Open() error {
	d.record("open")
	return d.openErr
}

func (d *mockDevice) ConfigureVideo(mode virtualcam.StreamMode) error {
	d.record("configure_video")
	return d.cfgVideoErr
}

func (d *mockDevice) ConfigureDepth() error {
	d.record("configure_depth")
	return d.cfgDepthErr
}

func (d *mockDevice) StartStreams() error {
	d.record("start_streams")
	return d.startErr
}

func (d *mockDevice) PollEvents() error {
	d.mu.Lock()
	d.polls++
	n := d.polls
	d.mu.Unlock()
	if d.pollFailAt > 0 && n >= d.pollFailAt {
		return fmt.Errorf("%w: simulated unplug", virtualcam.ErrRuntimeEvent)
	}
	if d.video != nil && d.handler != nil {
		d.handler.OnVideoFrame(d.video)
	}
	return nil
}

func (d *mockDevice) StopStreams() error {
	d.record("stop_streams")
	return nil
}

func (d *mockDevice) Close() error {
	d.record("close")
	return nil
}

// nullSink accepts every write.
type nullSink struct{ writes atomic.Uint64 }

func (s *nullSink) Init(cfg virtualcam.SinkConfig) error { return nil }
func (s *nullSink) Write(frame []byte) error {
	s.writes.Add(1)
	return nil
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRelayValidation(t *testing.T) {
	factory := func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
		return &mockDevice{handler: h}, nil
	}
	sink := &nullSink{}

	cases := []struct {
		name string
		cfg  virtualcam.RelayConfig
	}{
		{"no stream enabled", virtualcam.RelayConfig{Factory: factory, Sink: sink}},
		{"missing factory", virtualcam.RelayConfig{Mode: virtualcam.ModeInfrared, Sink: sink}},
		{"missing sink", virtualcam.RelayConfig{Mode: virtualcam.ModeInfrared, Factory: factory}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := virtualcam.NewRelay(tc.cfg); err == nil {
				t.Error("NewRelay() = nil error, want validation failure")
			}
		})
	}

	if _, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode: virtualcam.ModeNone, Depth: true, Factory: factory, Sink: sink,
	}); err != nil {
		t.Errorf("NewRelay(depth-only) = %v, want nil", err)
	}
}

// TestRelayReconnectAfterOpenFailures simulates a sensor that is absent
// for the first three attempts: the supervisor must wait out the fixed
// delay between attempts and eventually reach Streaming, without ever
// terminating on its own.
func TestRelayReconnectAfterOpenFailures(t *testing.T) {
	mock := clock.NewMock()
	var attempts atomic.Uint64

	factory := func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
		n := attempts.Add(1)
		if n <= 3 {
			return &mockDevice{
				handler: h,
				openErr: fmt.Errorf("%w: no device found", virtualcam.ErrDeviceUnavailable),
			}, nil
		}
		return &mockDevice{handler: h}, nil
	}

	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode:    virtualcam.ModeInfrared,
		Factory: factory,
		Sink:    &nullSink{},
		Clock:   mock,
	})
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// First attempt fails, then the supervisor parks in Disconnected
	// until the fixed delay elapses on the (mock) clock.
	waitFor(t, "first failed attempt", func() bool {
		s := relay.Stats()
		return s.Attempts == 1 && s.State == virtualcam.StateDisconnected
	})
	time.Sleep(20 * time.Millisecond)
	if got := relay.Stats().Attempts; got != 1 {
		t.Fatalf("Attempts = %d before the delay elapsed, want 1 (no early retry)", got)
	}

	// Release one delay at a time; the attempt counter must advance in
	// lockstep with the clock, one fixed sleep per failed attempt. The
	// advance is retried inside the poll because the supervisor may not
	// have registered its timer yet when we get here.
	for want := uint64(2); want <= 4; want++ {
		waitFor(t, fmt.Sprintf("attempt %d", want), func() bool {
			if relay.Stats().Attempts >= want {
				return true
			}
			mock.Add(5 * time.Second)
			return false
		})
	}

	waitFor(t, "streaming state", func() bool {
		return relay.Stats().State == virtualcam.StateStreaming
	})
	s := relay.Stats()
	if s.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", s.Attempts)
	}
	if s.Reconnects != 0 {
		t.Errorf("Reconnects = %d, want 0 (never reached streaming before)", s.Reconnects)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

// TestRelayTearsDownOnRuntimeEvent validates the Streaming →
// Disconnected transition: a runtime event ends the forwarding loop and
// the session is released in reverse acquisition order before retrying.
func TestRelayTearsDownOnRuntimeEvent(t *testing.T) {
	var devices []*mockDevice
	var mu sync.Mutex

	factory := func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
		d := &mockDevice{handler: h, pollFailAt: 2}
		mu.Lock()
		devices = append(devices, d)
		mu.Unlock()
		return d, nil
	}

	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode:         virtualcam.ModeColorRGB,
		Depth:        true,
		Factory:      factory,
		Sink:         &nullSink{},
		RetryDelay:   time.Millisecond,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	waitFor(t, "a reconnect after a runtime event", func() bool {
		return relay.Stats().Reconnects >= 1 && relay.Stats().Attempts >= 2
	})
	cancel()
	<-done

	mu.Lock()
	first := devices[0]
	mu.Unlock()

	want := []string{"open", "configure_video", "configure_depth", "start_streams", "stop_streams", "close"}
	got := first.callList()
	if len(got) != len(want) {
		t.Fatalf("device calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("device calls = %v, want %v (teardown must be stop then close)", got, want)
		}
	}
}

// TestRelayTearsDownOnConfigureFailure validates that a negotiation
// failure releases the partially built session and retries.
func TestRelayTearsDownOnConfigureFailure(t *testing.T) {
	var devices []*mockDevice
	var mu sync.Mutex

	factory := func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
		d := &mockDevice{
			handler:     h,
			cfgVideoErr: fmt.Errorf("%w: driver rejected mode", virtualcam.ErrModeNegotiation),
		}
		mu.Lock()
		devices = append(devices, d)
		mu.Unlock()
		return d, nil
	}

	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode:       virtualcam.ModeInfrared,
		Factory:    factory,
		Sink:       &nullSink{},
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	waitFor(t, "repeated configure attempts", func() bool {
		return relay.Stats().Attempts >= 2
	})
	cancel()
	<-done

	mu.Lock()
	first := devices[0]
	mu.Unlock()

	want := []string{"open", "configure_video", "stop_streams", "close"}
	got := first.callList()
	if len(got) != len(want) {
		t.Fatalf("device calls = %v, want %v (no partial session may survive)", got, want)
	}
	if relay.Stats().State == virtualcam.StateStreaming {
		t.Error("relay reached Streaming despite configuration failures")
	}
}

// TestRelayForwardsFramesWhileStreaming wires a device that publishes a
// frame on every poll and checks the end-to-end path into the sink.
func TestRelayForwardsFramesWhileStreaming(t *testing.T) {
	sink := &nullSink{}
	factory := func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
		return &mockDevice{handler: h, video: []byte{1, 2, 3}}, nil
	}

	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode:         virtualcam.ModeInfrared,
		Factory:      factory,
		Sink:         sink,
		RetryDelay:   time.Millisecond,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	waitFor(t, "frames forwarded to the sink", func() bool {
		return relay.Stats().VideoFrames >= 3
	})
	cancel()
	<-done

	if sink.writes.Load() == 0 {
		t.Error("sink received no writes")
	}
}

func TestRelayRunReturnsOnCancelledContext(t *testing.T) {
	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode: virtualcam.ModeInfrared,
		Factory: func(h virtualcam.FrameHandler) (virtualcam.Device, error) {
			return &mockDevice{handler: h}, nil
		},
		Sink: &nullSink{},
	})
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := relay.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(cancelled ctx) = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	for _, err := range []error{
		virtualcam.ErrDeviceUnavailable,
		virtualcam.ErrModeNegotiation,
		virtualcam.ErrStreamStart,
		virtualcam.ErrRuntimeEvent,
	} {
		if !virtualcam.IsRetryable(fmt.Errorf("wrapped: %w", err)) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	}
	if virtualcam.IsRetryable(errors.New("unrelated")) {
		t.Error("IsRetryable(unrelated) = true, want false")
	}
}
