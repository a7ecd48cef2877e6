package gocanapi

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeTransport records every call so tests can assert both outcomes
// and call order. Reads are served from a script, an exhausted script
// behaves like a silent bus and blocks for the read timeout.
type fakeTransport struct {
	calls []string

	probeStates map[int]ChannelState
	probeErr    error
	initErr     error
	startErr    error
	stopErr     error
	releaseErr  error
	writeErr    error
	statusErr   error

	reads     []readResult
	status    BusStatus
	load      float64
	rate      Bitrate
	rateIsSet bool

	lastWrite        *Frame
	lastWriteTimeout time.Duration
}

type readResult struct {
	frame *Frame
	err   error
}

func (f *fakeTransport) Name() string { return "Fake" }

func (f *fakeTransport) Probe(channel int, mode OpMode) (ChannelState, error) {
	f.calls = append(f.calls, fmt.Sprintf("Probe(%d)", channel))
	if f.probeErr != nil {
		return ChannelNotTestable, f.probeErr
	}
	if state, found := f.probeStates[channel]; found {
		return state, nil
	}
	return ChannelNotPresent, nil
}

func (f *fakeTransport) Init(channel int, mode OpMode) error {
	f.calls = append(f.calls, fmt.Sprintf("Init(%d)", channel))
	return f.initErr
}

func (f *fakeTransport) Start(rate Bitrate) error {
	f.calls = append(f.calls, fmt.Sprintf("Start(%s)", rate))
	return f.startErr
}

func (f *fakeTransport) Stop() error {
	f.calls = append(f.calls, "Stop")
	return f.stopErr
}

func (f *fakeTransport) Release() error {
	f.calls = append(f.calls, "Release")
	return f.releaseErr
}

func (f *fakeTransport) Write(frame *Frame, timeout time.Duration) error {
	f.calls = append(f.calls, "Write")
	f.lastWrite = frame
	f.lastWriteTimeout = timeout
	return f.writeErr
}

func (f *fakeTransport) Read(timeout time.Duration) (*Frame, error) {
	f.calls = append(f.calls, "Read")
	if len(f.reads) == 0 {
		time.Sleep(timeout)
		return nil, ErrRxEmpty
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	return r.frame, r.err
}

func (f *fakeTransport) Status() (BusStatus, error) {
	f.calls = append(f.calls, "Status")
	return f.status, f.statusErr
}

func (f *fakeTransport) BusLoad() (float64, BusStatus, error) {
	f.calls = append(f.calls, "BusLoad")
	return f.load, f.status, f.statusErr
}

func (f *fakeTransport) Bitrate() (Bitrate, error) {
	f.calls = append(f.calls, "Bitrate")
	if !f.rateIsSet {
		return 0, ErrInvalidBitrate
	}
	return f.rate, nil
}

func sameCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSessionLifecycle(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)

	if s.State() != Closed || s.Channel() != NoChannel {
		t.Fatalf("fresh session = %v channel %d, want closed and unbound", s.State(), s.Channel())
	}
	if err := s.Open(2, ModeDefault); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.State() != Initialized || s.Channel() != 2 {
		t.Errorf("after Open state = %v channel %d, want initialized channel 2", s.State(), s.Channel())
	}
	if err := s.Start(Bitrate500K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.State() != Started {
		t.Errorf("after Start state = %v, want started", s.State())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.State() != Closed || s.Channel() != NoChannel {
		t.Errorf("after Close state = %v channel %d, want closed and unbound", s.State(), s.Channel())
	}

	want := []string{"Init(2)", "Start(500 kbit/s)", "Stop", "Release"}
	if !sameCalls(tr.calls, want) {
		t.Errorf("calls = %v, want %v", tr.calls, want)
	}
}

func TestSessionOpenReplacesBinding(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)

	if err := s.Open(0, ModeDefault); err != nil {
		t.Fatalf("Open(0) error = %v", err)
	}
	if err := s.Start(Bitrate250K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Open(1, ModeDefault); err != nil {
		t.Fatalf("Open(1) error = %v", err)
	}
	if s.State() != Initialized || s.Channel() != 1 {
		t.Errorf("after reopen state = %v channel %d, want initialized channel 1", s.State(), s.Channel())
	}

	want := []string{"Init(0)", "Start(250 kbit/s)", "Stop", "Release", "Init(1)"}
	if !sameCalls(tr.calls, want) {
		t.Errorf("calls = %v, want %v", tr.calls, want)
	}
}

func TestSessionNotInitialized(t *testing.T) {
	tests := []struct {
		name string
		op   func(s *Session) error
	}{
		{"Start", func(s *Session) error { return s.Start(Bitrate500K) }},
		{"Send", func(s *Session) error { return s.Send(NewFrame(0x123, nil)) }},
		{"Receive", func(s *Session) error { _, err := s.Receive(time.Millisecond); return err }},
		{"Status", func(s *Session) error { _, err := s.Status(); return err }},
		{"BusLoad", func(s *Session) error { _, _, err := s.BusLoad(); return err }},
		{"Bitrate", func(s *Session) error { _, err := s.Bitrate(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			s := NewSession(tr)
			if err := tt.op(s); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("%s on closed session error = %v, want ErrNotInitialized", tt.name, err)
			}
			if len(tr.calls) != 0 {
				t.Errorf("transport was touched: %v", tr.calls)
			}
		})
	}
}

func TestSessionSendBeforeStart(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	if err := s.Open(0, ModeDefault); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Send(NewFrame(0x123, []byte{1})); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Send() on initialized session error = %v, want ErrNotInitialized", err)
	}
	if _, err := s.Receive(time.Millisecond); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Receive() on initialized session error = %v, want ErrNotInitialized", err)
	}
}

func TestSessionSendTruncates(t *testing.T) {
	tr := &fakeTransport{}
	s := startedSession(t, tr)

	long := make([]byte, 12)
	for i := range long {
		long[i] = byte(i)
	}
	frame := &Frame{Identifier: 0x123, Data: long, Timeout: 25 * time.Millisecond}
	if err := s.Send(frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := len(tr.lastWrite.Data); got != MaxDataLength {
		t.Errorf("written payload length = %d, want %d", got, MaxDataLength)
	}
	if len(frame.Data) != 12 {
		t.Errorf("caller frame was modified, length = %d", len(frame.Data))
	}
	if tr.lastWriteTimeout != 25*time.Millisecond {
		t.Errorf("write timeout = %v, want 25ms", tr.lastWriteTimeout)
	}
}

func TestSessionSendNil(t *testing.T) {
	tr := &fakeTransport{}
	s := startedSession(t, tr)
	if err := s.Send(nil); !errors.Is(err, ErrNullPointer) {
		t.Errorf("Send(nil) error = %v, want ErrNullPointer", err)
	}
}

func TestSessionStartInvalidBitrate(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	if err := s.Open(0, ModeDefault); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Start(Bitrate(42)); !errors.Is(err, ErrInvalidBitrate) {
		t.Errorf("Start(42) error = %v, want ErrInvalidBitrate", err)
	}
	want := []string{"Init(0)"}
	if !sameCalls(tr.calls, want) {
		t.Errorf("calls = %v, want %v", tr.calls, want)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	if err := s.Close(); err != nil {
		t.Errorf("Close() on closed session error = %v", err)
	}
	if len(tr.calls) != 0 {
		t.Errorf("transport was touched: %v", tr.calls)
	}
}

func TestSessionCloseRunsBothSteps(t *testing.T) {
	stopErr := errors.New("stop failed")
	releaseErr := errors.New("release failed")

	tests := []struct {
		name       string
		stopErr    error
		releaseErr error
		want       error
	}{
		{"stop fails", stopErr, nil, stopErr},
		{"release fails", nil, releaseErr, releaseErr},
		{"both fail", stopErr, releaseErr, releaseErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{stopErr: tt.stopErr, releaseErr: tt.releaseErr}
			s := startedSession(t, tr)
			tr.calls = nil

			if err := s.Close(); !errors.Is(err, tt.want) {
				t.Errorf("Close() error = %v, want %v", err, tt.want)
			}
			want := []string{"Stop", "Release"}
			if !sameCalls(tr.calls, want) {
				t.Errorf("calls = %v, want %v", tr.calls, want)
			}
			if s.State() != Closed {
				t.Errorf("state after failed Close = %v, want closed", s.State())
			}
		})
	}
}

func TestSessionErrorPassThrough(t *testing.T) {
	tr := &fakeTransport{initErr: ErrResource}
	s := NewSession(tr)
	if err := s.Open(0, ModeDefault); !errors.Is(err, ErrResource) {
		t.Errorf("Open() error = %v, want ErrResource untouched", err)
	}
	if s.State() != Closed {
		t.Errorf("state after failed Open = %v, want closed", s.State())
	}
}

func TestSessionScan(t *testing.T) {
	tr := &fakeTransport{
		probeStates: map[int]ChannelState{
			1: ChannelOccupied,
			2: ChannelAvailable,
			3: ChannelNotTestable,
			5: ChannelAvailable,
		},
	}
	s := NewSession(tr)

	got := s.Scan(8)
	want := []int{2, 5}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Scan(8) = %v, want %v", got, want)
	}
	if s.State() != Closed {
		t.Errorf("Scan changed session state to %v", s.State())
	}
}

func TestSessionScanDefaults(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	if got := s.Scan(0); len(got) != 0 {
		t.Errorf("Scan(0) with no hardware = %v, want empty", got)
	}
	if len(tr.calls) != DefaultScanLimit {
		t.Errorf("probed %d channels, want %d", len(tr.calls), DefaultScanLimit)
	}
}

func TestSessionScanSkipsProbeErrors(t *testing.T) {
	tr := &fakeTransport{probeErr: ErrNotSupported}
	s := NewSession(tr)
	if got := s.Scan(3); len(got) != 0 {
		t.Errorf("Scan() = %v, want empty on probe errors", got)
	}
}

func startedSession(t *testing.T, tr Transport) *Session {
	t.Helper()
	s := NewSession(tr)
	if err := s.Open(0, ModeDefault); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Start(Bitrate500K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}
