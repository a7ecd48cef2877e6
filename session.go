package gocanapi

import (
	"fmt"
	"log"
	"time"
)

// State of a channel session.
type State int

const (
	Closed State = iota
	Initialized
	Started
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Initialized:
		return "initialized"
	case Started:
		return "started"
	default:
		return fmt.Sprintf("state %d", int(s))
	}
}

// NoChannel is the channel index of an unbound session.
const NoChannel = -1

// DefaultScanLimit is how many channels Scan probes when the caller
// passes no limit.
const DefaultScanLimit = 8

// Session owns one CAN channel through a Transport and enforces the
// open, start, use, close lifecycle. It is not safe for concurrent
// use, callers serialize access externally. Owners are expected to
// `defer sess.Close()` right after opening so the channel handle is
// released on every exit path.
type Session struct {
	tr      Transport
	channel int
	state   State
	poll    time.Duration
	onError func(error)
}

type SessionOpt func(*Session)

// OptOnError replaces the default error reporter, used for failures a
// session handles itself like the fatal read ending a Monitor loop.
func OptOnError(fn func(error)) SessionOpt {
	return func(s *Session) {
		s.onError = fn
	}
}

// OptPollInterval sets the Monitor poll timeout.
func OptPollInterval(d time.Duration) SessionOpt {
	return func(s *Session) {
		if d > 0 {
			s.poll = d
		}
	}
}

func NewSession(tr Transport, opts ...SessionOpt) *Session {
	s := &Session{
		tr:      tr,
		channel: NoChannel,
		state:   Closed,
		poll:    defaultPollInterval,
		onError: func(err error) {
			log.Println(err)
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Channel returns the bound channel index or NoChannel.
func (s *Session) Channel() int {
	return s.channel
}

// Transport returns the underlying driver binding.
func (s *Session) Transport() Transport {
	return s.tr
}

// Open binds channel on the transport. An existing binding is fully
// closed first so the session never holds two handles. On failure the
// session stays Closed and the transport error is returned unchanged.
func (s *Session) Open(channel int, mode OpMode) error {
	if s.state != Closed {
		if err := s.Close(); err != nil {
			s.onError(fmt.Errorf("closing previous binding: %w", err))
		}
	}
	if err := s.tr.Init(channel, mode); err != nil {
		return err
	}
	s.channel = channel
	s.state = Initialized
	return nil
}

// Start arms the controller with one of the bitrate presets. The
// selector is validated before the transport sees it.
func (s *Session) Start(rate Bitrate) error {
	if s.state == Closed {
		return ErrNotInitialized
	}
	if !rate.Valid() {
		return ErrInvalidBitrate
	}
	if err := s.tr.Start(rate); err != nil {
		return err
	}
	s.state = Started
	return nil
}

// Close stops the controller if started and releases the handle,
// running both steps regardless of the first one's outcome and
// returning the last error. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	var last error
	if s.state == Started {
		if err := s.tr.Stop(); err != nil {
			last = err
		}
	}
	if err := s.tr.Release(); err != nil {
		last = err
	}
	s.channel = NoChannel
	s.state = Closed
	return last
}

// Send transmits one frame using the frame's own timeout. Payloads
// over MaxDataLength are truncated, never rejected. Fails fast with
// ErrNotInitialized before touching the transport when the session is
// not started.
func (s *Session) Send(frame *Frame) error {
	if s.state != Started {
		return ErrNotInitialized
	}
	if frame == nil {
		return ErrNullPointer
	}
	f := *frame
	if len(f.Data) > MaxDataLength {
		f.Data = f.Data[:MaxDataLength]
	}
	return s.tr.Write(&f, f.Timeout)
}

// Shortcommand to send a standard 11bit frame
func (s *Session) SendFrame(identifier uint32, data []byte, opts ...FrameOpt) error {
	return s.Send(NewFrame(identifier, data, opts...))
}

// Receive blocks up to timeout for one frame. ErrRxEmpty means no
// frame arrived in the window, which is a normal outcome and not a
// fault.
func (s *Session) Receive(timeout time.Duration) (*Frame, error) {
	if s.state != Started {
		return nil, ErrNotInitialized
	}
	return s.tr.Read(timeout)
}

// Scan probes channels 0..maxChannels and returns the indices that
// report available, in ascending order. Absent hardware yields an
// empty slice, never an error. Session state is left untouched, so
// Scan is legal before Open.
func (s *Session) Scan(maxChannels int) []int {
	if maxChannels <= 0 {
		maxChannels = DefaultScanLimit
	}
	found := make([]int, 0, maxChannels)
	for channel := 0; channel < maxChannels; channel++ {
		state, err := s.tr.Probe(channel, ModeDefault)
		if err != nil {
			continue
		}
		if state == ChannelAvailable {
			found = append(found, channel)
		}
	}
	return found
}

// Status reads the controller status register. Legal any time after a
// successful Open.
func (s *Session) Status() (BusStatus, error) {
	if s.state == Closed {
		return 0, ErrNotInitialized
	}
	return s.tr.Status()
}

// BusLoad reads the bus load in percent together with the status
// register.
func (s *Session) BusLoad() (float64, BusStatus, error) {
	if s.state == Closed {
		return 0, 0, ErrNotInitialized
	}
	return s.tr.BusLoad()
}

// Bitrate reads the active bitrate preset.
func (s *Session) Bitrate() (Bitrate, error) {
	if s.state == Closed {
		return 0, ErrNotInitialized
	}
	return s.tr.Bitrate()
}
