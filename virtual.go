package gocanapi

import (
	"fmt"
	"sync"
	"time"
)

const (
	virtualChannelCount = 8
	virtualQueueDepth   = 255
)

// virtualBus tracks which channels are bound so a second session
// probing or binding the same channel sees it occupied.
var (
	virtualMu  sync.Mutex
	virtualBus = make(map[int]*Virtual)
)

// Virtual is an in-process loopback bus. Frames written to a started
// channel come back on its own receive queue, and tests or simulators
// can push traffic from outside with InjectFrame. It exists so the
// whole session lifecycle can run without hardware.
type Virtual struct {
	cfg *Config

	mu      sync.Mutex
	channel int
	bound   bool
	started bool
	rate    Bitrate
	rateSet bool
	queue   chan *Frame
	flags   BusStatus
}

func init() {
	if err := RegisterTransport(&TransportInfo{
		Name:               "Virtual",
		Description:        "In-process loopback bus",
		RequiresSerialPort: false,
		New:                NewVirtual,
	}); err != nil {
		panic(err)
	}
}

func NewVirtual(cfg *Config) (Transport, error) {
	return &Virtual{
		cfg:     cfg,
		channel: NoChannel,
		queue:   make(chan *Frame, virtualQueueDepth),
	}, nil
}

func (v *Virtual) Name() string {
	return "Virtual"
}

func (v *Virtual) Probe(channel int, mode OpMode) (ChannelState, error) {
	if channel < 0 || channel >= virtualChannelCount {
		return ChannelNotPresent, nil
	}
	virtualMu.Lock()
	defer virtualMu.Unlock()
	if _, taken := virtualBus[channel]; taken {
		return ChannelOccupied, nil
	}
	return ChannelAvailable, nil
}

func (v *Virtual) Init(channel int, mode OpMode) error {
	if channel < 0 || channel >= virtualChannelCount {
		return ErrIllegalParam
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bound {
		return ErrAlreadyInit
	}
	virtualMu.Lock()
	defer virtualMu.Unlock()
	if _, taken := virtualBus[channel]; taken {
		return ErrAlreadyInit
	}
	virtualBus[channel] = v
	v.channel = channel
	v.bound = true
	v.flags = BusStopped
	if v.cfg.Debug {
		v.cfg.OnMessage(fmt.Sprintf("virtual channel %d bound", channel))
	}
	return nil
}

func (v *Virtual) Start(rate Bitrate) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return ErrNotInitialized
	}
	if v.started {
		return ErrAlreadyStarted
	}
	if !rate.Valid() {
		return ErrInvalidBitrate
	}
	v.queue = make(chan *Frame, virtualQueueDepth)
	v.rate = rate
	v.rateSet = true
	v.started = true
	v.flags = 0
	if v.cfg.Debug {
		v.cfg.OnMessage(fmt.Sprintf("virtual channel %d started at %s", v.channel, rate))
	}
	return nil
}

func (v *Virtual) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return ErrNotInitialized
	}
	v.started = false
	v.flags |= BusStopped
	return nil
}

func (v *Virtual) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return nil
	}
	virtualMu.Lock()
	delete(virtualBus, v.channel)
	virtualMu.Unlock()
	v.channel = NoChannel
	v.bound = false
	v.started = false
	return nil
}

// Write loops the frame back onto the receive queue. A full queue
// reports the controller busy instead of blocking forever.
func (v *Virtual) Write(frame *Frame, timeout time.Duration) error {
	v.mu.Lock()
	if !v.started {
		v.mu.Unlock()
		return ErrNotStarted
	}
	queue := v.queue
	v.mu.Unlock()

	f := copyFrame(frame)
	if timeout <= 0 {
		select {
		case queue <- f:
			return nil
		default:
			v.setFlag(BusTxBusy)
			return ErrTxBusy
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case queue <- f:
		return nil
	case <-t.C:
		v.setFlag(BusTxBusy)
		return ErrTxBusy
	}
}

func (v *Virtual) Read(timeout time.Duration) (*Frame, error) {
	v.mu.Lock()
	if !v.started {
		v.mu.Unlock()
		return nil, ErrNotStarted
	}
	queue := v.queue
	v.mu.Unlock()

	if timeout <= 0 {
		select {
		case f := <-queue:
			return f, nil
		default:
			v.setFlag(BusRxEmpty)
			return nil, ErrRxEmpty
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-queue:
		return f, nil
	case <-t.C:
		v.setFlag(BusRxEmpty)
		return nil, ErrRxEmpty
	}
}

// InjectFrame puts a frame on the receive queue as if another node had
// sent it. A full queue drops the frame and latches the message lost
// flag, matching what a real controller does on overrun.
func (v *Virtual) InjectFrame(frame *Frame) error {
	v.mu.Lock()
	if !v.started {
		v.mu.Unlock()
		return ErrNotStarted
	}
	queue := v.queue
	v.mu.Unlock()

	select {
	case queue <- copyFrame(frame):
		return nil
	default:
		v.setFlag(BusMessageLost | BusQueueOverrun)
		return ErrMessageLost
	}
}

func (v *Virtual) Status() (BusStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return 0, ErrNotInitialized
	}
	st := v.flags
	if !v.started {
		st |= BusStopped
	}
	if len(v.queue) == 0 {
		st |= BusRxEmpty
	}
	return st, nil
}

// BusLoad reports the receive queue fill level as a stand-in for real
// wire occupancy.
func (v *Virtual) BusLoad() (float64, BusStatus, error) {
	v.mu.Lock()
	if !v.bound {
		v.mu.Unlock()
		return 0, 0, ErrNotInitialized
	}
	load := float64(len(v.queue)) / float64(cap(v.queue)) * 100.0
	v.mu.Unlock()
	st, err := v.Status()
	if err != nil {
		return 0, 0, err
	}
	return load, st, nil
}

func (v *Virtual) Bitrate() (Bitrate, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return 0, ErrNotInitialized
	}
	if !v.rateSet {
		return 0, ErrInvalidBitrate
	}
	return v.rate, nil
}

func (v *Virtual) setFlag(b BusStatus) {
	v.mu.Lock()
	v.flags |= b
	v.mu.Unlock()
}

func copyFrame(frame *Frame) *Frame {
	f := *frame
	f.Data = make([]byte, len(frame.Data))
	copy(f.Data, frame.Data)
	return &f
}
