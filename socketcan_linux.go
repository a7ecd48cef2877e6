package gocanapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCAN binds a Linux network interface like can0 or vcan0. The
// interface is configured and brought up on Start, so most operations
// need CAP_NET_ADMIN unless the interface is already up.
type SocketCAN struct {
	cfg     *Config
	devName string
	dev     *candevice.Device
	conn    net.Conn
	tx      *socketcan.Transmitter
	rx      *socketcan.Receiver

	bound   bool
	started bool
	mode    OpMode
	rate    Bitrate
	rateSet bool
}

func init() {
	if err := RegisterTransport(&TransportInfo{
		Name:               "SocketCAN",
		Description:        "Linux SocketCAN interface",
		RequiresSerialPort: false,
		New:                NewSocketCAN,
	}); err != nil {
		panic(err)
	}
}

func NewSocketCAN(cfg *Config) (Transport, error) {
	return &SocketCAN{cfg: cfg}, nil
}

func (a *SocketCAN) Name() string {
	return "SocketCAN"
}

// FindCANDevices lists the CAN network interfaces on this host.
func FindCANDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	sort.Strings(dev)
	return
}

func (a *SocketCAN) resolveDevice(channel int) (string, error) {
	if a.cfg.Port != "" {
		if channel != 0 {
			return "", ErrIllegalParam
		}
		return a.cfg.Port, nil
	}
	devs := FindCANDevices()
	if channel < 0 || channel >= len(devs) {
		return "", ErrIllegalParam
	}
	return devs[channel], nil
}

func (a *SocketCAN) Probe(channel int, mode OpMode) (ChannelState, error) {
	name, err := a.resolveDevice(channel)
	if err != nil {
		return ChannelNotPresent, nil
	}
	if _, err := net.InterfaceByName(name); err != nil {
		return ChannelNotPresent, nil
	}
	return ChannelAvailable, nil
}

func (a *SocketCAN) Init(channel int, mode OpMode) error {
	if a.bound {
		return ErrAlreadyInit
	}
	name, err := a.resolveDevice(channel)
	if err != nil {
		return err
	}
	d, err := candevice.New(name)
	if err != nil {
		return fmt.Errorf("failed to open can device %q: %w", name, err)
	}
	a.dev = d
	a.devName = name
	a.mode = mode
	a.bound = true
	return nil
}

func (a *SocketCAN) Start(rate Bitrate) error {
	if !a.bound {
		return ErrNotInitialized
	}
	if a.started {
		return ErrAlreadyStarted
	}
	if err := a.dev.SetBitrate(uint32(rate.Kbit() * 1000)); err != nil {
		return fmt.Errorf("failed to set bitrate on %q: %w", a.devName, err)
	}
	if err := a.dev.SetUp(); err != nil {
		return fmt.Errorf("failed to bring up %q: %w", a.devName, err)
	}
	conn, err := socketcan.Dial("can", a.devName)
	if err != nil {
		a.dev.SetDown()
		return err
	}
	a.conn = conn
	a.tx = socketcan.NewTransmitter(conn)
	a.rx = socketcan.NewReceiver(conn)
	a.rate = rate
	a.rateSet = true
	a.started = true
	return nil
}

func (a *SocketCAN) Stop() error {
	if !a.bound {
		return ErrNotInitialized
	}
	if !a.started {
		return nil
	}
	a.started = false
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
		a.tx = nil
		a.rx = nil
	}
	if err := a.dev.SetDown(); err != nil {
		return fmt.Errorf("failed to bring down %q: %w", a.devName, err)
	}
	return nil
}

func (a *SocketCAN) Release() error {
	if !a.bound {
		return nil
	}
	var err error
	if a.started {
		err = a.Stop()
	}
	a.dev = nil
	a.devName = ""
	a.bound = false
	return err
}

func (a *SocketCAN) Write(frame *Frame, timeout time.Duration) error {
	if !a.started {
		return ErrNotStarted
	}
	if a.mode&ModeListenOnly != 0 {
		return ErrIllegalParam
	}
	f := can.Frame{
		ID:         frame.Identifier,
		Length:     uint8(frame.Length()),
		IsExtended: frame.Extended,
		IsRemote:   frame.RTR,
	}
	copy(f.Data[:], frame.Data)
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := a.tx.TransmitFrame(ctx, f); err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return ErrTxBusy
		}
		return err
	}
	return nil
}

// Read pulls one frame off the socket. A read deadline makes the
// receive synchronous, and since the kernel hands over exactly one
// frame per read the receiver can be recreated after a timeout
// without losing buffered frames.
func (a *SocketCAN) Read(timeout time.Duration) (*Frame, error) {
	if !a.started {
		return nil, ErrNotStarted
	}
	if timeout > 0 {
		a.conn.SetReadDeadline(time.Now().Add(timeout))
		defer a.conn.SetReadDeadline(time.Time{})
	}
	if !a.rx.Receive() {
		err := a.rx.Err()
		a.rx = socketcan.NewReceiver(a.conn)
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, ErrRxEmpty
		}
		if err == nil {
			return nil, ErrResource
		}
		return nil, err
	}
	f := a.rx.Frame()
	frame := NewFrame(f.ID, f.Data[:f.Length])
	frame.Extended = f.IsExtended
	frame.RTR = f.IsRemote
	return frame, nil
}

// Status reports what can be seen from the interface flags, the
// kernel exposes no cheap controller state beyond up or down here.
func (a *SocketCAN) Status() (BusStatus, error) {
	if !a.bound {
		return 0, ErrNotInitialized
	}
	if !a.started {
		return BusStopped, nil
	}
	iface, err := net.InterfaceByName(a.devName)
	if err != nil {
		return 0, err
	}
	if iface.Flags&net.FlagUp == 0 {
		return BusOff, nil
	}
	return 0, nil
}

func (a *SocketCAN) BusLoad() (float64, BusStatus, error) {
	return 0, 0, ErrNotSupported
}

func (a *SocketCAN) Bitrate() (Bitrate, error) {
	if !a.bound {
		return 0, ErrNotInitialized
	}
	if !a.rateSet {
		return 0, ErrInvalidBitrate
	}
	return a.rate, nil
}
