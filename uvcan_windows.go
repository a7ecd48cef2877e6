package gocanapi

import (
	"errors"
	"time"

	"github.com/roffe/gocanapi/pkg/uvcan"
)

// UVCAN drives Kvaser interfaces through the CAN API V3 wrapper DLL.
type UVCAN struct {
	cfg     *Config
	handle  uvcan.Handle
	bound   bool
	started bool
	rate    Bitrate
	rateSet bool
}

func init() {
	if err := RegisterTransport(&TransportInfo{
		Name:               "Kvaser UVCAN",
		Description:        "Kvaser CAN API V3 wrapper DLL",
		RequiresSerialPort: false,
		New:                NewUVCAN,
	}); err != nil {
		panic(err)
	}
}

func NewUVCAN(cfg *Config) (Transport, error) {
	if err := uvcan.Load(cfg.Library); err != nil {
		return nil, err
	}
	return &UVCAN{cfg: cfg}, nil
}

func (u *UVCAN) Name() string {
	return "Kvaser UVCAN"
}

func (u *UVCAN) Probe(channel int, mode OpMode) (ChannelState, error) {
	result, err := uvcan.Test(int32(channel), uvcan.Mode(mode))
	if err != nil {
		return ChannelNotTestable, uvError(err)
	}
	return ChannelState(result), nil
}

func (u *UVCAN) Init(channel int, mode OpMode) error {
	if u.bound {
		return ErrAlreadyInit
	}
	h, err := uvcan.Init(int32(channel), uvcan.Mode(mode))
	if err != nil {
		return uvError(err)
	}
	u.handle = h
	u.bound = true
	return nil
}

func (u *UVCAN) Start(rate Bitrate) error {
	if !u.bound {
		return ErrNotInitialized
	}
	br := uvcan.Bitrate{Index: int32(rate)}
	if err := u.handle.Start(&br); err != nil {
		return uvError(err)
	}
	u.rate = rate
	u.rateSet = true
	u.started = true
	return nil
}

func (u *UVCAN) Stop() error {
	if !u.bound {
		return ErrNotInitialized
	}
	if err := u.handle.Reset(); err != nil {
		return uvError(err)
	}
	u.started = false
	return nil
}

func (u *UVCAN) Release() error {
	if !u.bound {
		return nil
	}
	err := u.handle.Exit()
	u.bound = false
	u.started = false
	return uvError(err)
}

func (u *UVCAN) Write(frame *Frame, timeout time.Duration) error {
	if !u.started {
		return ErrNotStarted
	}
	msg := uvcan.Message{
		ID:  frame.Identifier,
		DLC: uint8(frame.Length()),
	}
	if frame.Extended {
		msg.Flags |= uvcan.CANMSG_XTD
	}
	if frame.RTR {
		msg.Flags |= uvcan.CANMSG_RTR
	}
	copy(msg.Data[:], frame.Data)
	return uvError(u.handle.Write(&msg, toMillis(timeout)))
}

func (u *UVCAN) Read(timeout time.Duration) (*Frame, error) {
	if !u.started {
		return nil, ErrNotStarted
	}
	var msg uvcan.Message
	if err := u.handle.Read(&msg, toMillis(timeout)); err != nil {
		return nil, uvError(err)
	}
	if msg.Flags&uvcan.CANMSG_STS != 0 {
		return nil, ErrErrorFrame
	}
	dlc := msg.DLC
	if dlc > MaxDataLength {
		dlc = MaxDataLength
	}
	f := NewFrame(msg.ID, msg.Data[:dlc])
	f.Extended = msg.Flags&uvcan.CANMSG_XTD != 0
	f.RTR = msg.Flags&uvcan.CANMSG_RTR != 0
	return f, nil
}

func (u *UVCAN) Status() (BusStatus, error) {
	if !u.bound {
		return 0, ErrNotInitialized
	}
	st, err := u.handle.Status()
	if err != nil {
		return 0, uvError(err)
	}
	return BusStatus(st), nil
}

func (u *UVCAN) BusLoad() (float64, BusStatus, error) {
	if !u.bound {
		return 0, 0, ErrNotInitialized
	}
	load, st, err := u.handle.Busload()
	if err != nil {
		return 0, 0, uvError(err)
	}
	return float64(load), BusStatus(st), nil
}

func (u *UVCAN) Bitrate() (Bitrate, error) {
	if !u.bound {
		return 0, ErrNotInitialized
	}
	var br uvcan.Bitrate
	var speed uvcan.Speed
	if err := u.handle.BitrateInfo(&br, &speed); err != nil {
		return 0, uvError(err)
	}
	if br.Index <= 0 && Bitrate(br.Index).Valid() {
		return Bitrate(br.Index), nil
	}
	return BitrateFromKbit(float64(speed.Nominal.Speed) / 1000.0)
}

// Firmware reports the driver version.
func (u *UVCAN) Firmware() (string, error) {
	v := uvcan.Version()
	if v == "" {
		return "", ErrNotSupported
	}
	return v, nil
}

// Hardware reports the wrapper library in use.
func (u *UVCAN) Hardware() (string, error) {
	if u.cfg.Library != "" {
		return u.cfg.Library, nil
	}
	return uvcan.DefaultLibrary(), nil
}

// uvError rebases driver error codes onto the package sentinels, the
// code tables are identical.
func uvError(err error) error {
	if err == nil {
		return nil
	}
	var ue *uvcan.Error
	if errors.As(err, &ue) {
		return NewError(ue.Code)
	}
	return err
}

func toMillis(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms >= int64(uvcan.CANREAD_INFINITE) {
		return uvcan.CANREAD_INFINITE - 1
	}
	return uint16(ms)
}
