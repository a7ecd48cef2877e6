package gocanapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/albenik/bcd"
	"github.com/avast/retry-go"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"golang.org/x/sync/errgroup"
)

const (
	slcanDefaultBaudrate = 115200
	slcanLineTimeout     = 200 * time.Millisecond
	slcanSetupDelay      = 10 * time.Millisecond
)

// SLCan drives Lawicel style serial adapters (CANUSB, Canable and
// friends) over the ASCII line protocol. All commands and replies are
// CR terminated, one frame or reply per line.
type SLCan struct {
	cfg      *Config
	port     serial.Port
	portName string

	bound   bool
	started bool
	mode    OpMode
	rate    Bitrate
	rateSet bool

	// partial line carried over between reads
	buf []byte
	// frames decoded while waiting for a command reply
	pending []*Frame

	hwVersion string
	swVersion string
	serialNo  string
}

func init() {
	if err := RegisterTransport(&TransportInfo{
		Name:               "SLCan",
		Description:        "Lawicel SLCAN serial adapter",
		RequiresSerialPort: true,
		New:                NewSLCan,
	}); err != nil {
		panic(err)
	}
}

func NewSLCan(cfg *Config) (Transport, error) {
	if cfg.PortBaudrate == 0 {
		cfg.PortBaudrate = slcanDefaultBaudrate
	}
	return &SLCan{cfg: cfg}, nil
}

func (sl *SLCan) Name() string {
	return "SLCan"
}

// resolvePort maps a channel index onto the configured port or, when
// none is set, the sorted enumerator list.
func (sl *SLCan) resolvePort(channel int) (string, error) {
	if sl.cfg.Port != "" {
		if channel != 0 {
			return "", ErrIllegalParam
		}
		if runtime.GOOS == "windows" {
			return strings.ToUpper(sl.cfg.Port), nil
		}
		return sl.cfg.Port, nil
	}
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	if channel < 0 || channel >= len(names) {
		return "", ErrIllegalParam
	}
	return names[channel], nil
}

func (sl *SLCan) Probe(channel int, mode OpMode) (ChannelState, error) {
	if sl.bound && channel == 0 {
		return ChannelOccupied, nil
	}
	if _, err := sl.resolvePort(channel); err != nil {
		return ChannelNotPresent, nil
	}
	return ChannelAvailable, nil
}

func (sl *SLCan) Init(channel int, mode OpMode) error {
	if sl.bound {
		return ErrAlreadyInit
	}
	portName, err := sl.resolvePort(channel)
	if err != nil {
		return err
	}
	sm := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, sm)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", portName, err)
	}
	p.SetReadTimeout(3 * time.Millisecond)
	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	err = retry.Do(func() error {
		return sl.handshake(p)
	},
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			sl.cfg.OnMessage(fmt.Sprintf("handshake retry #%d: %v", n, err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.Close()
		return fmt.Errorf("adapter handshake failed: %w", err)
	}

	sl.port = p
	sl.portName = portName
	sl.mode = mode
	sl.bound = true
	sl.buf = sl.buf[:0]
	sl.pending = sl.pending[:0]
	if sl.cfg.Debug {
		sl.cfg.OnMessage(fmt.Sprintf("%s hw %s sw %s serial %s", portName, sl.hwVersion, sl.swVersion, sl.serialNo))
	}
	return nil
}

// handshake drains the adapter and queries version and serial number.
// The reader runs alongside the command writer since replies start
// arriving before the last command is out.
func (sl *SLCan) handshake(p serial.Port) error {
	deadline := time.Now().Add(2 * time.Second)
	errg, _ := errgroup.WithContext(context.Background())
	errg.Go(func() error {
		readBuf := make([]byte, 16)
		line := make([]byte, 0, 64)
		var haveVersion bool
		for time.Now().Before(deadline) {
			n, err := p.Read(readBuf)
			if err != nil {
				return fmt.Errorf("failed to read com port: %w", err)
			}
			if n == 0 {
				if haveVersion {
					return nil
				}
				continue
			}
			for _, b := range readBuf[:n] {
				if b != '\r' {
					if b != 0x07 {
						line = append(line, b)
					}
					continue
				}
				if len(line) == 0 {
					continue
				}
				switch line[0] {
				case 'V':
					sl.hwVersion, sl.swVersion = decodeSLCANVersion(line)
					haveVersion = true
				case 'N':
					sl.serialNo = string(line[1:])
				}
				line = line[:0]
			}
		}
		if haveVersion {
			return nil
		}
		return fmt.Errorf("no version reply")
	})
	for _, c := range []string{"", "", "", "", "V", "N", "Z0"} {
		if _, err := p.Write([]byte(c + "\r")); err != nil {
			return err
		}
		time.Sleep(slcanSetupDelay)
	}
	return errg.Wait()
}

func (sl *SLCan) Start(rate Bitrate) error {
	if !sl.bound {
		return ErrNotInitialized
	}
	if sl.started {
		return ErrAlreadyStarted
	}
	cmd, err := slcanRateCommand(rate)
	if err != nil {
		return err
	}
	if _, err := sl.port.Write([]byte(cmd + "\r")); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	time.Sleep(slcanSetupDelay)
	open := "O"
	if sl.mode&ModeListenOnly != 0 {
		open = "L"
	}
	if _, err := sl.port.Write([]byte(open + "\r")); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	time.Sleep(slcanSetupDelay)
	sl.port.ResetInputBuffer()
	sl.rate = rate
	sl.rateSet = true
	sl.started = true
	return nil
}

func (sl *SLCan) Stop() error {
	if !sl.bound {
		return ErrNotInitialized
	}
	if !sl.started {
		return nil
	}
	if _, err := sl.port.Write([]byte("C\r")); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	time.Sleep(slcanSetupDelay)
	sl.started = false
	return nil
}

func (sl *SLCan) Release() error {
	if !sl.bound {
		return nil
	}
	sl.port.Write([]byte("\r\r\r"))
	time.Sleep(slcanSetupDelay)
	sl.port.ResetInputBuffer()
	sl.port.ResetOutputBuffer()
	err := sl.port.Close()
	sl.port = nil
	sl.bound = false
	sl.started = false
	return err
}

func (sl *SLCan) Write(frame *Frame, timeout time.Duration) error {
	if !sl.started {
		return ErrNotStarted
	}
	buf := encodeSLCANFrame(frame)
	if _, err := sl.port.Write(buf); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	if sl.cfg.Debug {
		sl.cfg.OnMessage(">> " + string(buf[:len(buf)-1]))
	}
	return nil
}

func (sl *SLCan) Read(timeout time.Duration) (*Frame, error) {
	if !sl.started {
		return nil, ErrNotStarted
	}
	if len(sl.pending) > 0 {
		f := sl.pending[0]
		sl.pending = sl.pending[1:]
		return f, nil
	}
	deadline := time.Now().Add(timeout)
	for {
		line, err := sl.nextLine(deadline)
		if err != nil {
			return nil, err
		}
		if isFrameLine(line[0]) {
			f, err := decodeSLCANFrame(line)
			if err != nil {
				sl.cfg.OnMessage(fmt.Sprintf("%v: %X", err, line))
				continue
			}
			if sl.cfg.Debug {
				sl.cfg.OnMessage("<< " + string(line))
			}
			return f, nil
		}
		// stray acks and status replies are dropped here
	}
}

// Status polls the adapter status flags register with the F command.
// Frames arriving while the reply is pending are queued for the next
// Read.
//
// Bit 0 CAN receive FIFO queue full
// Bit 1 CAN transmit FIFO queue full
// Bit 2 Error warning (EI), see SJA1000 datasheet
// Bit 3 Data Overrun (DOI), see SJA1000 datasheet
// Bit 4 Not used
// Bit 5 Error Passive (EPI), see SJA1000 datasheet
// Bit 6 Arbitration Lost (ALI), see SJA1000 datasheet
// Bit 7 Bus Error (BEI), see SJA1000 datasheet
func (sl *SLCan) Status() (BusStatus, error) {
	if !sl.bound {
		return 0, ErrNotInitialized
	}
	if !sl.started {
		return BusStopped, nil
	}
	line, err := sl.command("F", 'F')
	if err != nil {
		return 0, err
	}
	if len(line) < 3 {
		return 0, fmt.Errorf("short status reply: %q", line)
	}
	flags, err := strconv.ParseUint(string(line[1:3]), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("failed to decode status reply: %v", err)
	}
	return decodeSLCANStatus(uint8(flags)), nil
}

func decodeSLCANStatus(flags uint8) BusStatus {
	var st BusStatus
	if flags&0x01 != 0 {
		st |= BusQueueOverrun
	}
	if flags&0x02 != 0 {
		st |= BusTxBusy
	}
	if flags&0x04 != 0 {
		st |= BusWarning
	}
	if flags&0x08 != 0 {
		st |= BusMessageLost
	}
	if flags&0x20 != 0 || flags&0x80 != 0 {
		st |= BusError
	}
	return st
}

func (sl *SLCan) BusLoad() (float64, BusStatus, error) {
	return 0, 0, ErrNotSupported
}

func (sl *SLCan) Bitrate() (Bitrate, error) {
	if !sl.bound {
		return 0, ErrNotInitialized
	}
	if !sl.rateSet {
		return 0, ErrInvalidBitrate
	}
	return sl.rate, nil
}

// Hardware reports the adapter hardware revision from the handshake.
func (sl *SLCan) Hardware() (string, error) {
	if sl.hwVersion == "" {
		return "", ErrNotSupported
	}
	return sl.hwVersion, nil
}

// Firmware reports the adapter firmware revision from the handshake.
func (sl *SLCan) Firmware() (string, error) {
	if sl.swVersion == "" {
		return "", ErrNotSupported
	}
	return sl.swVersion, nil
}

// command writes cmd and waits for a reply line starting with the
// given marker. A bell from the adapter means the command was
// rejected.
func (sl *SLCan) command(cmd string, reply byte) ([]byte, error) {
	if _, err := sl.port.Write([]byte(cmd + "\r")); err != nil {
		return nil, fmt.Errorf("failed to write to com port: %w", err)
	}
	deadline := time.Now().Add(slcanLineTimeout)
	for {
		line, err := sl.nextLine(deadline)
		if err != nil {
			if IsRxEmpty(err) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		switch {
		case line[0] == reply:
			return line, nil
		case line[0] == 0x07:
			return nil, fmt.Errorf("command %q rejected", cmd)
		case isFrameLine(line[0]):
			if f, err := decodeSLCANFrame(line); err == nil {
				sl.pending = append(sl.pending, f)
			}
		}
	}
}

// nextLine accumulates port bytes until a full CR terminated line is
// seen. A bell is returned as a line of its own. At least one port
// read happens even with an expired deadline so buffered input is not
// lost.
func (sl *SLCan) nextLine(deadline time.Time) ([]byte, error) {
	readBuf := make([]byte, 16)
	for {
		for i, b := range sl.buf {
			if b == 0x07 {
				sl.buf = append(sl.buf[:0], sl.buf[i+1:]...)
				return []byte{0x07}, nil
			}
			if b != '\r' {
				continue
			}
			if i == 0 {
				sl.buf = append(sl.buf[:0], sl.buf[1:]...)
				break
			}
			line := make([]byte, i)
			copy(line, sl.buf[:i])
			sl.buf = append(sl.buf[:0], sl.buf[i+1:]...)
			return line, nil
		}
		n, err := sl.port.Read(readBuf)
		if err != nil {
			return nil, fmt.Errorf("failed to read com port: %w", err)
		}
		if n > 0 {
			sl.buf = append(sl.buf, readBuf[:n]...)
			continue
		}
		if !time.Now().Before(deadline) {
			return nil, ErrRxEmpty
		}
	}
}

func isFrameLine(b byte) bool {
	return b == 't' || b == 'T' || b == 'r' || b == 'R'
}

// slcanRateCommand maps a bitrate preset to its setup command.
func slcanRateCommand(rate Bitrate) (string, error) {
	switch rate {
	case Bitrate10K:
		return "S0", nil
	case Bitrate20K:
		return "S1", nil
	case Bitrate50K:
		return "S2", nil
	case Bitrate100K:
		return "S3", nil
	case Bitrate125K:
		return "S4", nil
	case Bitrate250K:
		return "S5", nil
	case Bitrate500K:
		return "S6", nil
	case Bitrate800K:
		return "S7", nil
	case Bitrate1M:
		return "S8", nil
	default:
		return "", ErrInvalidBitrate
	}
}

// encodeSLCANFrame renders one frame as a protocol line.
//
// Standard frame: 't' + 3 hex digit ID + len nibble + data as hex + CR
// Extended frame: 'T' + 8 hex digit ID + len nibble + data as hex + CR
// Remote frames use 'r'/'R' and carry no data bytes.
func encodeSLCANFrame(frame *Frame) []byte {
	buf := make([]byte, 0, 27)
	if frame.Extended {
		if frame.RTR {
			buf = append(buf, 'R')
		} else {
			buf = append(buf, 'T')
		}
		id := frame.Identifier & MaxExtendedID
		for shift := 28; shift >= 0; shift -= 4 {
			buf = append(buf, nybbleToHex(byte(id>>shift)&0xF))
		}
	} else {
		if frame.RTR {
			buf = append(buf, 'r')
		} else {
			buf = append(buf, 't')
		}
		id := frame.Identifier & MaxStandardID
		buf = append(buf, nybbleToHex(byte(id>>8)&0xF), nybbleToHex(byte(id>>4)&0xF), nybbleToHex(byte(id)&0xF))
	}
	dlc := frame.Length()
	buf = append(buf, nybbleToHex(byte(dlc)&0xF))
	if !frame.RTR {
		for i := 0; i < dlc; i++ {
			buf = append(buf, nybbleToHex(frame.Data[i]>>4), nybbleToHex(frame.Data[i]&0xF))
		}
	}
	return append(buf, '\r')
}

func decodeSLCANFrame(line []byte) (*Frame, error) {
	var idLen int
	var opts []FrameOpt
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
		opts = append(opts, OptExtended)
	case 'r':
		idLen = 3
		opts = append(opts, OptRTR)
	case 'R':
		idLen = 8
		opts = append(opts, OptExtended, OptRTR)
	default:
		return nil, fmt.Errorf("unknown frame type %q", line[0])
	}
	if len(line) < idLen+2 {
		return nil, fmt.Errorf("short frame line")
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(line[1+idLen]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	var data []byte
	if line[0] == 't' || line[0] == 'T' {
		body := line[2+idLen:]
		if len(body) < int(dataLen)*2 {
			return nil, fmt.Errorf("frame received bytes does not match header")
		}
		data, err = hex.DecodeString(string(body[:dataLen*2]))
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame body: %v", err)
		}
	} else {
		data = make([]byte, dataLen)
	}
	return NewFrame(uint32(id), data, opts...), nil
}

// helper converts a 0..15 value to its ASCII hex nibble
func nybbleToHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

// decodeSLCANVersion unpacks a Vhhss reply where both revisions are
// BCD coded, V1011 is hardware 1.0 and software 1.1.
func decodeSLCANVersion(line []byte) (hw, sw string) {
	if len(line) < 5 {
		return "", ""
	}
	b, err := hex.DecodeString(string(line[1:5]))
	if err != nil || len(b) != 2 {
		return "", ""
	}
	n := bcd.ToUint16(b)
	return fmt.Sprintf("%d.%d", n/1000, n/100%10), fmt.Sprintf("%d.%d", n/10%10, n%10)
}
