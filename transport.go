package gocanapi

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Transport is the narrow contract to the underlying CAN driver. All
// methods block for at most their timeout argument, perform no retries
// and pass driver status codes through as *Error values. A Transport
// instance drives one channel at a time.
type Transport interface {
	Name() string
	// Probe tests whether channel exists and is free without binding
	// it. Safe to call before Init.
	Probe(channel int, mode OpMode) (ChannelState, error)
	// Init binds the driver to channel. Fails with ErrAlreadyInit when
	// called twice without an intervening Release.
	Init(channel int, mode OpMode) error
	// Start arms the controller for bus activity.
	Start(rate Bitrate) error
	Stop() error
	Release() error
	// Write transmits one frame. A zero timeout means best-effort
	// non-blocking.
	Write(frame *Frame, timeout time.Duration) error
	// Read blocks up to timeout for one inbound frame and returns
	// ErrRxEmpty when none arrived.
	Read(timeout time.Duration) (*Frame, error)
	Status() (BusStatus, error)
	BusLoad() (float64, BusStatus, error)
	Bitrate() (Bitrate, error)
}

// HardwareInfo is implemented by transports that can name the device
// behind the channel.
type HardwareInfo interface {
	Hardware() (string, error)
	Firmware() (string, error)
}

type TransportInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*Config) (Transport, error)
}

func (t *TransportInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", t.Name, t.Description, t.RequiresSerialPort)
}

type Config struct {
	Debug        bool
	Port         string
	PortBaudrate int
	Library      string // native driver artifact override
	OnMessage    func(string)
	OnError      func(error)
}

var transportMap = make(map[string]*TransportInfo)

func NewTransport(transportName string, cfg *Config) (Transport, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			log.Println(err)
		}
	}
	if transport, found := transportMap[transportName]; found {
		return transport.New(cfg)
	}
	return nil, fmt.Errorf("unknown transport %q", transportName)
}

func RegisterTransport(transport *TransportInfo) error {
	if _, found := transportMap[transport.Name]; !found {
		transportMap[transport.Name] = transport
		return nil
	}
	return fmt.Errorf("transport %s already registered", transport.Name)
}

func ListTransportNames() []string {
	var out []string
	for name := range transportMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListTransports() []TransportInfo {
	var out []TransportInfo
	for _, transport := range transportMap {
		out = append(out, *transport)
	}
	return out
}
