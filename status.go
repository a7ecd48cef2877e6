package gocanapi

import (
	"fmt"
	"strings"
)

// Status is a signed driver status code. Zero means success, negative
// values are the documented error kinds. The values follow the CAN API
// return codes used by the vendor drivers so they can be passed through
// unchanged.
type Status int

const (
	StatusOK             Status = 0
	StatusBusOff         Status = -1
	StatusErrorWarning   Status = -2
	StatusBusError       Status = -3
	StatusAlreadyStarted Status = -8
	StatusNotStarted     Status = -9
	StatusMessageLost    Status = -10
	StatusTxBusy         Status = -20
	StatusRxEmpty        Status = -30
	StatusErrorFrame     Status = -40
	StatusTimeout        Status = -50
	StatusResource       Status = -90
	StatusBitrate        Status = -91
	StatusHandle         Status = -92
	StatusIllegalParam   Status = -93
	StatusNullPointer    Status = -94
	StatusNotInitialized Status = -95
	StatusAlreadyInit    Status = -96
	StatusNotSupported   Status = -98
	StatusFatal          Status = -99
	StatusVendor         Status = -100
)

func (s Status) String() string {
	if err, found := errMap[s]; found {
		return err.Description
	}
	if s >= 0 {
		return fmt.Sprintf("status %d", int(s))
	}
	return fmt.Sprintf("vendor specific error (%d)", int(s))
}

// ChannelState is the outcome of probing a channel.
type ChannelState int

const (
	ChannelNotTestable ChannelState = -2
	ChannelNotPresent  ChannelState = -1
	ChannelAvailable   ChannelState = 0
	ChannelOccupied    ChannelState = 1
)

func (c ChannelState) String() string {
	switch c {
	case ChannelNotTestable:
		return "not testable"
	case ChannelNotPresent:
		return "not present"
	case ChannelAvailable:
		return "available"
	case ChannelOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("state %d", int(c))
	}
}

// BusStatus is the CAN controller status register.
type BusStatus uint8

const (
	BusQueueOverrun BusStatus = 1 << iota // event queue overrun
	BusMessageLost                        // message lost
	BusRxEmpty                            // receiver empty
	BusTxBusy                             // transmitter busy
	BusError                              // bus error (LEC)
	BusWarning                            // error warning level reached
	BusOff                                // bus off
	BusStopped                            // controller stopped
)

func (b BusStatus) String() string {
	if b == 0 {
		return "ok"
	}
	var out []string
	for _, bit := range []struct {
		flag BusStatus
		name string
	}{
		{BusStopped, "stopped"},
		{BusOff, "busoff"},
		{BusWarning, "warning"},
		{BusError, "buserror"},
		{BusTxBusy, "txbusy"},
		{BusRxEmpty, "rxempty"},
		{BusMessageLost, "msglost"},
		{BusQueueOverrun, "overrun"},
	} {
		if b&bit.flag != 0 {
			out = append(out, bit.name)
		}
	}
	return strings.Join(out, "|")
}

// OpMode selects how a channel is initialized.
type OpMode uint8

const (
	ModeDefault     OpMode = 0x00
	ModeListenOnly  OpMode = 0x01 // monitor the bus without acking frames
	ModeErrorFrames OpMode = 0x02 // deliver error frames to the receiver
)

func (m OpMode) String() string {
	if m == ModeDefault {
		return "default"
	}
	var out []string
	if m&ModeListenOnly != 0 {
		out = append(out, "listen-only")
	}
	if m&ModeErrorFrames != 0 {
		out = append(out, "error-frames")
	}
	if rest := m &^ (ModeListenOnly | ModeErrorFrames); rest != 0 {
		out = append(out, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	return strings.Join(out, "|")
}
