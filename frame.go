package gocanapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// MaxDataLength is the classic CAN payload limit.
const MaxDataLength = 8

const (
	// MaxStandardID is the largest 11-bit identifier.
	MaxStandardID = 0x7FF
	// MaxExtendedID is the largest 29-bit identifier.
	MaxExtendedID = 0x1FFFFFFF
)

// Frame is one classic CAN message. FD framing is not representable,
// transports always send with the FD flags cleared. Timeout is passed
// to the transport write, 0 means best-effort non-blocking.
type Frame struct {
	Identifier uint32
	Extended   bool
	RTR        bool
	Data       []byte
	Timeout    time.Duration
}

type FrameOpt func(*Frame)

// OptExtended marks the frame as 29-bit extended.
func OptExtended(f *Frame) {
	f.Extended = true
}

// OptRTR marks the frame as a remote transmission request.
func OptRTR(f *Frame) {
	f.RTR = true
}

func OptTimeout(d time.Duration) FrameOpt {
	return func(f *Frame) {
		f.Timeout = d
	}
}

// NewFrame copies data into a new frame, truncating to MaxDataLength.
func NewFrame(identifier uint32, data []byte, opts ...FrameOpt) *Frame {
	n := len(data)
	if n > MaxDataLength {
		n = MaxDataLength
	}
	b := make([]byte, n)
	copy(b, data[:n])
	f := &Frame{
		Identifier: identifier,
		Data:       b,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Shortcommand for a 29bit frame
func NewExtendedFrame(identifier uint32, data []byte, opts ...FrameOpt) *Frame {
	f := NewFrame(identifier, data, opts...)
	f.Extended = true
	return f
}

// Length returns the DLC.
func (f *Frame) Length() int {
	return len(f.Data)
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *Frame) marker() string {
	switch {
	case f.RTR:
		return "<r> || "
	case f.Extended:
		return "<x> || "
	default:
		return "<s> || "
	}
}

func (f *Frame) id() string {
	if f.Extended {
		return fmt.Sprintf("0x%08X", f.Identifier)
	}
	return fmt.Sprintf("0x%03X", f.Identifier)
}

func (f *Frame) String() string {
	var out strings.Builder

	out.WriteString(f.marker())
	out.WriteString(f.id() + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")

	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))

	out.WriteString(" || ")

	var binView strings.Builder
	for i, b := range f.Data {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(f.Data)-1 {
			binView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-72s", binView.String()))

	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Data))
	return out.String()
}

func (f *Frame) ColorString() string {
	var out strings.Builder

	out.WriteString(f.marker())
	out.WriteString(green("%s", f.id()) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")

	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))

	out.WriteString(" || ")

	var binView strings.Builder
	for i, b := range f.Data {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(f.Data)-1 {
			binView.WriteString(" ")
		}
	}
	out.WriteString(red(fmt.Sprintf("%-72s", binView.String())))

	out.WriteString(" || ")
	out.WriteString(yellow(onlyPrintable(f.Data)))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
