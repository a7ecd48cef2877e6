package gocanapi

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeSLCANFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  string
	}{
		{
			name:  "standard",
			frame: NewFrame(0x123, []byte{0xAA, 0xBB, 0xCC}),
			want:  "t1233AABBCC\r",
		},
		{
			name:  "standard no data",
			frame: NewFrame(0x7FF, nil),
			want:  "t7FF0\r",
		},
		{
			name:  "standard id masked to 11 bits",
			frame: NewFrame(0xFFFF, []byte{0x01}),
			want:  "t7FF101\r",
		},
		{
			name:  "extended",
			frame: NewFrame(0x18DB33F1, []byte{0x02, 0x01, 0x0D}, OptExtended),
			want:  "T18DB33F1302010D\r",
		},
		{
			name:  "remote standard",
			frame: NewFrame(0x123, make([]byte, 4), OptRTR),
			want:  "r1234\r",
		},
		{
			name:  "remote extended",
			frame: NewFrame(0x18DB33F1, make([]byte, 2), OptExtended, OptRTR),
			want:  "R18DB33F12\r",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeSLCANFrame(tt.frame); !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("encodeSLCANFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeSLCANFrame(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantID   uint32
		wantLen  int
		extended bool
		rtr      bool
		wantErr  bool
	}{
		{name: "standard", line: "t1233AABBCC", wantID: 0x123, wantLen: 3},
		{name: "standard empty", line: "t7FF0", wantID: 0x7FF, wantLen: 0},
		{name: "extended", line: "T18DB33F1302010D", wantID: 0x18DB33F1, wantLen: 3, extended: true},
		{name: "remote standard", line: "r1234", wantID: 0x123, wantLen: 4, rtr: true},
		{name: "remote extended", line: "R18DB33F12", wantID: 0x18DB33F1, wantLen: 2, extended: true, rtr: true},
		{name: "unknown type", line: "x123", wantErr: true},
		{name: "short line", line: "t12", wantErr: true},
		{name: "bad identifier", line: "tZZZ0", wantErr: true},
		{name: "dlc out of range", line: "t123900112233445566778899", wantErr: true},
		{name: "body shorter than header", line: "t1234AABB", wantErr: true},
		{name: "bad body", line: "t1232ZZZZ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSLCANFrame([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeSLCANFrame() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.Identifier != tt.wantID {
				t.Errorf("Identifier = %X, want %X", got.Identifier, tt.wantID)
			}
			if got.Length() != tt.wantLen {
				t.Errorf("Length() = %d, want %d", got.Length(), tt.wantLen)
			}
			if got.Extended != tt.extended || got.RTR != tt.rtr {
				t.Errorf("flags = ext %v rtr %v, want ext %v rtr %v", got.Extended, got.RTR, tt.extended, tt.rtr)
			}
		})
	}
}

func TestSLCANFrameRoundTrip(t *testing.T) {
	frames := []*Frame{
		NewFrame(0x123, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}),
		NewFrame(0x1FFFFFFF, []byte{0xFF}, OptExtended),
		NewFrame(0x001, nil),
	}
	for _, frame := range frames {
		line := encodeSLCANFrame(frame)
		got, err := decodeSLCANFrame(line[:len(line)-1])
		if err != nil {
			t.Fatalf("decode(encode(%s)) error = %v", frame.String(), err)
		}
		if got.Identifier != frame.Identifier || !bytes.Equal(got.Data, frame.Data) || got.Extended != frame.Extended {
			t.Errorf("round trip changed frame: got %s, want %s", got.String(), frame.String())
		}
	}
}

func TestSLCANRateCommand(t *testing.T) {
	tests := []struct {
		rate    Bitrate
		want    string
		wantErr bool
	}{
		{Bitrate10K, "S0", false},
		{Bitrate20K, "S1", false},
		{Bitrate50K, "S2", false},
		{Bitrate100K, "S3", false},
		{Bitrate125K, "S4", false},
		{Bitrate250K, "S5", false},
		{Bitrate500K, "S6", false},
		{Bitrate800K, "S7", false},
		{Bitrate1M, "S8", false},
		{Bitrate(42), "", true},
	}
	for _, tt := range tests {
		got, err := slcanRateCommand(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("slcanRateCommand(%v) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidBitrate) {
				t.Errorf("slcanRateCommand(%v) error = %v, want ErrInvalidBitrate", tt.rate, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("slcanRateCommand(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestDecodeSLCANVersion(t *testing.T) {
	tests := []struct {
		line   string
		wantHW string
		wantSW string
	}{
		{"V1011", "1.0", "1.1"},
		{"V1325", "1.3", "2.5"},
		{"V", "", ""},
		{"VZZZZ", "", ""},
	}
	for _, tt := range tests {
		hw, sw := decodeSLCANVersion([]byte(tt.line))
		if hw != tt.wantHW || sw != tt.wantSW {
			t.Errorf("decodeSLCANVersion(%q) = %q, %q, want %q, %q", tt.line, hw, sw, tt.wantHW, tt.wantSW)
		}
	}
}

func TestDecodeSLCANStatus(t *testing.T) {
	tests := []struct {
		name  string
		flags uint8
		want  BusStatus
	}{
		{"clear", 0x00, 0},
		{"rx fifo full", 0x01, BusQueueOverrun},
		{"tx fifo full", 0x02, BusTxBusy},
		{"error warning", 0x04, BusWarning},
		{"data overrun", 0x08, BusMessageLost},
		{"error passive", 0x20, BusError},
		{"bus error", 0x80, BusError},
		{"everything", 0xFF, BusQueueOverrun | BusTxBusy | BusWarning | BusMessageLost | BusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeSLCANStatus(tt.flags); got != tt.want {
				t.Errorf("decodeSLCANStatus(%#02x) = %s, want %s", tt.flags, got, tt.want)
			}
		})
	}
}

func TestNybbleToHex(t *testing.T) {
	want := "0123456789ABCDEF"
	for i := 0; i < 16; i++ {
		if got := nybbleToHex(byte(i)); got != want[i] {
			t.Errorf("nybbleToHex(%d) = %c, want %c", i, got, want[i])
		}
	}
}
