package gocanapi

import (
	"errors"
	"testing"
	"time"
)

func newVirtual(t *testing.T) *Virtual {
	t.Helper()
	tr, err := NewVirtual(&Config{OnMessage: func(string) {}, OnError: func(error) {}})
	if err != nil {
		t.Fatalf("NewVirtual() error = %v", err)
	}
	v := tr.(*Virtual)
	t.Cleanup(func() { v.Release() })
	return v
}

func startVirtual(t *testing.T, channel int) *Virtual {
	t.Helper()
	v := newVirtual(t)
	if err := v.Init(channel, ModeDefault); err != nil {
		t.Fatalf("Init(%d) error = %v", channel, err)
	}
	if err := v.Start(Bitrate500K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return v
}

func TestVirtualLoopback(t *testing.T) {
	v := startVirtual(t, 0)

	sent := NewFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err := v.Write(sent, 0); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := v.Read(time.Second)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Identifier != 0x123 || got.Length() != 4 {
		t.Errorf("Read() = %s, want the frame written", got.String())
	}

	// the queued frame must not alias the caller's buffer
	sent.Data[0] = 0x00
	if err := v.Write(sent, 0); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got.Data[0] != 0xDE {
		t.Errorf("received frame shares memory with sender, Data[0] = %02X", got.Data[0])
	}
}

func TestVirtualReadEmpty(t *testing.T) {
	v := startVirtual(t, 1)

	if _, err := v.Read(0); !errors.Is(err, ErrRxEmpty) {
		t.Errorf("Read() on empty queue error = %v, want ErrRxEmpty", err)
	}
	st, err := v.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st&BusRxEmpty == 0 {
		t.Errorf("Status() = %s, want rxempty set", st)
	}
}

func TestVirtualInject(t *testing.T) {
	v := startVirtual(t, 2)

	if err := v.InjectFrame(NewFrame(0x7E8, []byte{1, 2, 3}, OptExtended)); err != nil {
		t.Fatalf("InjectFrame() error = %v", err)
	}
	got, err := v.Read(time.Second)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Identifier != 0x7E8 || !got.Extended {
		t.Errorf("Read() = %s, want the injected extended frame", got.String())
	}
}

func TestVirtualOverrun(t *testing.T) {
	v := startVirtual(t, 3)

	frame := NewFrame(0x100, nil)
	for i := 0; i < virtualQueueDepth; i++ {
		if err := v.InjectFrame(frame); err != nil {
			t.Fatalf("InjectFrame() #%d error = %v", i, err)
		}
	}
	if err := v.InjectFrame(frame); !errors.Is(err, ErrMessageLost) {
		t.Errorf("InjectFrame() on full queue error = %v, want ErrMessageLost", err)
	}
	st, err := v.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st&BusMessageLost == 0 || st&BusQueueOverrun == 0 {
		t.Errorf("Status() = %s, want msglost and overrun latched", st)
	}
}

func TestVirtualWriteFullQueue(t *testing.T) {
	v := startVirtual(t, 4)

	frame := NewFrame(0x100, nil)
	for i := 0; i < virtualQueueDepth; i++ {
		if err := v.Write(frame, 0); err != nil {
			t.Fatalf("Write() #%d error = %v", i, err)
		}
	}
	if err := v.Write(frame, 0); !errors.Is(err, ErrTxBusy) {
		t.Errorf("Write() on full queue error = %v, want ErrTxBusy", err)
	}
}

func TestVirtualOccupancy(t *testing.T) {
	first := newVirtual(t)
	if err := first.Init(5, ModeDefault); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	second := newVirtual(t)
	if state, _ := second.Probe(5, ModeDefault); state != ChannelOccupied {
		t.Errorf("Probe(5) = %v, want occupied", state)
	}
	if err := second.Init(5, ModeDefault); !errors.Is(err, ErrAlreadyInit) {
		t.Errorf("Init(5) on taken channel error = %v, want ErrAlreadyInit", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if state, _ := second.Probe(5, ModeDefault); state != ChannelAvailable {
		t.Errorf("Probe(5) after release = %v, want available", state)
	}
	if err := second.Init(5, ModeDefault); err != nil {
		t.Errorf("Init(5) after release error = %v", err)
	}
}

func TestVirtualProbeRange(t *testing.T) {
	v := newVirtual(t)
	for _, channel := range []int{-1, virtualChannelCount, 100} {
		if state, err := v.Probe(channel, ModeDefault); err != nil || state != ChannelNotPresent {
			t.Errorf("Probe(%d) = %v, %v, want not present", channel, state, err)
		}
	}
	if err := v.Init(virtualChannelCount, ModeDefault); !errors.Is(err, ErrIllegalParam) {
		t.Errorf("Init(%d) error = %v, want ErrIllegalParam", virtualChannelCount, err)
	}
}

func TestVirtualStatusStopped(t *testing.T) {
	v := newVirtual(t)
	if err := v.Init(6, ModeDefault); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	st, err := v.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st&BusStopped == 0 {
		t.Errorf("Status() before Start = %s, want stopped", st)
	}
	if err := v.Start(Bitrate125K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st, _ = v.Status()
	if st&BusStopped != 0 {
		t.Errorf("Status() after Start = %s, stopped flag still set", st)
	}
	if err := v.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	st, _ = v.Status()
	if st&BusStopped == 0 {
		t.Errorf("Status() after Stop = %s, want stopped", st)
	}
}

func TestVirtualBitrate(t *testing.T) {
	v := newVirtual(t)
	if err := v.Init(7, ModeDefault); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := v.Bitrate(); !errors.Is(err, ErrInvalidBitrate) {
		t.Errorf("Bitrate() before Start error = %v, want ErrInvalidBitrate", err)
	}
	if err := v.Start(Bitrate250K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rate, err := v.Bitrate()
	if err != nil {
		t.Fatalf("Bitrate() error = %v", err)
	}
	if rate != Bitrate250K {
		t.Errorf("Bitrate() = %v, want %v", rate, Bitrate250K)
	}
}

func TestVirtualBusLoad(t *testing.T) {
	v := startVirtual(t, 0)

	for i := 0; i < 51; i++ {
		if err := v.InjectFrame(NewFrame(0x100, nil)); err != nil {
			t.Fatalf("InjectFrame() error = %v", err)
		}
	}
	load, _, err := v.BusLoad()
	if err != nil {
		t.Fatalf("BusLoad() error = %v", err)
	}
	if load < 19.9 || load > 20.1 {
		t.Errorf("BusLoad() = %v, want about 20%%", load)
	}
}

func TestVirtualNotStarted(t *testing.T) {
	v := newVirtual(t)
	if err := v.Init(1, ModeDefault); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := v.Write(NewFrame(0x100, nil), 0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Write() before Start error = %v, want ErrNotStarted", err)
	}
	if _, err := v.Read(0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Read() before Start error = %v, want ErrNotStarted", err)
	}
	if err := v.InjectFrame(NewFrame(0x100, nil)); !errors.Is(err, ErrNotStarted) {
		t.Errorf("InjectFrame() before Start error = %v, want ErrNotStarted", err)
	}
}

func TestVirtualSessionEndToEnd(t *testing.T) {
	tr, err := NewTransport("Virtual", nil)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	s := NewSession(tr)
	if err := s.Open(0, ModeDefault); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if err := s.Start(Bitrate500K); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.SendFrame(0x244, []byte{0x40, 0xA1, 0x02}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	frame, err := s.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if frame.Identifier != 0x244 || frame.Length() != 3 {
		t.Errorf("Receive() = %s, want the loopback of the sent frame", frame.String())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if state, _ := tr.Probe(0, ModeDefault); state != ChannelAvailable {
		t.Errorf("channel still occupied after Close, probe = %v", state)
	}
}
