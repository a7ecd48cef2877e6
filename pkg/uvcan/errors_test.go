package uvcan

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name string
		code int32
		want error
	}{
		{"noerror", CANERR_NOERROR, nil},
		{"positive handle", 3, nil},
		{"busoff", CANERR_BOFF, ErrBusOff},
		{"warning level", CANERR_EWRN, ErrWarningLevel},
		{"offline", CANERR_OFFLINE, ErrOffline},
		{"rx empty", CANERR_RX_EMPTY, ErrRxEmpty},
		{"tx busy", CANERR_TX_BUSY, ErrTxBusy},
		{"notinit", CANERR_NOTINIT, ErrNotInitialized},
		{"yetinit", CANERR_YETINIT, ErrYetInitialized},
		{"notsupp", CANERR_NOTSUPP, ErrNotSupported},
		{"fatal", CANERR_FATAL, ErrFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewError(tt.code); !errors.Is(got, tt.want) {
				t.Errorf("NewError(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestNewErrorVendor(t *testing.T) {
	got := NewError(CANERR_VENDOR - 5)
	if got == nil {
		t.Fatal("NewError() below the table = nil, want vendor error")
	}
	var e *Error
	if !errors.As(got, &e) {
		t.Fatalf("NewError() returned %T, want *Error", got)
	}
	if e.Code != int(CANERR_VENDOR)-5 {
		t.Errorf("Code = %d, want %d", e.Code, int(CANERR_VENDOR)-5)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := ErrRxEmpty.Error(); got != "receiver empty (-30)" {
		t.Errorf("Error() = %q, want %q", got, "receiver empty (-30)")
	}
}
