package uvcan

import "fmt"

// CAN API V3 return codes.
const (
	CANERR_NOERROR   int32 = 0
	CANERR_BOFF      int32 = -1
	CANERR_EWRN      int32 = -2
	CANERR_BERR      int32 = -3
	CANERR_ONLINE    int32 = -8
	CANERR_OFFLINE   int32 = -9
	CANERR_MSG_LST   int32 = -10
	CANERR_TX_BUSY   int32 = -20
	CANERR_RX_EMPTY  int32 = -30
	CANERR_ERR_FRAME int32 = -40
	CANERR_TIMEOUT   int32 = -50
	CANERR_RESOURCE  int32 = -90
	CANERR_BAUDRATE  int32 = -91
	CANERR_HANDLE    int32 = -92
	CANERR_ILLPARA   int32 = -93
	CANERR_NULLPTR   int32 = -94
	CANERR_NOTINIT   int32 = -95
	CANERR_YETINIT   int32 = -96
	CANERR_NOTSUPP   int32 = -98
	CANERR_FATAL     int32 = -99
	CANERR_VENDOR    int32 = -100
)

type Error struct {
	Code        int
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%v)", e.Description, e.Code)
}

var (
	ErrBusOff         error = &Error{Code: int(CANERR_BOFF), Description: "busoff status"}
	ErrWarningLevel   error = &Error{Code: int(CANERR_EWRN), Description: "warning level reached"}
	ErrBusError       error = &Error{Code: int(CANERR_BERR), Description: "bus error occurred"}
	ErrOnline         error = &Error{Code: int(CANERR_ONLINE), Description: "controller already started"}
	ErrOffline        error = &Error{Code: int(CANERR_OFFLINE), Description: "controller not started"}
	ErrMessageLost    error = &Error{Code: int(CANERR_MSG_LST), Description: "message lost"}
	ErrTxBusy         error = &Error{Code: int(CANERR_TX_BUSY), Description: "transmitter busy"}
	ErrRxEmpty        error = &Error{Code: int(CANERR_RX_EMPTY), Description: "receiver empty"}
	ErrErrFrame       error = &Error{Code: int(CANERR_ERR_FRAME), Description: "error frame received"}
	ErrTimeout        error = &Error{Code: int(CANERR_TIMEOUT), Description: "timed out"}
	ErrResource       error = &Error{Code: int(CANERR_RESOURCE), Description: "resource allocation failed"}
	ErrBaudrate       error = &Error{Code: int(CANERR_BAUDRATE), Description: "illegal baudrate"}
	ErrHandle         error = &Error{Code: int(CANERR_HANDLE), Description: "illegal handle"}
	ErrIllParam       error = &Error{Code: int(CANERR_ILLPARA), Description: "illegal parameter"}
	ErrNullPointer    error = &Error{Code: int(CANERR_NULLPTR), Description: "null pointer assignment"}
	ErrNotInitialized error = &Error{Code: int(CANERR_NOTINIT), Description: "not initialized"}
	ErrYetInitialized error = &Error{Code: int(CANERR_YETINIT), Description: "already initialized"}
	ErrNotSupported   error = &Error{Code: int(CANERR_NOTSUPP), Description: "not supported"}
	ErrFatal          error = &Error{Code: int(CANERR_FATAL), Description: "fatal error"}
)

// NewError maps a can_... return code to its sentinel. Codes at or
// above zero are success.
func NewError[T ~int | ~int32 | ~int64](code T) error {
	if code >= 0 {
		return nil
	}
	switch int32(code) {
	case CANERR_BOFF:
		return ErrBusOff
	case CANERR_EWRN:
		return ErrWarningLevel
	case CANERR_BERR:
		return ErrBusError
	case CANERR_ONLINE:
		return ErrOnline
	case CANERR_OFFLINE:
		return ErrOffline
	case CANERR_MSG_LST:
		return ErrMessageLost
	case CANERR_TX_BUSY:
		return ErrTxBusy
	case CANERR_RX_EMPTY:
		return ErrRxEmpty
	case CANERR_ERR_FRAME:
		return ErrErrFrame
	case CANERR_TIMEOUT:
		return ErrTimeout
	case CANERR_RESOURCE:
		return ErrResource
	case CANERR_BAUDRATE:
		return ErrBaudrate
	case CANERR_HANDLE:
		return ErrHandle
	case CANERR_ILLPARA:
		return ErrIllParam
	case CANERR_NULLPTR:
		return ErrNullPointer
	case CANERR_NOTINIT:
		return ErrNotInitialized
	case CANERR_YETINIT:
		return ErrYetInitialized
	case CANERR_NOTSUPP:
		return ErrNotSupported
	case CANERR_FATAL:
		return ErrFatal
	default:
		return &Error{Code: int(code), Description: "vendor specific error"}
	}
}
