// Package uvcan binds the CAN API V3 driver family from UV Software,
// u3cankvl.dll and friends. The wrapper DLL exposes the plain C
// can_... entry points, one handle per channel.
package uvcan

// Handle identifies one initialized channel.
type Handle int32

// Mode is the operation mode byte passed to can_init.
type Mode uint8

const (
	CANMODE_DEFAULT Mode = 0x00 // normal operation
	CANMODE_MON     Mode = 0x01 // listen only, no transmit
	CANMODE_ERR     Mode = 0x02 // deliver error frames
	CANMODE_NRTR    Mode = 0x04 // suppress remote frames
	CANMODE_NXTD    Mode = 0x08 // suppress 29-bit frames
	CANMODE_SHRD    Mode = 0x10 // shared access
	CANMODE_NISO    Mode = 0x20 // non-ISO CAN FD
	CANMODE_BRSE    Mode = 0x40 // bit-rate switching
	CANMODE_FDOE    Mode = 0x80 // CAN FD operation
)

// Predefined bitrate table indexes for can_start.
const (
	CANBTR_INDEX_1M   int32 = 0
	CANBTR_INDEX_800K int32 = -1
	CANBTR_INDEX_500K int32 = -2
	CANBTR_INDEX_250K int32 = -3
	CANBTR_INDEX_125K int32 = -4
	CANBTR_INDEX_100K int32 = -5
	CANBTR_INDEX_50K  int32 = -6
	CANBTR_INDEX_20K  int32 = -7
	CANBTR_INDEX_10K  int32 = -8
)

// Board states reported by can_test.
const (
	CANBRD_NOT_TESTABLE int = -2
	CANBRD_NOT_PRESENT  int = -1
	CANBRD_PRESENT      int = 0
	CANBRD_OCCUPIED     int = 1
)

// CANREAD_INFINITE blocks a read until a message arrives.
const CANREAD_INFINITE uint16 = 65535

// Message flag bits.
const (
	CANMSG_XTD uint8 = 0x01 // 29-bit identifier
	CANMSG_RTR uint8 = 0x02 // remote frame
	CANMSG_FDF uint8 = 0x04 // CAN FD frame
	CANMSG_BRS uint8 = 0x08 // bit-rate switched
	CANMSG_ESI uint8 = 0x10 // error state indicator
	CANMSG_STS uint8 = 0x80 // status message
)

// Status mirrors the can_status_t bit register.
type Status uint8

const (
	CANSTAT_QUE_OVR  Status = 0x01 // receive queue overrun
	CANSTAT_MSG_LST  Status = 0x02 // message lost
	CANSTAT_RX_EMPTY Status = 0x04
	CANSTAT_TX_BUSY  Status = 0x08
	CANSTAT_BERR     Status = 0x10 // bus error
	CANSTAT_EWRN     Status = 0x20 // warning level reached
	CANSTAT_BOFF     Status = 0x40 // bus off
	CANSTAT_RESET    Status = 0x80 // controller stopped
)

// Bitrate mirrors can_bitrate_t. The C type is a union, Index doubles
// as the predefined table index when negative and as the btr clock
// frequency in Hz when positive.
type Bitrate struct {
	Index   int32
	Nominal BitrateNominal
	Data    BitrateData
}

type BitrateNominal struct {
	Brp   uint16
	Tseg1 uint16
	Tseg2 uint16
	Sjw   uint16
	Sam   uint8
	_     uint8
}

type BitrateData struct {
	Brp   uint16
	Tseg1 uint16
	Tseg2 uint16
	Sjw   uint16
}

// Speed mirrors can_speed_t, the transmission rate resolved from a
// bitrate, in bits per second with the sample point in percent.
type Speed struct {
	Nominal SpeedRate
	Data    SpeedRate
}

type SpeedRate struct {
	Speed       float32
	SamplePoint float32
}

// Timestamp mirrors the struct timespec the driver stamps messages
// with.
type Timestamp struct {
	Sec  int64
	Nsec int32
	_    [4]byte
}

// Message mirrors can_message_t with the 64 byte CAN FD payload area,
// classic frames use the first 8 bytes.
type Message struct {
	ID        uint32
	Flags     uint8
	DLC       uint8
	Data      [64]byte
	_         [2]byte
	Timestamp Timestamp
}
