package gocanapi

import "fmt"

// Bitrate selects one of the standard bit timings by index. The indexes
// match the vendor driver preset table, 0 is the fastest.
type Bitrate int

const (
	Bitrate1M   Bitrate = 0
	Bitrate800K Bitrate = -1
	Bitrate500K Bitrate = -2
	Bitrate250K Bitrate = -3
	Bitrate125K Bitrate = -4
	Bitrate100K Bitrate = -5
	Bitrate50K  Bitrate = -6
	Bitrate20K  Bitrate = -7
	Bitrate10K  Bitrate = -8
)

var bitrateKbit = map[Bitrate]float64{
	Bitrate1M:   1000,
	Bitrate800K: 800,
	Bitrate500K: 500,
	Bitrate250K: 250,
	Bitrate125K: 125,
	Bitrate100K: 100,
	Bitrate50K:  50,
	Bitrate20K:  20,
	Bitrate10K:  10,
}

// Valid reports whether b is one of the known presets.
func (b Bitrate) Valid() bool {
	_, found := bitrateKbit[b]
	return found
}

// Kbit returns the nominal speed in kbit/s, 0 for unknown presets.
func (b Bitrate) Kbit() float64 {
	return bitrateKbit[b]
}

func (b Bitrate) String() string {
	if kbit, found := bitrateKbit[b]; found {
		return fmt.Sprintf("%g kbit/s", kbit)
	}
	return fmt.Sprintf("bitrate(%d)", int(b))
}

// BitrateFromKbit looks up the preset for a nominal speed in kbit/s.
func BitrateFromKbit(kbit float64) (Bitrate, error) {
	switch kbit {
	case 10:
		return Bitrate10K, nil
	case 20:
		return Bitrate20K, nil
	case 50:
		return Bitrate50K, nil
	case 100:
		return Bitrate100K, nil
	case 125:
		return Bitrate125K, nil
	case 250:
		return Bitrate250K, nil
	case 500:
		return Bitrate500K, nil
	case 800:
		return Bitrate800K, nil
	case 1000:
		return Bitrate1M, nil
	default:
		return 0, fmt.Errorf("unknown rate: %g", kbit)
	}
}

// Bitrates lists the presets from slowest to fastest.
func Bitrates() []Bitrate {
	return []Bitrate{
		Bitrate10K,
		Bitrate20K,
		Bitrate50K,
		Bitrate100K,
		Bitrate125K,
		Bitrate250K,
		Bitrate500K,
		Bitrate800K,
		Bitrate1M,
	}
}
