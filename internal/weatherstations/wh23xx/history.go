package wh23xx

import (
	"fmt"
)

// HistoryRecordSize is the size of one stored history record
const HistoryRecordSize = 18

// UVScaling selects how the UV word of a history record is scaled. The
// WH2300 (legacy) firmware stores uW/m^2 directly; later WH23xx firmware is
// read as W/m^2, i.e. divided by 1000.
type UVScaling int

const (
	UVScalingRevised UVScaling = iota
	UVScalingLegacy
)

func (u UVScaling) String() string {
	switch u {
	case UVScalingRevised:
		return "revised"
	case UVScalingLegacy:
		return "legacy"
	}
	return fmt.Sprintf("UVScaling(%d)", int(u))
}

// ParseUVScaling maps a config value to a UVScaling
func ParseUVScaling(s string) (UVScaling, error) {
	switch s {
	case "", "revised":
		return UVScalingRevised, nil
	case "legacy":
		return UVScalingLegacy, nil
	}
	return 0, fmt.Errorf("unknown uv scaling %q", s)
}

func (u UVScaling) divisor() float64 {
	if u == UVScalingLegacy {
		return 1.0
	}
	return 1000.0
}

// DecodeHistoryRecord decodes an 18-byte record using the revised UV scaling
func DecodeHistoryRecord(raw []byte) Observations {
	return DecodeHistoryRecordWith(UVScalingRevised, raw)
}

// DecodeHistoryRecordWith decodes an 18-byte history record. Anything that is
// not exactly 18 bytes (including an empty "no record" read) yields an empty
// map.
//
// Byte 0 carries the ninth bit of wind direction, wind speed and gust speed
// (bits 0-2), the seventeenth bit of the rain total (bit 3), the rain
// overflow flag (bit 4) and the no-sensors flag (bit 7). Sentinels are
// compared against the extended values.
func DecodeHistoryRecordWith(uv UVScaling, raw []byte) Observations {
	data := make(Observations)
	if len(raw) != HistoryRecordSize {
		return data
	}

	b0 := uint32(raw[0])
	bit := func(n uint) uint32 { return (b0 >> n) & 0x01 }

	x := bit(0)<<8 | uint32(raw[1])
	data["wind_dir"] = sentinel(x, 0x1ff, identity)
	x = bit(1)<<8 | uint32(raw[2])
	data["wind_speed"] = sentinel(x, 0x1ff, tenths)
	x = bit(2)<<8 | uint32(raw[3])
	data["gust_speed"] = sentinel(x, 0x1ff, tenths)

	x = bit(3)<<16 | uint32(raw[5])<<8 | uint32(raw[4])
	data["rain_total"] = valid(float64(x) * 0.1)
	data["rain_overflow"] = valid(float64(bit(4)))
	data["no_sensors"] = valid(float64(bit(7)))

	data["humidity_in"] = sentinel(uint32(raw[6]), 0xff, identity)
	data["humidity_out"] = sentinel(uint32(raw[7]), 0xff, identity)

	x = uint32(raw[9]&0x0f)<<8 | uint32(raw[8])
	data["temperature_in"] = sentinel(x, 0xfff, temperature)
	x = uint32(raw[9]&0xf0)<<4 | uint32(raw[10])
	data["temperature_out"] = sentinel(x, 0xfff, temperature)

	x = uint32(raw[11])<<8 | uint32(raw[12])
	data["pressure"] = sentinel(x, 0xffff, tenths)

	x = uint32(raw[15])<<16 | uint32(raw[14])<<8 | uint32(raw[13])
	data["light"] = sentinel(x, 0xffffff, tenths)

	div := uv.divisor()
	x = uint32(raw[17])<<8 | uint32(raw[16])
	data["uv"] = sentinel(x, 0xffff, func(x uint32) float64 { return float64(x) / div })

	return data
}

func sentinel(x, invalid uint32, f convertFunc) Observation {
	if x == invalid {
		return Observation{}
	}
	return valid(f(x))
}
