package wh23xx

import (
	"fmt"
)

// Current-weather item identifiers. The two high bits of a tag byte are
// flags and are masked off before lookup.
const (
	ItemInTemp      byte = 0x01 // C
	ItemOutTemp     byte = 0x02 // C
	ItemDewpoint    byte = 0x03 // C
	ItemWindchill   byte = 0x04 // C
	ItemHeatindex   byte = 0x05 // C
	ItemInHumidity  byte = 0x06 // %
	ItemOutHumidity byte = 0x07 // %
	ItemAbsBaro     byte = 0x08 // mbar
	ItemRelBaro     byte = 0x09 // mbar
	ItemWindDir     byte = 0x0a // degree
	ItemWindSpeed   byte = 0x0b // m/s
	ItemGustSpeed   byte = 0x0c // m/s
	ItemRainEvent   byte = 0x0d // mm
	ItemRainRate    byte = 0x0e // mm/h
	ItemRainHour    byte = 0x0f // mm
	ItemRainDay     byte = 0x10 // mm
	ItemRainWeek    byte = 0x11 // mm
	ItemRainMonth   byte = 0x12 // mm
	ItemRainYear    byte = 0x13 // mm
	ItemRainTotals  byte = 0x14 // mm
	ItemLight       byte = 0x15 // lux
	ItemUV          byte = 0x16 // uW/m^2
	ItemUVI         byte = 0x17 // 0-15 index

	itemTimeFlag byte = 0x40
	itemDateFlag byte = 0x80
)

// lightQuirkRaw is what the firmware sends for "no light reading". The
// vendor docs say 0xfff; consoles actually send 0x00ffffff in a 4-byte field,
// which the all-ones check does not catch.
const lightQuirkRaw = 0x00ffffff

type convertFunc func(x uint32) float64

func temperature(x uint32) float64 { return (float64(x) - 400) / 10.0 }
func tenths(x uint32) float64      { return float64(x) / 10.0 }
func thousandths(x uint32) float64 { return float64(x) / 1000.0 }
func identity(x uint32) float64    { return float64(x) }

type itemSpec struct {
	ID      byte
	Name    string
	Width   int
	Convert convertFunc
}

var itemTable = [...]itemSpec{
	{ItemInTemp, "in_temp", 2, temperature},
	{ItemOutTemp, "out_temp", 2, temperature},
	{ItemDewpoint, "dewpoint", 2, temperature},
	{ItemWindchill, "windchill", 2, temperature},
	{ItemHeatindex, "heatindex", 2, temperature},
	{ItemInHumidity, "in_humidity", 1, identity},
	{ItemOutHumidity, "out_humidity", 1, identity},
	{ItemAbsBaro, "abs_baro", 2, tenths},
	{ItemRelBaro, "rel_baro", 2, tenths},
	{ItemWindDir, "wind_dir", 2, identity},
	{ItemWindSpeed, "wind_speed", 2, tenths},
	{ItemGustSpeed, "gust_speed", 2, tenths},
	{ItemRainEvent, "rain_event", 4, tenths},
	{ItemRainRate, "rain_rate", 4, tenths},
	{ItemRainHour, "rain_hour", 4, tenths},
	{ItemRainDay, "rain_day", 4, tenths},
	{ItemRainWeek, "rain_week", 4, tenths},
	{ItemRainMonth, "rain_month", 4, tenths},
	{ItemRainYear, "rain_year", 4, tenths},
	{ItemRainTotals, "rain_totals", 4, tenths},
	{ItemLight, "light", 4, tenths},
	{ItemUV, "uv", 2, thousandths},
	{ItemUVI, "uvi", 1, identity},
}

// lookupItem maps a base item id to its table entry. The table is ordered by
// id starting at ItemInTemp.
func lookupItem(id byte) (itemSpec, error) {
	if id < ItemInTemp || int(id) > len(itemTable) {
		return itemSpec{}, &ProtocolError{Op: "decode weather data", Kind: ErrUnknownItem, ID: id}
	}
	return itemTable[id-ItemInTemp], nil
}

// decodeBytes combines width bytes MSB first. ok is false when every byte is
// 0xff, the console's marker for an invalid value.
func decodeBytes(b []byte) (x uint32, ok bool) {
	for _, c := range b {
		if c != 0xff {
			ok = true
		}
		x = x<<8 | uint32(c)
	}
	return x, ok
}

// DecodeWeatherData decodes a READ_RECORD reply: a run of tagged items, each
// an id byte (optionally flagged with date and/or time) followed by one to
// four big-endian data bytes, then 3 date bytes and 2 time bytes if flagged.
// An unknown id or a short item aborts the whole decode since the cursor
// cannot be advanced safely.
func DecodeWeatherData(raw []byte) (Observations, error) {
	data := make(Observations)
	i := 0
	for i < len(raw) {
		tag := raw[i]
		i++

		hasDate := tag&itemDateFlag != 0
		hasTime := tag&itemTimeFlag != 0
		id := tag &^ (itemDateFlag | itemTimeFlag)

		item, err := lookupItem(id)
		if err != nil {
			pe := err.(*ProtocolError)
			pe.Detail = fmt.Sprintf("tag 0x%02x at index %d", tag, i-1)
			return nil, pe
		}

		if i+item.Width > len(raw) {
			return nil, protoErr("decode weather data", ErrTruncated,
				"not enough bytes for %s: idx=%d numbytes=%d len=%d", item.Name, i, item.Width, len(raw))
		}

		var obs Observation
		x, ok := decodeBytes(raw[i : i+item.Width])
		if ok {
			obs = valid(item.Convert(x))
		}
		i += item.Width

		if hasDate {
			if i+3 > len(raw) {
				return nil, protoErr("decode weather data", ErrTruncated, "not enough bytes for %s date", item.Name)
			}
			obs.Date = fmt.Sprintf("%04d.%02d.%02d", 2000+int(raw[i]), raw[i+1], raw[i+2])
			i += 3
		}

		if hasTime {
			if i+2 > len(raw) {
				return nil, protoErr("decode weather data", ErrTruncated, "not enough bytes for %s time", item.Name)
			}
			obs.Time = fmt.Sprintf("%02d:%02d", raw[i], raw[i+1])
			i += 2
		}

		if id == ItemLight && ok && x == lightQuirkRaw {
			obs.Value = 0
			obs.Valid = false
		}

		data[item.Name] = obs
	}
	return data, nil
}
