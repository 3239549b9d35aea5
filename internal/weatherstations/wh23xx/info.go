package wh23xx

import (
	"fmt"
	"strconv"
)

const (
	// StationInfoAddr and StationInfoSize locate the system block in EEPROM
	StationInfoAddr = 0x0000
	StationInfoSize = 56

	// legacyStationInfoSize covers the fields the WH2300 exposes (through 0x22)
	legacyStationInfoSize = 0x23
)

// FlagByte is a byte of eight independent setting flags
type FlagByte uint8

// Bit reports whether bit i (0 = LSB) is set
func (f FlagByte) Bit(i int) bool {
	return f&(1<<uint(i)) != 0
}

// StationInfo is the console configuration block at EEPROM 0x0000
type StationInfo struct {
	Legacy bool

	EEPROM  string // 0x55aa
	Model   string // 0x0023
	Version string
	ID      string

	FactoryUnitFlag1 FlagByte
	FactoryUnitFlag2 FlagByte
	Option1          FlagByte
	Option2          FlagByte
	Mode             string // ASK or UART
	LuxToRadFactor   float64

	UnitSettingFlag1    FlagByte
	UnitSettingFlag2    FlagByte
	DisplaySettingFlag1 FlagByte
	DisplaySettingFlag2 FlagByte
	DisplaySettingFlag3 FlagByte
	AlarmEnableFlag1    FlagByte
	AlarmEnableFlag2    FlagByte
	AlarmEnableFlag3    FlagByte

	RainSeason     int // month 1..12
	Interval       int // seconds 8..14400
	LCDContrast    int
	LCDContrastRaw byte
	Timezone       int // -12..12
	Latitude       int
	Longitude      int
	Weather        int
	Storm          int

	OffsetTemperatureIn  float64
	OffsetHumidityIn     int
	OffsetTemperatureOut float64
	OffsetHumidityOut    int
	OffsetPressureAbs    float64
	OffsetPressureRel    float64
	OffsetWindDir        int

	CoefficientWind  float64 // 0.1..2.5
	CoefficientRain  float64 // 0.1..2.5
	CoefficientLight float64 // 0.1..10.0
	CoefficientUV    float64 // 0.1..10.0
}

func le16(b []byte, i int) int {
	return int(b[i+1])<<8 | int(b[i])
}

// signedNibble decodes the timezone byte: the low nibble is a 4-bit two's
// complement value when the high nibble is 0xf.
func signedNibble(x byte) int {
	v := int(x & 0x0f)
	if x&0xf0 == 0xf0 {
		v -= 16
	}
	return v
}

// DecodeStationInfo decodes the system block. 56 bytes give the full layout;
// 35..55 bytes give the subset known to WH2300 firmware.
func DecodeStationInfo(raw []byte) (*StationInfo, error) {
	if len(raw) < legacyStationInfoSize {
		return nil, protoErr("decode station info", ErrTruncated, "%d bytes, need %d", len(raw), StationInfoSize)
	}

	info := &StationInfo{
		Legacy:  len(raw) < StationInfoSize,
		EEPROM:  fmt.Sprintf("0x%02x%02x", raw[0], raw[1]),
		Model:   fmt.Sprintf("0x%02x%02x", raw[2], raw[3]),
		Version: fmt.Sprintf("0x%02x", raw[4]),
		ID:      fmt.Sprintf("0x%02x%02x%02x%02x", raw[5], raw[6], raw[7], raw[8]),

		FactoryUnitFlag1: FlagByte(raw[0x09]),
		FactoryUnitFlag2: FlagByte(raw[0x0a]),
		Option1:          FlagByte(raw[0x0b]),
		Option2:          FlagByte(raw[0x0c]),
		Mode:             "UART",
		LuxToRadFactor:   float64(le16(raw, 0x0d)) / 10.0,

		UnitSettingFlag1:    FlagByte(raw[0x10]),
		UnitSettingFlag2:    FlagByte(raw[0x11]),
		DisplaySettingFlag1: FlagByte(raw[0x12]),
		DisplaySettingFlag2: FlagByte(raw[0x13]),
		DisplaySettingFlag3: FlagByte(raw[0x14]),
		AlarmEnableFlag1:    FlagByte(raw[0x15]),
		AlarmEnableFlag2:    FlagByte(raw[0x16]),
		AlarmEnableFlag3:    FlagByte(raw[0x17]),

		RainSeason:     int(raw[0x18]),
		Interval:       le16(raw, 0x19),
		LCDContrast:    int(raw[0x1b]) - 0x16,
		LCDContrastRaw: raw[0x1b],
		Timezone:       signedNibble(raw[0x1c]),
		Latitude:       le16(raw, 0x1d),
		Longitude:      le16(raw, 0x1f),
		Weather:        int(raw[0x21]),
		Storm:          int(raw[0x22]),
	}
	if raw[0x0c]&0xf0 == 0xf0 {
		info.Mode = "ASK"
	}

	if info.Legacy {
		return info, nil
	}

	info.OffsetTemperatureIn = float64(le16(raw, 0x23)) / 10.0
	info.OffsetHumidityIn = int(raw[0x25])
	info.OffsetTemperatureOut = float64(le16(raw, 0x26)) / 10.0
	info.OffsetHumidityOut = int(raw[0x28])
	info.OffsetPressureAbs = float64(le16(raw, 0x29)) / 10.0
	info.OffsetPressureRel = float64(le16(raw, 0x2b)) / 10.0
	info.OffsetWindDir = le16(raw, 0x2d)
	info.CoefficientWind = float64(raw[0x2f]) / 100.0
	info.CoefficientRain = float64(raw[0x30]) / 100.0
	info.CoefficientLight = float64(le16(raw, 0x31)) / 100.0
	info.CoefficientUV = float64(le16(raw, 0x33)) / 100.0

	return info, nil
}

// CoreFields names the fields shown by a short info listing
var CoreFields = []string{"eeprom", "id", "interval", "latitude", "longitude", "mode", "model", "timezone", "version"}

// Fields renders every field as text under its canonical key
func (s *StationInfo) Fields() map[string]string {
	f := map[string]string{
		"eeprom":            s.EEPROM,
		"model":             s.Model,
		"version":           s.Version,
		"id":                s.ID,
		"mode":              s.Mode,
		"lux_to_rad_factor": ftoa(s.LuxToRadFactor),
		"rain_season":       strconv.Itoa(s.RainSeason),
		"interval":          strconv.Itoa(s.Interval),
		"lcd_contrast":      fmt.Sprintf("%d (0x%02x)", s.LCDContrast, s.LCDContrastRaw),
		"timezone":          strconv.Itoa(s.Timezone),
		"latitude":          strconv.Itoa(s.Latitude),
		"longitude":         strconv.Itoa(s.Longitude),
		"weather":           strconv.Itoa(s.Weather),
		"storm":             strconv.Itoa(s.Storm),
	}

	flags := []struct {
		prefix string
		b      FlagByte
	}{
		{"factory_unit_flag_1", s.FactoryUnitFlag1},
		{"factory_unit_flag_2", s.FactoryUnitFlag2},
		{"option_1", s.Option1},
		{"option_2", s.Option2},
		{"unit_setting_flag_1", s.UnitSettingFlag1},
		{"unit_setting_flag_2", s.UnitSettingFlag2},
		{"display_setting_flag_1", s.DisplaySettingFlag1},
		{"display_setting_flag_2", s.DisplaySettingFlag2},
		{"display_setting_flag_3", s.DisplaySettingFlag3},
		{"alarm_enable_flag_1", s.AlarmEnableFlag1},
		{"alarm_enable_flag_2", s.AlarmEnableFlag2},
		{"alarm_enable_flag_3", s.AlarmEnableFlag3},
	}
	for _, fl := range flags {
		for i := 0; i < 8; i++ {
			v := "0"
			if fl.b.Bit(i) {
				v = "1"
			}
			f[fmt.Sprintf("%s_bit%d", fl.prefix, i)] = v
		}
	}

	if s.Legacy {
		return f
	}

	f["offset_temperature_in"] = ftoa(s.OffsetTemperatureIn)
	f["offset_humidity_in"] = strconv.Itoa(s.OffsetHumidityIn)
	f["offset_temperature_out"] = ftoa(s.OffsetTemperatureOut)
	f["offset_humidity_out"] = strconv.Itoa(s.OffsetHumidityOut)
	f["offset_pressure_abs"] = ftoa(s.OffsetPressureAbs)
	f["offset_pressure_rel"] = ftoa(s.OffsetPressureRel)
	f["offset_wind_dir"] = strconv.Itoa(s.OffsetWindDir)
	f["coefficient_wind"] = ftoa(s.CoefficientWind)
	f["coefficient_rain"] = ftoa(s.CoefficientRain)
	f["coefficient_light"] = ftoa(s.CoefficientLight)
	f["coefficient_uv"] = ftoa(s.CoefficientUV)

	return f
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
