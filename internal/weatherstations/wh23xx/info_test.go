package wh23xx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStationInfo = "55 aa 00 23 10 bc 7a 28 28 52 a2 01 02 f3 04 ff 53 a2 01 4a b2 00 00 00 01 2c 01 1b fb " +
	"00 00 00 00 03 04 00 00 00 00 00 00 00 00 c3 ff 00 00 64 64 64 00 64 00 ff ff ff 6b"

func TestDecodeStationInfo(t *testing.T) {
	raw := mustHex(t, sampleStationInfo)
	info, err := DecodeStationInfo(raw[:StationInfoSize])
	require.NoError(t, err)

	assert.False(t, info.Legacy)
	assert.Equal(t, "0x55aa", info.EEPROM)
	assert.Equal(t, "0x0023", info.Model)
	assert.Equal(t, "0x10", info.Version)
	assert.Equal(t, "0xbc7a2828", info.ID)
	assert.Equal(t, "UART", info.Mode)
	assert.InDelta(t, 126.7, info.LuxToRadFactor, 1e-9)
	assert.Equal(t, 1, info.RainSeason)
	assert.Equal(t, 300, info.Interval)
	assert.Equal(t, 5, info.LCDContrast)
	assert.Equal(t, byte(0x1b), info.LCDContrastRaw)
	assert.Equal(t, -5, info.Timezone)
	assert.Equal(t, 0, info.Latitude)
	assert.Equal(t, 0, info.Longitude)
	assert.Equal(t, 3, info.Weather)
	assert.Equal(t, 4, info.Storm)

	assert.Equal(t, FlagByte(0x52), info.FactoryUnitFlag1)
	assert.True(t, info.FactoryUnitFlag1.Bit(1))
	assert.False(t, info.FactoryUnitFlag1.Bit(0))

	assert.InDelta(t, 0.0, info.OffsetTemperatureIn, 1e-9)
	assert.InDelta(t, 6547.5, info.OffsetPressureRel, 1e-9)
	assert.InDelta(t, 1.0, info.CoefficientWind, 1e-9)
	assert.InDelta(t, 1.0, info.CoefficientRain, 1e-9)
	assert.InDelta(t, 1.0, info.CoefficientLight, 1e-9)
	assert.InDelta(t, 1.0, info.CoefficientUV, 1e-9)
}

func TestDecodeStationInfoIgnoresTrailingBytes(t *testing.T) {
	raw := mustHex(t, sampleStationInfo)
	require.Len(t, raw, StationInfoSize+1)

	info, err := DecodeStationInfo(raw)
	require.NoError(t, err)
	assert.False(t, info.Legacy)
	assert.Equal(t, "0xbc7a2828", info.ID)
}

func TestDecodeStationInfoMode(t *testing.T) {
	raw := mustHex(t, sampleStationInfo)
	raw[0x0c] = 0xf2
	info, err := DecodeStationInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, "ASK", info.Mode)
}

func TestSignedNibble(t *testing.T) {
	tests := []struct {
		in   byte
		want int
	}{
		{0x00, 0},
		{0x01, 1},
		{0x08, 8},
		{0x0c, 12},
		{0xfe, -2},
		{0xfb, -5},
		{0xf4, -12},
		{0xff, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, signedNibble(tt.in), "0x%02x", tt.in)
	}
}

func TestDecodeStationInfoLegacy(t *testing.T) {
	raw := mustHex(t, sampleStationInfo)[:legacyStationInfoSize]
	info, err := DecodeStationInfo(raw)
	require.NoError(t, err)
	assert.True(t, info.Legacy)
	assert.Equal(t, 300, info.Interval)
	assert.Equal(t, 4, info.Storm)
	assert.Zero(t, info.OffsetPressureRel)

	f := info.Fields()
	assert.Equal(t, "300", f["interval"])
	assert.NotContains(t, f, "offset_pressure_rel")
	assert.NotContains(t, f, "coefficient_uv")
}

func TestDecodeStationInfoShort(t *testing.T) {
	raw := mustHex(t, sampleStationInfo)[:legacyStationInfoSize-1]
	_, err := DecodeStationInfo(raw)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeStationInfo(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestStationInfoFields(t *testing.T) {
	info, err := DecodeStationInfo(mustHex(t, sampleStationInfo))
	require.NoError(t, err)

	f := info.Fields()
	for _, k := range CoreFields {
		assert.Contains(t, f, k)
	}
	assert.Equal(t, "0x55aa", f["eeprom"])
	assert.Equal(t, "-5", f["timezone"])
	assert.Equal(t, "5 (0x1b)", f["lcd_contrast"])
	assert.Equal(t, "126.7", f["lux_to_rad_factor"])
	assert.Equal(t, "6547.5", f["offset_pressure_rel"])
	assert.Equal(t, "1", f["coefficient_wind"])
	assert.Equal(t, "0", f["factory_unit_flag_1_bit0"])
	assert.Equal(t, "1", f["factory_unit_flag_1_bit1"])
	assert.Equal(t, "1", f["option_1_bit0"])
}
