package wh23xx

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func TestItemTableOrder(t *testing.T) {
	for i, item := range itemTable {
		assert.Equal(t, byte(i+1), item.ID, "item %s", item.Name)
	}
	_, err := lookupItem(0x00)
	assert.ErrorIs(t, err, ErrUnknownItem)
	_, err = lookupItem(0x18)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestDecodeWeatherDataSample(t *testing.T) {
	raw := mustHex(t, "01 02 8f 02 02 13 03 02 11 04 02 13 05 02 13 06 32 07 63 08 27 f0 09 27 b2 0a 00 5a "+
		"0b 00 2b 0c 00 3b 0e 00 00 00 00 10 00 00 00 75 11 00 00 00 a2 12 00 00 00 75 13 00 00 04 c5 "+
		"14 00 00 04 c5 15 00 ff ff ff 16 ff ff 17 ff")

	data, err := DecodeWeatherData(raw)
	require.NoError(t, err)

	want := map[string]float64{
		"in_temp":      25.5,
		"out_temp":     13.1,
		"dewpoint":     12.9,
		"windchill":    13.1,
		"heatindex":    13.1,
		"in_humidity":  50,
		"out_humidity": 99,
		"abs_baro":     1022.4,
		"rel_baro":     1016.2,
		"wind_dir":     90,
		"wind_speed":   4.3,
		"gust_speed":   5.9,
		"rain_rate":    0,
		"rain_day":     11.7,
		"rain_week":    16.2,
		"rain_month":   11.7,
		"rain_year":    122.1,
		"rain_totals":  122.1,
	}
	for name, v := range want {
		got, ok := data.Value(name)
		if assert.True(t, ok, name) {
			assert.InDelta(t, v, got, 1e-9, name)
		}
	}

	for _, name := range []string{"light", "uv", "uvi"} {
		obs, ok := data[name]
		assert.True(t, ok, "%s should be present", name)
		assert.False(t, obs.Valid, "%s should be absent", name)
	}
	assert.Len(t, data, len(want)+3)
}

func TestDecodeWeatherDataSingleItem(t *testing.T) {
	data, err := DecodeWeatherData([]byte{0x02, 0x02, 0x13})
	require.NoError(t, err)
	v, ok := data.Value("out_temp")
	require.True(t, ok)
	assert.InDelta(t, 13.1, v, 1e-9)

	data, err = DecodeWeatherData(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDecodeWeatherDataInvalidEveryItem(t *testing.T) {
	for _, item := range itemTable {
		t.Run(item.Name, func(t *testing.T) {
			raw := append([]byte{item.ID}, bytesOf(0xff, item.Width)...)
			data, err := DecodeWeatherData(raw)
			require.NoError(t, err)
			obs, ok := data[item.Name]
			require.True(t, ok)
			assert.False(t, obs.Valid)
			assert.Equal(t, "--", obs.String())
		})
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestDecodeWeatherDataLightQuirk(t *testing.T) {
	data, err := DecodeWeatherData([]byte{0x15, 0x00, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	_, ok := data.Value("light")
	assert.False(t, ok)

	data, err = DecodeWeatherData([]byte{0x15, 0x00, 0x00, 0x30, 0x39})
	require.NoError(t, err)
	v, ok := data.Value("light")
	require.True(t, ok)
	assert.InDelta(t, 1234.5, v, 1e-9)
}

func TestDecodeWeatherDataErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"unknown tag", []byte{0x20, 0x00}, ErrUnknownItem},
		{"zero tag", []byte{0x00}, ErrUnknownItem},
		{"unknown after valid item", []byte{0x06, 0x32, 0x18, 0x00}, ErrUnknownItem},
		{"short field", []byte{0x02, 0x02}, ErrTruncated},
		{"short rain field", []byte{0x10, 0x00, 0x00, 0x00}, ErrTruncated},
		{"short date", []byte{0x82, 0x02, 0x13, 0x10, 0x05}, ErrTruncated},
		{"short time", []byte{0x42, 0x02, 0x13, 0x0c}, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeWeatherData(tt.raw)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, data)
		})
	}
}

func TestDecodeWeatherDataUnknownItemID(t *testing.T) {
	_, err := DecodeWeatherData([]byte{0x20})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0x20), pe.ID)
	assert.Contains(t, pe.Error(), "0x20")
}

func TestDecodeWeatherDataDateTime(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		wantDate string
		wantTime string
	}{
		{
			name:     "date and time",
			raw:      []byte{0xc2, 0x02, 0x13, 0x10, 0x05, 0x04, 0x0e, 0x07},
			wantDate: "2016.05.04",
			wantTime: "14:07",
		},
		{
			name:     "date only",
			raw:      []byte{0x8b, 0x00, 0x3b, 0x15, 0x0c, 0x1f},
			wantDate: "2021.12.31",
		},
		{
			name:     "time only",
			raw:      []byte{0x4c, 0x00, 0x3b, 0x00, 0x05},
			wantTime: "00:05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeWeatherData(tt.raw)
			require.NoError(t, err)
			require.Len(t, data, 1)
			for _, obs := range data {
				assert.True(t, obs.Valid)
				assert.Equal(t, tt.wantDate, obs.Date)
				assert.Equal(t, tt.wantTime, obs.Time)
			}
		})
	}
}

func TestDecodeWeatherDataFlaggedItemFollowedByItem(t *testing.T) {
	raw := []byte{0xc2, 0x02, 0x13, 0x10, 0x05, 0x04, 0x0e, 0x07, 0x06, 0x32}
	data, err := DecodeWeatherData(raw)
	require.NoError(t, err)
	v, ok := data.Value("in_humidity")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
	assert.Equal(t, "13.1 2016.05.04 14:07", data["out_temp"].String())
}

func TestDecodeWeatherDataRepeatedTag(t *testing.T) {
	data, err := DecodeWeatherData([]byte{0x06, 0x32, 0x06, 0x28})
	require.NoError(t, err)
	v, ok := data.Value("in_humidity")
	require.True(t, ok)
	assert.Equal(t, 40.0, v)
}

func TestObservationsString(t *testing.T) {
	data := Observations{
		"b": valid(2),
		"a": valid(1.5),
		"c": {},
	}
	assert.Equal(t, []string{"a", "b", "c"}, data.Names())
	assert.Equal(t, "a=1.5, b=2, c=--", data.String())
}
