package wh23xx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x0c), Checksum([]byte{0x02, 0x02, 0x04, 0x04}))
	assert.Equal(t, byte(0x00), Checksum(nil))
	// only the low byte survives
	assert.Equal(t, byte(0xfe), Checksum([]byte{0xff, 0xff}))
}

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		want    []byte
	}{
		{
			name: "read record",
			cmd:  CmdReadRecord,
			want: []byte{0x02, 0x02, 0x04, 0x04},
		},
		{
			name: "clear max/min",
			cmd:  CmdClearMaxMinDay,
			want: []byte{0x02, 0x02, 0x09, 0x09},
		},
		{
			name: "clear history",
			cmd:  CmdClearHistory,
			want: []byte{0x02, 0x02, 0x0b, 0x0b},
		},
		{
			name:    "read eeprom",
			cmd:     CmdReadEEPROM,
			payload: []byte{0xc8, 0x02, 0x08},
			want:    []byte{0x02, 0x05, 0x02, 0xc8, 0x02, 0x08, 0xd4},
		},
		{
			name:    "time sync",
			cmd:     CmdTimeSync,
			payload: []byte{16, 5, 4, 3, 2, 1, 0},
			want:    []byte{0x02, 0x09, 0x01, 16, 5, 4, 3, 2, 1, 0, 0x20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFrame(tt.cmd, tt.payload...))
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for cmd := range commandNames {
		for _, payload := range [][]byte{nil, {0x00}, {0xff, 0xfe, 0x10}, make([]byte, 12)} {
			frame := BuildFrame(cmd, payload...)
			gotCmd, gotPayload, err := ParseFrame(frame)
			require.NoError(t, err, "command %s", cmd)
			assert.Equal(t, cmd, gotCmd)
			assert.Equal(t, len(payload), len(gotPayload))
			if len(payload) > 0 {
				assert.Equal(t, payload, gotPayload)
			}
		}
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"short", []byte{0x02, 0x02}, ErrTruncated},
		{"bad marker", []byte{0x01, 0x02, 0x04, 0x04}, ErrBadHeader},
		{"length beyond buffer", []byte{0x02, 0x09, 0x01, 0x01}, ErrTruncated},
		{"bad checksum", []byte{0x02, 0x02, 0x04, 0x05}, ErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFrame(tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseReplyHeader(t *testing.T) {
	pkt := []byte{0x01, 0x3e, 0x04, 0x4f, 0xaa, 0xbb}
	hdr, err := ParseReplyHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3e), hdr.PacketSize)
	assert.Equal(t, CmdReadRecord, hdr.Command)
	assert.Equal(t, 0x4f, hdr.Length)
	assert.Equal(t, []byte{0xaa, 0xbb}, hdr.Body(pkt))

	_, err = ParseReplyHeader([]byte{0x02, 0x3e, 0x04, 0x4f})
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = ParseReplyHeader([]byte{0x01, 0x3e})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestVerifyReplyChecksum(t *testing.T) {
	data := []byte{0x02, 0x02, 0x13}
	// 0x04 + 0x03 + 0x02 + 0x02 + 0x13
	assert.True(t, VerifyReplyChecksum(CmdReadRecord, data, 0x1e))
	assert.False(t, VerifyReplyChecksum(CmdReadRecord, data, 0x1f))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "READ_RECORD", CmdReadRecord.String())
	assert.Equal(t, "CMD_RESULT", CmdResult.String())
	assert.Equal(t, "CMD(0x42)", Command(0x42).String())
}

func TestDecodeCommandResult(t *testing.T) {
	res, err := DecodeCommandResult([]byte{0x03, 0x40, 0x00})
	require.NoError(t, err)
	assert.Equal(t, CmdWriteEEPROM, res.Command)
	assert.Equal(t, ResultUnknownCmd, res.Code)
	assert.Equal(t, "unknown command", res.Code.String())

	_, err = DecodeCommandResult([]byte{0x03})
	assert.ErrorIs(t, err, ErrTruncated)
}
