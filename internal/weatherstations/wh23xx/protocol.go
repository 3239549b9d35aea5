// Package wh23xx talks to Fine Offset WH23xx consoles (WH2300, WH2301,
// WH4000, Tycon TP2700) over their USB HID interface.
//
// Protocol and EEPROM layout follow "TP2700 PC Protocol" and "TP2700 EEPROM
// data structure" V1.0 (FOS-ENG-022-A), by way of Matthew Wall's weewx
// wh23xx driver.
package wh23xx

import (
	"fmt"
)

// Command is a console operation code
type Command byte

const (
	CmdTimeSync       Command = 0x01
	CmdReadEEPROM     Command = 0x02
	CmdWriteEEPROM    Command = 0x03
	CmdReadRecord     Command = 0x04
	CmdReadMax        Command = 0x05
	CmdReadMin        Command = 0x06
	CmdReadMaxDay     Command = 0x07
	CmdReadMinDay     Command = 0x08
	CmdClearMaxMinDay Command = 0x09
	CmdParamChanged   Command = 0x0a
	CmdClearHistory   Command = 0x0b
	CmdReadParam      Command = 0x0c
	CmdResult         Command = 0xf0
)

var commandNames = map[Command]string{
	CmdTimeSync:       "TIME_SYNC",
	CmdReadEEPROM:     "READ_EEPROM",
	CmdWriteEEPROM:    "WRITE_EEPROM",
	CmdReadRecord:     "READ_RECORD",
	CmdReadMax:        "READ_MAX",
	CmdReadMin:        "READ_MIN",
	CmdReadMaxDay:     "READ_MAX_DAY",
	CmdReadMinDay:     "READ_MIN_DAY",
	CmdClearMaxMinDay: "CLEAR_MAX_MIN_DAY",
	CmdParamChanged:   "PARAM_CHANGED",
	CmdClearHistory:   "CLEAR_HISTORY",
	CmdReadParam:      "READ_PARAM",
	CmdResult:         "CMD_RESULT",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD(0x%02x)", byte(c))
}

const (
	// FrameMarker leads every host-to-console frame
	FrameMarker byte = 0x02
	// ReplyMarker leads every USB packet sent by the console
	ReplyMarker byte = 0x01

	// PacketSize is the USB interrupt packet size
	PacketSize = 64

	// replyHeaderSize covers marker, packet size, command echo and declared length
	replyHeaderSize = 4
	// packetEnvelopeSize is stripped from every continuation packet
	packetEnvelopeSize = 2
)

// Checksum returns the low byte of the sum of b
func Checksum(b []byte) byte {
	var s byte
	for _, x := range b {
		s += x
	}
	return s
}

// BuildFrame encodes cmd and payload for the wire:
//
//	[0x02, len(payload)+2, cmd, payload..., checksum]
//
// The checksum covers the command and payload only.
func BuildFrame(cmd Command, payload ...byte) []byte {
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, FrameMarker, byte(len(payload)+2), byte(cmd))
	buf = append(buf, payload...)
	return append(buf, Checksum(buf[2:]))
}

// ParseFrame is the inverse of BuildFrame. It checks the marker, the length
// byte and the checksum.
func ParseFrame(b []byte) (Command, []byte, error) {
	if len(b) < 4 {
		return 0, nil, protoErr("parse frame", ErrTruncated, "%d bytes", len(b))
	}
	if b[0] != FrameMarker {
		return 0, nil, protoErr("parse frame", ErrBadHeader, "marker 0x%02x != 0x%02x", b[0], FrameMarker)
	}
	n := int(b[1])
	if n < 2 || len(b) < n+2 {
		return 0, nil, protoErr("parse frame", ErrTruncated, "length byte %d, have %d bytes", n, len(b))
	}
	body := b[2 : n+1]
	chk := b[n+1]
	if c := Checksum(body); c != chk {
		return 0, nil, protoErr("parse frame", ErrBadChecksum, "0x%02x != 0x%02x", chk, c)
	}
	return Command(body[0]), body[1:], nil
}

// ReplyHeader is the leading part of the first packet of a reply
type ReplyHeader struct {
	PacketSize byte
	Command    Command
	Length     int
}

// ParseReplyHeader validates the reply marker and returns the echoed command
// and the declared payload length. It does not check the reply checksum.
func ParseReplyHeader(b []byte) (ReplyHeader, error) {
	if len(b) < replyHeaderSize {
		return ReplyHeader{}, protoErr("reply header", ErrTruncated, "%d bytes", len(b))
	}
	if b[0] != ReplyMarker {
		return ReplyHeader{}, protoErr("reply header", ErrBadHeader, "marker 0x%02x != 0x%02x", b[0], ReplyMarker)
	}
	return ReplyHeader{
		PacketSize: b[1],
		Command:    Command(b[2]),
		Length:     int(b[3]),
	}, nil
}

// Body returns the bytes following the reply header
func (h ReplyHeader) Body(packet []byte) []byte {
	if len(packet) <= replyHeaderSize {
		return nil
	}
	return packet[replyHeaderSize:]
}

// VerifyReplyChecksum reports whether chk matches the checksum of the
// reply [cmd, len(data), data...].
func VerifyReplyChecksum(cmd Command, data []byte, chk byte) bool {
	return replyChecksum(cmd, data) == chk
}

func replyChecksum(cmd Command, data []byte) byte {
	return byte(cmd) + byte(len(data)) + Checksum(data)
}

// ResultCode is the status word carried by a CMD_RESULT reply
type ResultCode uint16

const (
	ResultSuccess         ResultCode = 0x0000
	ResultInvalidUserPass ResultCode = 0x0001
	ResultInvalidID       ResultCode = 0x0002
	ResultInvalidCRC      ResultCode = 0x0004
	ResultBusy            ResultCode = 0x0008
	ResultTooSize         ResultCode = 0x0010
	ResultError           ResultCode = 0x0020
	ResultUnknownCmd      ResultCode = 0x0040
	ResultInvalidParam    ResultCode = 0x0080
)

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalidUserPass:
		return "invalid user/pass"
	case ResultInvalidID:
		return "invalid id"
	case ResultInvalidCRC:
		return "invalid crc"
	case ResultBusy:
		return "busy"
	case ResultTooSize:
		return "too large"
	case ResultError:
		return "error"
	case ResultUnknownCmd:
		return "unknown command"
	case ResultInvalidParam:
		return "invalid parameter"
	}
	return fmt.Sprintf("result(0x%04x)", uint16(r))
}

// CommandResult is a decoded CMD_RESULT body
type CommandResult struct {
	Command Command
	Code    ResultCode
}

// DecodeCommandResult decodes the body of a CMD_RESULT reply:
// [command, result lo, result hi].
func DecodeCommandResult(body []byte) (CommandResult, error) {
	if len(body) < 3 {
		return CommandResult{}, protoErr("command result", ErrTruncated, "%d bytes", len(body))
	}
	return CommandResult{
		Command: Command(body[0]),
		Code:    ResultCode(uint16(body[1]) | uint16(body[2])<<8),
	}, nil
}

// ParamItem flags tell the console which settings a PARAM_CHANGED covers
type ParamItem uint16

const (
	ParamItemAlarm    ParamItem = 0x0001
	ParamItemTimezone ParamItem = 0x0002
	ParamItemParam    ParamItem = 0x0004
	ParamItemMaxMin   ParamItem = 0x0008
	ParamItemHistory  ParamItem = 0x0010
)
