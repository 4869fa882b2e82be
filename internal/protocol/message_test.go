package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessageWireForm(t *testing.T) {
	wire, err := EncodeMessage(CmdScanStop, nil)
	require.NoError(t, err)

	// header 02 00 00 00 -> COBS 02 02 01 01 01
	assert.Equal(t, []byte{0x00, 0x02, 0x02, 0x01, 0x01, 0x01, 0x00}, wire)
}

func TestEncodeMessageHasNoInnerDelimiters(t *testing.T) {
	payload := bytes.Repeat([]byte{0x00, 0x01}, 600)
	wire, err := EncodeMessage(EvtFrame, payload)
	require.NoError(t, err)

	assert.Equal(t, byte(0x00), wire[0])
	assert.Equal(t, byte(0x00), wire[len(wire)-1])
	assert.NotContains(t, wire[1:len(wire)-1], byte(0x00))
}

func TestEncodeMessagePayloadTooLarge(t *testing.T) {
	_, err := EncodeMessage(EvtFrame, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestScanStartRoundTripThroughFramer(t *testing.T) {
	payload, err := ScanStartPayload(6, FilterAll)
	require.NoError(t, err)

	wire, err := EncodeMessage(CmdScanStart, payload)
	require.NoError(t, err)

	msgs := NewFramer(0).Feed(wire)
	require.Len(t, msgs, 1)
	assert.Equal(t, CmdScanStart, msgs[0].Type)
	assert.Equal(t, uint8(0), msgs[0].Flags)
	assert.Equal(t, []byte{6, 0}, msgs[0].Payload)
}

func TestMarshalBinaryKeepsFlags(t *testing.T) {
	wire, err := Message{Type: RspError, Flags: FlagError, Payload: []byte{0x01, 0x02}}.MarshalBinary()
	require.NoError(t, err)

	msgs := NewFramer(0).Feed(wire)
	require.Len(t, msgs, 1)
	assert.Equal(t, FlagError, msgs[0].Flags)
	assert.Equal(t, []byte{0x01, 0x02}, msgs[0].Payload)
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte{0x81, 0x00, 0x01, 0x00, 0x05, 0xEE})
	require.NoError(t, err)
	assert.Equal(t, RspAck, msg.Type)
	assert.Equal(t, []byte{0x05}, msg.Payload, "trailing bytes beyond declared length are ignored")

	_, err = DecodeMessage([]byte{0x81, 0x00, 0x02})
	assert.ErrorIs(t, err, ErrMalformedFraming)

	_, err = DecodeMessage([]byte{0x81, 0x00, 0x02, 0x00, 0x05})
	assert.ErrorIs(t, err, ErrMalformedFraming)
}

func TestScanStartPayloadValidation(t *testing.T) {
	_, err := ScanStartPayload(14, FilterAll)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = ScanStartPayload(36, 0x08)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	p, err := ScanStartPayload(ChannelAll, FilterMgmt|FilterData)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0x05}, p)
}

func TestParseErrorPayload(t *testing.T) {
	cmd, code, err := ParseErrorPayload([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, CmdScanStart, cmd)
	assert.Equal(t, ErrCodeInvalidChannel, code)

	_, _, err = ParseErrorPayload([]byte{0x01})
	assert.ErrorIs(t, err, ErrMalformedFraming)
}

func TestParsePromiscStatus(t *testing.T) {
	assert.False(t, ParsePromiscStatus(nil))
	assert.False(t, ParsePromiscStatus([]byte{0}))
	assert.True(t, ParsePromiscStatus([]byte{1}))
	assert.True(t, ParsePromiscStatus([]byte{0x80}))
}

func TestMessageTypeClasses(t *testing.T) {
	assert.True(t, CmdPromiscQuery.IsCommand())
	assert.False(t, RspAck.IsCommand())
	assert.True(t, RspPromiscStatus.IsResponse())
	assert.True(t, EvtFrame.IsEvent())
	assert.False(t, EvtFrame.IsResponse())
	assert.Equal(t, "scan-start", CmdScanStart.String())
	assert.Equal(t, "0x7f", MessageType(0x7f).String())
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeUnknownCommand, "unknown command"},
		{ErrCodeInvalidChannel, "invalid channel"},
		{ErrCodeRadioFailure, "radio failure"},
		{ErrCodeScanActive, "scan already active"},
		{ErrorCode(0x09), "0x09"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestCommandErrorsMatchSentinels(t *testing.T) {
	var err error = &CommandRejectedError{Command: CmdScanStart, Code: ErrCodeInvalidChannel}
	assert.ErrorIs(t, err, ErrCommandRejected)
	assert.NotErrorIs(t, err, ErrCommandTimeout)
	assert.True(t, IsCommandRejected(err, ErrCodeInvalidChannel))
	assert.False(t, IsCommandRejected(err, ErrCodeScanActive))
	assert.Equal(t, "command 0x01 failed: invalid channel", err.Error())

	err = &CommandTimeoutError{Command: CmdPromiscQuery}
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.True(t, errors.Is(err, ErrCommandTimeout))
}
