package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/airsniff/internal/config"
	"firestige.xyz/airsniff/internal/dot11"
	"firestige.xyz/airsniff/internal/filter"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func beacon(ssid string) *dot11.Frame {
	raw := []byte{
		0x80, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01,
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01,
		0x10, 0x00,
	}
	raw = append(raw, make([]byte, 12)...)
	raw = append(raw, 0, byte(len(ssid)))
	raw = append(raw, ssid...)
	meta := dot11.Metadata{Timestamp: 1234, FrameLen: uint16(len(raw)), Channel: 6, RSSI: -42, NoiseFloor: -95, SeqNum: 9}
	return dot11.NewFrame(meta, raw)
}

var received = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSend(t *testing.T) {
	w := new(mockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.Get(1).([]kafka.Message)...)
	}).Return(nil)

	s := newSink(w, func() time.Time { return received })
	require.NoError(t, s.Send(&filter.Exchange{Frame: beacon("Flock-77"), Alert: true, Match: "flock"}))

	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "aa:bb:cc:dd:ee:01", string(msg.Key))
	assert.Equal(t, received, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "alert", Value: []byte("flock")}}, msg.Headers)

	var rec Record
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, Record{
		Timestamp:  received.UnixMilli(),
		DeviceTime: 1234,
		Seq:        9,
		Channel:    6,
		RSSI:       -42,
		NoiseFloor: -95,
		Type:       "MgmtBeacon",
		Src:        "aa:bb:cc:dd:ee:01",
		Dst:        "ff:ff:ff:ff:ff:ff",
		BSSID:      "aa:bb:cc:dd:ee:01",
		SSID:       "Flock-77",
		FrameLen:   46,
		Captured:   46,
		Alert:      true,
		Match:      "flock",
	}, rec)
	w.AssertExpectations(t)
}

func TestSendWithoutAlertHasNoHeaders(t *testing.T) {
	w := new(mockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.Get(1).([]kafka.Message)...)
	}).Return(nil)

	s := newSink(w, time.Now)
	require.NoError(t, s.Send(&filter.Exchange{Frame: beacon("home")}))
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Headers)
}

func TestSendWriteError(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	s := newSink(w, time.Now)
	err := s.Send(&filter.Exchange{Frame: beacon("home")})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, uint64(1), s.Failed())
}

func TestCompletion(t *testing.T) {
	s := newSink(new(mockWriter), time.Now)
	s.complete(make([]kafka.Message, 3), nil)
	s.complete(make([]kafka.Message, 2), errors.New("leader not available"))
	assert.Equal(t, uint64(3), s.Reported())
	assert.Equal(t, uint64(2), s.Failed())
}

func TestClose(t *testing.T) {
	w := new(mockWriter)
	w.On("Close").Return(nil)
	assert.NoError(t, newSink(w, time.Now).Close())
	w.AssertExpectations(t)
}

func TestNewSinkValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.KafkaConfig
		wantErr string
	}{
		{"no brokers", config.KafkaConfig{Topic: "frames"}, "brokers is required"},
		{"no topic", config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "topic is required"},
		{"bad compression", config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "frames", Compression: "zip"}, "invalid compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSink(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewSinkDoesNotDial(t *testing.T) {
	s, err := NewSink(config.KafkaConfig{
		Brokers:     []string{"127.0.0.1:1"},
		Topic:       "frames",
		Compression: "snappy",
	})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
