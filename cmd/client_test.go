package cmd

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient implements DeviceClient.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) StartScan(ctx context.Context, channel, filter uint8) error {
	args := m.Called(ctx, channel, filter)
	return args.Error(0)
}

func (m *MockClient) StopScan(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) PromiscuousOn(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) PromiscuousOff(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) PromiscuousStatus(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) FrameCount() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockClient) Dropped() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockClient) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *MockClient) Err() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
