package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"firestige.xyz/airsniff/internal/filter"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Send(ex *filter.Exchange) error { return m.Called(ex).Error(0) }
func (m *mockSink) Close() error                   { return m.Called().Error(0) }

func TestMultiSendsToAll(t *testing.T) {
	ex := &filter.Exchange{}
	boom := errors.New("boom")

	a, b := new(mockSink), new(mockSink)
	a.On("Send", ex).Return(boom)
	b.On("Send", ex).Return(nil)
	a.On("Close").Return(nil)
	b.On("Close").Return(nil)

	m := Multi{a, b}
	assert.ErrorIs(t, m.Send(ex), boom)
	assert.NoError(t, m.Close())

	a.AssertExpectations(t)
	b.AssertExpectations(t)
}
