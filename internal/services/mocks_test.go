package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/events"
)

// MockPublisher is a mock for the websocket.Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	m.Called(msgType, data)
}

func newMockPublisher() *MockPublisher {
	m := &MockPublisher{}
	m.On("Publish", mock.Anything, mock.Anything).Return()
	return m
}

// types lists the published message types in order.
func (m *MockPublisher) types() []events.MessageType {
	out := make([]events.MessageType, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(0).(events.MessageType))
	}
	return out
}

// payloads returns the data of every message of type t.
func (m *MockPublisher) payloads(t events.MessageType) []interface{} {
	var out []interface{}
	for _, c := range m.Calls {
		if c.Arguments.Get(0).(events.MessageType) == t {
			out = append(out, c.Arguments.Get(1))
		}
	}
	return out
}
