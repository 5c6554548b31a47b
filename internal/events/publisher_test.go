package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	emitter := NewEmitter(EmitterConfig{Now: fixedNow}, nil)
	event, err := emitter.Build(EmitParams{
		AggregateID: "graphene",
		EventType:   TypeSearchCompleted,
		Payload:     SearchCompleted{Query: "graphene", ResultCount: 2},
	})
	require.NoError(t, err)

	t.Run("writes keyed json message", func(t *testing.T) {
		w := &mockWriter{}
		w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "graphene" {
				return false
			}
			var decoded Event
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return decoded.EventID == event.EventID &&
				len(msgs[0].Headers) == 2 &&
				string(msgs[0].Headers[0].Value) == TypeSearchCompleted
		})).Return(nil)

		p := NewKafkaPublisherWithWriter(w, "scholar.events")
		require.NoError(t, p.Publish(context.Background(), event))
		w.AssertExpectations(t)
	})

	t.Run("wraps write errors with topic", func(t *testing.T) {
		w := &mockWriter{}
		w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))

		p := NewKafkaPublisherWithWriter(w, "scholar.events")
		err := p.Publish(context.Background(), event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka write to scholar.events")
	})

	t.Run("unwraps first per-message error", func(t *testing.T) {
		cause := errors.New("message too large")
		w := &mockWriter{}
		w.On("WriteMessages", mock.Anything, mock.Anything).Return(kafka.WriteErrors{cause})

		p := NewKafkaPublisherWithWriter(w, "scholar.events")
		err := p.Publish(context.Background(), event)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
	})
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	w.On("Close").Return(nil)

	p := NewKafkaPublisherWithWriter(w, "t")
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
