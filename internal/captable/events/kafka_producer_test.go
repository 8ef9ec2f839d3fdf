package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mkarpov/equity/internal/captable/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testSnapshot() *models.CapTableSnapshot {
	return &models.CapTableSnapshot{
		TableID:     uuid.New(),
		TotalShares: decimal.NewFromInt(10_000_000),
	}
}

func newTestProducer(logger *zap.Logger, writer KafkaWriter) *Producer {
	return &Producer{
		writer:    writer,
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := newTestProducer(zaptest.NewLogger(t), nil)

		producer.Produce(CapTableInitialized, testSnapshot())

		assert.Equal(t, 1, len(producer.events))
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newTestProducer(zap.New(core), nil)
		producer.events = make(chan Event, 1) // Small buffer for test
		snapshot := testSnapshot()

		// Fill the channel
		producer.Produce(CapTableInitialized, snapshot)
		producer.Produce(SafesRecorded, snapshot) // This should be dropped

		// Check logs
		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := newTestProducer(zaptest.NewLogger(t), mockWriter)
	snapshot := testSnapshot()

	t.Run("successful send", func(t *testing.T) {
		mockWriter.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			if string(msgs[0].Key) != snapshot.TableID.String() {
				return false
			}
			var event Event
			if err := json.Unmarshal(msgs[0].Value, &event); err != nil {
				return false
			}
			return event.Type == PricedRoundClosed && event.CapTable.TableID == snapshot.TableID
		})).Return(nil).Once()

		producer.sendEvent(context.Background(), Event{Type: PricedRoundClosed, CapTable: snapshot})

		mockWriter.AssertExpectations(t)
	})

	t.Run("write failure is logged", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer := newTestProducer(zap.New(core), mockWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		producer.sendEvent(context.Background(), Event{Type: PricedRoundClosed, CapTable: snapshot})

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
		mockWriter.AssertExpectations(t)
	})

	t.Run("serialization failure is logged", func(t *testing.T) {
		original := jsonMarshal
		jsonMarshal = func(any) ([]byte, error) {
			return nil, errors.New("marshal failed")
		}
		defer func() { jsonMarshal = original }()

		core, recorded := observer.New(zap.ErrorLevel)
		producer := newTestProducer(zap.New(core), mockWriter)

		producer.sendEvent(context.Background(), Event{Type: PricedRoundClosed, CapTable: snapshot})

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
	})
}

func TestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(nil).Once()
	producer := newTestProducer(zaptest.NewLogger(t), mockWriter)
	go producer.eventLoop()

	producer.Close()

	mockWriter.AssertExpectations(t)
}
