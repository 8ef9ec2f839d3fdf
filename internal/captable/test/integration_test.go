package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mkarpov/equity/internal/captable/controller"
	"github.com/mkarpov/equity/internal/captable/events"
	"github.com/mkarpov/equity/internal/captable/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const integrationTopic = "captable_events_integration"

type IntegrationTestSuite struct {
	suite.Suite
	producer     *events.Producer
	consumer     *events.Consumer
	consumerStop context.CancelFunc
	received     chan events.Event
	logger       *zap.Logger
	testTimeout  time.Duration
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 20 * time.Second
	s.received = make(chan events.Event, 100)

	var kafkaErr error
	s.producer, kafkaErr = initializeKafkaWithRetry(integrationTopic)
	if kafkaErr != nil {
		s.T().Fatal("Kafka initialization failed:", kafkaErr)
	}

	s.consumer = events.NewConsumer([]string{"localhost:9092"}, "captable-integration", integrationTopic, s.logger)
	s.consumer.RegisterHandler(func(_ context.Context, event events.Event) error {
		s.received <- event
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	s.consumerStop = cancel
	s.consumer.Start(ctx)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.consumerStop != nil {
		s.consumerStop()
	}
	if s.consumer != nil {
		s.consumer.Close()
	}
	if s.producer != nil {
		s.producer.Close()
	}
}

func initializeKafkaWithRetry(topic string) (*events.Producer, error) {
	kafkaBrokers := []string{"localhost:9092"}
	var producer *events.Producer
	var err error

	// Retry producer initialization
	err = backoff.Retry(func() error {
		producer, err = events.NewProducer(kafkaBrokers, zap.NewNop(), topic)
		if err != nil || producer == nil {
			return fmt.Errorf("failed to create Kafka producer: %v", err)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	// Verify the topic exists before wiring a consumer to it
	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBrokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	return producer, nil
}

// TestCapTableLifecycle walks the full sequence against real brokers:
// founding, SAFE recording, and a priced round, asserting every
// mutation reaches the consumer with the aggregate's snapshot attached.
func (s *IntegrationTestSuite) TestCapTableLifecycle() {
	table, err := controller.NewCapTable(
		map[string]decimal.Decimal{
			"Jill": decimal.RequireFromString("0.48"),
			"Jack": decimal.RequireFromString("0.32"),
		},
		10_000_000,
		decimal.RequireFromString("0.001"),
		controller.WithLogger(s.logger),
		controller.WithProducer(s.producer),
	)
	if err != nil {
		s.T().Fatal("NewCapTable failed:", err)
	}
	s.awaitEvent(events.CapTableInitialized, table)

	table.AddSafes(map[string]models.SafeTerms{
		"BlueShirt Capital": {
			PaidAmount:   decimal.RequireFromString("1000000"),
			ValuationCap: decimal.RequireFromString("10000000"),
		},
	})
	event := s.awaitEvent(events.SafesRecorded, table)
	assert.Equal(s.T(), 1, len(event.CapTable.Safes))
	assert.Equal(s.T(), models.SafePending, event.CapTable.Safes[0].Status)

	postMoney, err := table.AddPricedRound(map[string]decimal.Decimal{
		"Vulture Ventures": decimal.RequireFromString("4000000"),
	}, decimal.RequireFromString("15000000"))
	if err != nil {
		s.T().Fatal("AddPricedRound failed:", err)
	}
	assert.True(s.T(), postMoney.GreaterThan(decimal.RequireFromString("15000000")))

	event = s.awaitEvent(events.PricedRoundClosed, table)
	assert.Equal(s.T(), len(table.Shareholders()), len(event.CapTable.Shareholders))
	assert.True(s.T(), table.TotalShares().Equal(event.CapTable.TotalShares))
}

// awaitEvent blocks until the consumer delivers an event of the wanted
// type for the given table, skipping events left over from other runs
// sharing the topic.
func (s *IntegrationTestSuite) awaitEvent(wantType events.EventType, table *controller.CapTable) events.Event {
	s.T().Helper()
	deadline := time.After(s.testTimeout)
	for {
		select {
		case event := <-s.received:
			if event.CapTable == nil || event.CapTable.TableID != table.ID() {
				continue
			}
			assert.Equal(s.T(), wantType, event.Type)
			return event
		case <-deadline:
			s.T().Fatalf("timed out waiting for %s event", wantType)
			return events.Event{}
		}
	}
}
