//go:build integration

package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_PublishAndConsume(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	var mu sync.Mutex
	var received []*queue.EventMessage
	done := make(chan struct{})

	consumer := queue.NewConsumer(conn, func(ctx context.Context, msg *queue.EventMessage) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		if len(received) == 2 {
			close(done)
		}
		return nil
	}, queue.DefaultConsumerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	account := &domain.Account{ID: uuid.New(), Username: "alice", Score: 500, Rank: domain.RankD}
	publisher := queue.NewResilientPublisher(queue.NewProducer(conn), queue.DefaultResilientConfig())
	err = publisher.Publish(ctx,
		domain.NewChallengeSolvedEvent(account, 11, 500),
		domain.NewRankChangedEvent(account, domain.RankE),
	)
	if err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].Type != domain.EventChallengeSolved || received[0].ChallengeID != 11 {
		t.Errorf("first event = %+v", received[0])
	}
	if received[1].Type != domain.EventRankChanged || received[1].PreviousRank != domain.RankE {
		t.Errorf("second event = %+v", received[1])
	}
	if received[1].Standing().UserID != account.ID {
		t.Errorf("standing user = %v; want %v", received[1].Standing().UserID, account.ID)
	}
}
