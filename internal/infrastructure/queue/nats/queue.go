package nats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ledgerguard/copilot/internal/infrastructure/resilience"
)

const attemptHeader = "Ingest-Attempt"

type Queue struct {
	conn        *nats.Conn
	subject     string
	executor    *resilience.Executor
	maxAttempts int
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	MaxDeliveryAttempts  int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	maxAttempts := options.MaxDeliveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ledgerguard-copilot"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		executor:    options.ResilienceExecutor,
		maxAttempts: maxAttempts,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, documentID, 1)
}

func (q *Queue) publish(ctx context.Context, documentID string, attempt int) error {
	call := func(_ context.Context) error {
		msg := nats.NewMsg(q.subject)
		msg.Data = []byte(documentID)
		msg.Header.Set(attemptHeader, strconv.Itoa(attempt))
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeDocumentIngested consumes the ingestion subject as part of
// the "workers" queue group. Handler failures requeue the document with
// an incremented attempt count until the delivery budget is spent.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		documentID := string(msg.Data)
		if err := handler(handlerCtx, documentID); err != nil {
			attempt := deliveryAttempt(msg)
			log.Printf("worker handler error for doc=%s attempt=%d: %v", documentID, attempt, err)
			if attempt >= q.maxAttempts {
				log.Printf("doc=%s exhausted %d delivery attempts, dropping", documentID, q.maxAttempts)
				return
			}
			if pubErr := q.publish(handlerCtx, documentID, attempt+1); pubErr != nil {
				log.Printf("requeue doc=%s failed: %v", documentID, pubErr)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func deliveryAttempt(msg *nats.Msg) int {
	raw := msg.Header.Get(attemptHeader)
	attempt, err := strconv.Atoi(raw)
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}
