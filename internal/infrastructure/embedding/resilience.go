package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
	"github.com/ledgerguard/copilot/internal/infrastructure/resilience"
)

// ResilientEmbedder runs another embedder through the shared retry and
// circuit breaker executor. Exhausted retries surface as temporary
// errors so the worker requeues instead of failing the document.
type ResilientEmbedder struct {
	inner    ports.Embedder
	executor *resilience.Executor
}

func NewResilientEmbedder(inner ports.Embedder, executor *resilience.Executor) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, executor: executor}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.executor == nil {
		return e.inner.Embed(ctx, texts)
	}

	var vectors [][]float32
	err := e.executor.Execute(ctx, "embedder.embed", func(ctx context.Context) error {
		out, embedErr := e.inner.Embed(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		vectors = out
		return nil
	}, ClassifyEmbedderError)
	if err != nil {
		return nil, WrapTemporaryIfNeeded("embed", err)
	}
	return vectors, nil
}

func (e *ResilientEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.executor == nil {
		return e.inner.EmbedQuery(ctx, text)
	}

	var vector []float32
	err := e.executor.Execute(ctx, "embedder.embed_query", func(ctx context.Context) error {
		out, embedErr := e.inner.EmbedQuery(ctx, text)
		if embedErr != nil {
			return embedErr
		}
		vector = out
		return nil
	}, ClassifyEmbedderError)
	if err != nil {
		return nil, WrapTemporaryIfNeeded("embed query", err)
	}
	return vector, nil
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "embedder status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("embedder %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("embedder %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func ClassifyEmbedderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func WrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	class := ClassifyEmbedderError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
