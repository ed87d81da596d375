package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

const publishOperation = "publish processed event"

// Connection-state failures clear once the client reconnects.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

// The server refuses these for the event itself; resending cannot help.
var rejectedEventErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
	nats.ErrInvalidMsg,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case matchesAny(err, rejectedEventErrors):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case matchesAny(err, transientPublishErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ClassifyHTTPError(err)
	}
}

// publishFailure maps a publish error onto the domain kinds the pipeline
// reports.
func publishFailure(err error) error {
	if err == nil {
		return nil
	}
	if matchesAny(err, rejectedEventErrors) {
		return domain.WrapError(domain.ErrInvalidInput, publishOperation, err)
	}
	return resilience.WrapTemporary(publishOperation, err, classifyPublishError)
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
