// Package synthesis provides commit.Synthesizer implementations.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dossier/internal/commit"
	"github.com/MikeSquared-Agency/dossier/internal/hermes"
)

var (
	_ commit.Synthesizer = (*NATS)(nil)
	_ commit.Synthesizer = Noop{}
)

// ErrRejected is returned when the worker replies but reports failure.
var ErrRejected = errors.New("synthesis rejected")

// Requester is the request/reply half of hermes.Client.
type Requester interface {
	Request(ctx context.Context, subject string, data, out any) error
}

// NATS asks an external worker to synthesize a field over request/reply.
type NATS struct {
	req     Requester
	subject string
	timeout time.Duration
}

func NewNATS(req Requester, subject string, timeout time.Duration) *NATS {
	return &NATS{req: req, subject: subject, timeout: timeout}
}

func (n *NATS) Synthesize(ctx context.Context, fieldID uuid.UUID) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	var reply hermes.SynthesisReply
	if err := n.req.Request(ctx, n.subject, hermes.SynthesisRequest{FieldID: fieldID.String()}, &reply); err != nil {
		return fmt.Errorf("synthesize field %s: %w", fieldID, err)
	}
	if !reply.OK {
		return fmt.Errorf("synthesize field %s: %w: %s", fieldID, ErrRejected, reply.Error)
	}
	return nil
}

// Noop is used when no NATS connection is configured.
type Noop struct{}

func (Noop) Synthesize(context.Context, uuid.UUID) error { return nil }
