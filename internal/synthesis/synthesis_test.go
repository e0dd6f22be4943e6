package synthesis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/dossier/internal/hermes"
)

type fakeRequester struct {
	subject  string
	data     any
	deadline bool
	reply    hermes.SynthesisReply
	err      error
}

func (f *fakeRequester) Request(ctx context.Context, subject string, data, out any) error {
	f.subject = subject
	f.data = data
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	*out.(*hermes.SynthesisReply) = f.reply
	return nil
}

func TestNATS_Synthesize(t *testing.T) {
	id := uuid.New()
	req := &fakeRequester{reply: hermes.SynthesisReply{OK: true}}
	n := NewNATS(req, "profile.field.synthesize", time.Second)

	require.NoError(t, n.Synthesize(context.Background(), id))
	assert.Equal(t, "profile.field.synthesize", req.subject)
	assert.Equal(t, hermes.SynthesisRequest{FieldID: id.String()}, req.data)
	assert.True(t, req.deadline)
}

func TestNATS_Errors(t *testing.T) {
	id := uuid.New()

	n := NewNATS(&fakeRequester{err: errors.New("no responders")}, "s", 0)
	err := n.Synthesize(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), id.String())

	n = NewNATS(&fakeRequester{reply: hermes.SynthesisReply{OK: false, Error: "too few sources"}}, "s", 0)
	err = n.Synthesize(context.Background(), id)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "too few sources")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Synthesize(context.Background(), uuid.New()))
}
