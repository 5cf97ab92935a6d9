package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedSender struct {
	errs  []error
	calls int
	block bool
}

func (s *scriptedSender) Send(ctx context.Context, _ Message) error {
	s.calls++
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func testRouter(sender Sender, attempts int, timeout time.Duration) *Router {
	r := NewRouter(Policy{Timeout: timeout, MaxAttempts: attempts, Backoff: time.Millisecond}, nil)
	r.Register(ChannelWhatsApp, sender)
	return r
}

func TestParseChannel(t *testing.T) {
	cases := map[string]Channel{"whatsapp": ChannelWhatsApp, "Email": ChannelEmail, "tarefa": ChannelTask, "task": ChannelTask}
	for in, want := range cases {
		got, ok := ParseChannel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseChannel("sms")
	assert.False(t, ok)
}

func TestRouterRetriesTransientFailures(t *testing.T) {
	sender := &scriptedSender{errs: []error{&StatusError{Code: 502}}}
	res := testRouter(sender, 3, time.Second).Send(context.Background(), Message{Channel: ChannelWhatsApp})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
}

func TestRouterDoesNotRetryPermanentFailures(t *testing.T) {
	sender := &scriptedSender{errs: []error{&StatusError{Code: 400, Body: "bad number"}}}
	res := testRouter(sender, 3, time.Second).Send(context.Background(), Message{Channel: ChannelWhatsApp})

	assert.False(t, res.Success)
	assert.Equal(t, 1, sender.calls)
	assert.Contains(t, res.Error, "bad number")
}

func TestRouterTimeoutIsFailure(t *testing.T) {
	sender := &scriptedSender{block: true}
	res := testRouter(sender, 1, 20*time.Millisecond).Send(context.Background(), Message{Channel: ChannelWhatsApp})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestRouterUnknownChannel(t *testing.T) {
	res := NewRouter(Policy{}, nil).Send(context.Background(), Message{Channel: "fax"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported channel")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&StatusError{Code: 503}))
	assert.False(t, Retryable(&StatusError{Code: 404}))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(ErrMissingDestination))
	assert.False(t, Retryable(errors.New("rejected")))
}

func TestTaskSenderAlwaysSucceeds(t *testing.T) {
	r := NewRouter(Policy{}, nil)
	r.Register(ChannelTask, NewTaskSender(nil))
	res := r.Send(context.Background(), Message{Channel: ChannelTask, Subject: "Ligar", Body: "Ligar para o lead"})
	assert.True(t, res.Success)
}

func TestPolicyBudgetCoversRetries(t *testing.T) {
	p := Policy{Timeout: 10 * time.Second, MaxAttempts: 3, Backoff: time.Second}
	assert.Equal(t, 33*time.Second, p.Budget())

	assert.Equal(t, 10*time.Second, Policy{Timeout: 10 * time.Second}.Budget())
	assert.Equal(t, 10*time.Second, NewRouter(Policy{}, nil).Budget())
}
