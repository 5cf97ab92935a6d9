// Package dispatch delivers follow-up content over outbound channels.
// It is the only package in the follow-up path that performs network I/O.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Channel names an outbound channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelTask     Channel = "task"
)

// ParseChannel accepts the stored channel names, including "tarefa" for task.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whatsapp":
		return ChannelWhatsApp, true
	case "email", "e-mail":
		return ChannelEmail, true
	case "task", "tarefa":
		return ChannelTask, true
	}
	return "", false
}

// ErrMissingDestination is returned when the recipient has no address for the channel.
var ErrMissingDestination = errors.New("missing destination")

// Recipient carries every address a sender may need.
type Recipient struct {
	LeadID uuid.UUID
	Name   string
	Phone  string
	Email  string
}

// Message is one rendered step ready for delivery.
type Message struct {
	Channel     Channel
	To          Recipient
	Subject     string
	Body        string
	ExecutionID uuid.UUID
}

// Result is the outcome of a delivery.
type Result struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// StatusError is a non-success response from a remote channel API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("channel returned %d", e.Code)
	}
	return fmt.Sprintf("channel returned %d: %s", e.Code, e.Body)
}

// Policy bounds each delivery.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Budget is the longest a single Send can take under the policy: every
// attempt timing out plus the exponential waits between them.
func (p Policy) Budget() time.Duration {
	attempts := max(p.MaxAttempts, 1)
	total := p.Timeout * time.Duration(attempts)
	wait := p.Backoff
	for range attempts - 1 {
		total += wait
		wait *= 2
	}
	return total
}

// Router dispatches messages to the sender registered for their channel.
type Router struct {
	senders map[Channel]Sender
	policy  Policy
	log     *logger.Logger
}

// NewRouter creates a router with no senders.
func NewRouter(policy Policy, log *logger.Logger) *Router {
	if policy.Timeout <= 0 {
		policy.Timeout = 10 * time.Second
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Router{senders: make(map[Channel]Sender), policy: policy, log: log}
}

// Budget reports the worst-case duration of one Send.
func (r *Router) Budget() time.Duration {
	return r.policy.Budget()
}

// Register binds a sender to a channel.
func (r *Router) Register(channel Channel, sender Sender) {
	r.senders[channel] = sender
}

// Send delivers msg. Each attempt runs under the policy timeout; only network
// faults, timeouts and 5xx responses are retried. Failures are reported in the
// Result, never as an error.
func (r *Router) Send(ctx context.Context, msg Message) Result {
	sender, ok := r.senders[msg.Channel]
	if !ok {
		return r.finish(msg, Result{Error: fmt.Sprintf("unsupported channel %q", msg.Channel)})
	}

	backoff := retry.WithMaxRetries(uint64(r.policy.MaxAttempts-1), retry.NewExponential(r.policy.Backoff))

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()

		err := sender.Send(attemptCtx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", r.policy.Timeout, err)
		}
		if Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil {
		return r.finish(msg, Result{Error: err.Error(), Attempts: attempts})
	}
	return r.finish(msg, Result{Success: true, Attempts: attempts})
}

func (r *Router) finish(msg Message, res Result) Result {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		r.log.Warn("dispatch failed",
			"channel", msg.Channel,
			"executionId", msg.ExecutionID,
			"attempts", res.Attempts,
			"error", res.Error,
		)
	}
	metrics.FollowupDispatch.WithLabelValues(string(msg.Channel), outcome).Inc()
	return res
}

// Retryable reports whether err is a transient delivery fault.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrMissingDestination) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
