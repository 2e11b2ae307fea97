package event

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/skuld/internal/domain"
)

// fakeAckFuture is a pre-settled nats.PubAckFuture for session tests.
type fakeAckFuture struct {
	subject string
	ok      chan *nats.PubAck
	err     chan error
}

var _ nats.PubAckFuture = (*fakeAckFuture)(nil)

func acceptedFuture(subject string) *fakeAckFuture {
	f := newFakeAckFuture(subject)
	f.ok <- &nats.PubAck{Stream: "BILLING_EVENTS"}
	return f
}

func rejectedFuture(subject string, err error) *fakeAckFuture {
	f := newFakeAckFuture(subject)
	f.err <- err
	return f
}

func newFakeAckFuture(subject string) *fakeAckFuture {
	return &fakeAckFuture{
		subject: subject,
		ok:      make(chan *nats.PubAck, 1),
		err:     make(chan error, 1),
	}
}

func (f *fakeAckFuture) Ok() <-chan *nats.PubAck { return f.ok }
func (f *fakeAckFuture) Err() <-chan error       { return f.err }
func (f *fakeAckFuture) Msg() *nats.Msg          { return &nats.Msg{Subject: f.subject} }

func newTestSession(pending ...nats.PubAckFuture) *jetStreamSession {
	return &jetStreamSession{
		logger:       testLogger(),
		flushTimeout: time.Second,
		pending:      pending,
	}
}

func TestSessionFlush_IsolatesConcurrentRequests(t *testing.T) {
	// Two overlapping requests publish through their own sessions; the
	// broker accepts the first request's event and rejects the second's.
	first := newTestSession(acceptedFuture(domain.TopicUserSubscribed))
	second := newTestSession(rejectedFuture(domain.TopicInvoicePaid, errors.New("broker rejected message")))

	if err := first.Flush(context.Background()); err != nil {
		t.Errorf("accepted session must flush clean, got %v", err)
	}

	err := second.Flush(context.Background())
	if err == nil {
		t.Fatal("rejected session must surface its own publish failure")
	}
	if !strings.Contains(err.Error(), domain.TopicInvoicePaid) {
		t.Errorf("failure must name the rejected subject, got %v", err)
	}
}

func TestSessionFlush_ReportsFirstFailure(t *testing.T) {
	s := newTestSession(
		acceptedFuture(domain.TopicInvoicePaid),
		rejectedFuture(domain.TopicSubscriptionRenewal, errors.New("no responders")),
	)

	err := s.Flush(context.Background())
	if err == nil {
		t.Fatal("expected flush to fail")
	}
	if !strings.Contains(err.Error(), domain.TopicSubscriptionRenewal) {
		t.Errorf("failure must name the rejected subject, got %v", err)
	}
}

func TestSessionFlush_EmptySessionIsClean(t *testing.T) {
	if err := newTestSession().Flush(context.Background()); err != nil {
		t.Errorf("empty session flush = %v, want nil", err)
	}
}

func TestSessionFlush_TimesOutOnUnsettledAck(t *testing.T) {
	s := newTestSession(newFakeAckFuture(domain.TopicUserSubscribed))
	s.flushTimeout = 10 * time.Millisecond

	err := s.Flush(context.Background())
	if err == nil {
		t.Fatal("expected flush to time out on an unsettled ack")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v", err)
	}
}

func TestSessionFlush_StopsOnContextCancel(t *testing.T) {
	s := newTestSession(newFakeAckFuture(domain.TopicUserSubscribed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected flush to stop on cancelled context")
	}
}
