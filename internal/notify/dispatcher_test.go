package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LungheSam/FareFlow-Server/internal/config"
)

type fakeQueue struct {
	due         []Message
	sent        []string
	rescheduled map[string]int
	dead        []string
}

func newFakeQueue(msgs ...Message) *fakeQueue {
	return &fakeQueue{due: msgs, rescheduled: map[string]int{}}
}

func (q *fakeQueue) ClaimDue(ctx context.Context, limit int) ([]Message, error) {
	if limit > len(q.due) {
		limit = len(q.due)
	}
	claimed := q.due[:limit]
	q.due = q.due[limit:]
	return claimed, nil
}

func (q *fakeQueue) MarkSent(ctx context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) Reschedule(ctx context.Context, id string, attempts int, next time.Time) error {
	q.rescheduled[id] = attempts
	return nil
}

func (q *fakeQueue) MarkDead(ctx context.Context, id string, attempts int) error {
	q.dead = append(q.dead, id)
	return nil
}

type fakeChannel struct {
	name  string
	err   error
	calls int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, kind Kind, p Payload) error {
	c.calls++
	return c.err
}

var testOutboxCfg = config.OutboxConfig{
	PollInterval: 10 * time.Millisecond,
	BatchSize:    10,
	MaxAttempts:  3,
	BaseBackoff:  time.Second,
}

func TestDrain_AllChannelsSucceed(t *testing.T) {
	q := newFakeQueue(Message{ID: "m1", Kind: KindPayment})
	sms := &fakeChannel{name: "sms"}
	email := &fakeChannel{name: "email"}
	d := NewDispatcher(q, testOutboxCfg, sms, email)

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if sms.calls != 1 || email.calls != 1 {
		t.Errorf("calls = sms:%d email:%d, want 1 each", sms.calls, email.calls)
	}
	if len(q.sent) != 1 || q.sent[0] != "m1" {
		t.Errorf("sent = %v, want [m1]", q.sent)
	}
	if len(q.rescheduled) != 0 || len(q.dead) != 0 {
		t.Errorf("unexpected reschedule/dead: %v %v", q.rescheduled, q.dead)
	}
}

func TestDrain_FailureReschedules(t *testing.T) {
	q := newFakeQueue(Message{ID: "m1", Kind: KindPayment})
	sms := &fakeChannel{name: "sms", err: errors.New("gateway down")}
	email := &fakeChannel{name: "email"}
	d := NewDispatcher(q, testOutboxCfg, sms, email)

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(q.sent) != 0 {
		t.Errorf("message marked sent despite sms failure")
	}
	if got := q.rescheduled["m1"]; got != 1 {
		t.Errorf("rescheduled attempts = %d, want 1", got)
	}
}

func TestDrain_DeadLetterAfterMaxAttempts(t *testing.T) {
	q := newFakeQueue(Message{ID: "m1", Kind: KindPayment, Attempts: 2})
	sms := &fakeChannel{name: "sms", err: errors.New("gateway down")}
	d := NewDispatcher(q, testOutboxCfg, sms)

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(q.dead) != 1 || q.dead[0] != "m1" {
		t.Errorf("dead = %v, want [m1]", q.dead)
	}
	if len(q.rescheduled) != 0 {
		t.Errorf("dead message was also rescheduled: %v", q.rescheduled)
	}
}

func TestBackoffDoubles(t *testing.T) {
	d := NewDispatcher(newFakeQueue(), testOutboxCfg)
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, want := range wants {
		if got := d.backoff(i + 1); got != want {
			t.Errorf("backoff(%d) = %s, want %s", i+1, got, want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newFakeQueue()
	d := NewDispatcher(q, testOutboxCfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
