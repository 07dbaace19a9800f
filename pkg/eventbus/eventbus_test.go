package eventbus

import (
	"context"
	"testing"

	"github.com/iota-uz/orgledger/pkg/logging"
	"github.com/sirupsen/logrus"
)

type note struct {
	data string
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var data string
	publisher.Subscribe(func(n *note) {
		called = true
		data = n.data
	})
	publisher.Publish(&note{data: "test"})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestPublisher_PanickingHandlerDoesNotPropagate(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	publisher.Subscribe(func(n *note) {
		panic("boom")
	})
	publisher.Publish(&note{data: "x"}) // must not panic the publisher
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	h := func(n *note) { t.Error("should not be called") }
	publisher.Subscribe(h)
	publisher.Unsubscribe(h)
	if publisher.SubscribersCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
	publisher.Publish(&note{data: "x"})
}

func TestMatchSignature(t *testing.T) {
	type a struct{}
	type b struct{}
	if !MatchSignature(func(e *a) {}, []any{&a{}}) {
		t.Error("expected true")
	}
	if MatchSignature(func(e *a) {}, []any{&b{}}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *a) {}, []any{}) {
		t.Error("expected false")
	}
	if !MatchSignature(func(ctx context.Context) {}, []any{context.Background()}) {
		t.Error("expected true")
	}
	if MatchSignature(42, []any{&a{}}) {
		t.Error("non-func handler should not match")
	}
}
