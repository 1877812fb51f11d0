package pubsub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
)

func collector() (Handler, chan *protocol.Message) {
	got := make(chan *protocol.Message, 16)
	return func(msg *protocol.Message) { got <- msg }, got
}

func waitMsg(t *testing.T, ch chan *protocol.Message) *protocol.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected a message")
		return nil
	}
}

func expectSilence(t *testing.T, ch chan *protocol.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("expected no message, got event %s", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	fn, got := collector()
	sub, err := bus.Subscribe(protocol.DocTopic("doc1"), "s1", fn)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Topic() != "doc:doc1" {
		t.Errorf("expected topic doc:doc1, got %s", sub.Topic())
	}

	bus.Publish(protocol.DocTopic("doc1"), protocol.EventMessage("doc:doc1", protocol.EventPatch, nil))

	msg := waitMsg(t, got)
	if msg.Event != protocol.EventPatch {
		t.Errorf("expected event %s, got %s", protocol.EventPatch, msg.Event)
	}
}

func TestBus_PublishFrom_ExcludesSender(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	fn1, got1 := collector()
	fn2, got2 := collector()
	bus.Subscribe("doc:doc1", "s1", fn1)
	bus.Subscribe("doc:doc1", "s2", fn2)

	bus.PublishFrom("doc:doc1", "s1", protocol.EventMessage("doc:doc1", protocol.EventPatch, nil))

	msg := waitMsg(t, got2)
	if msg.Event != protocol.EventPatch {
		t.Errorf("expected event %s, got %s", protocol.EventPatch, msg.Event)
	}
	expectSilence(t, got1)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	fn1, got1 := collector()
	fn2, got2 := collector()
	bus.Subscribe("doc:a", "s1", fn1)
	bus.Subscribe("doc:b", "s2", fn2)

	bus.Publish("doc:a", protocol.EventMessage("doc:a", protocol.EventReload, nil))

	if msg := waitMsg(t, got1); msg.Topic != "doc:a" {
		t.Errorf("expected topic doc:a, got %s", msg.Topic)
	}
	expectSilence(t, got2)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	fn, got := collector()
	sub, err := bus.Subscribe("doc:doc1", "s1", fn)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if bus.Subscribers("doc:doc1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.Subscribers("doc:doc1"))
	}

	sub.Unsubscribe()
	sub.Unsubscribe() // second call is a no-op

	if bus.Subscribers("doc:doc1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.Subscribers("doc:doc1"))
	}
	if bus.Topics() != 0 {
		t.Errorf("expected empty topic removed, got %d topics", bus.Topics())
	}

	bus.Publish("doc:doc1", protocol.EventMessage("doc:doc1", protocol.EventPatch, nil))
	expectSilence(t, got)
}

func TestBus_Counts(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	fn, _ := collector()
	bus.Subscribe("doc:a", "s1", fn)
	bus.Subscribe("doc:a", "s2", fn)
	bus.Subscribe("doc:b", "s3", fn)

	if got := bus.Topics(); got != 2 {
		t.Errorf("expected 2 topics, got %d", got)
	}
	if got := bus.Subscribers("doc:a"); got != 2 {
		t.Errorf("expected 2 subscribers on doc:a, got %d", got)
	}
	if got := bus.Subscribers("doc:missing"); got != 0 {
		t.Errorf("expected 0 subscribers on missing topic, got %d", got)
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()

	fn, _ := collector()
	bus.Subscribe("doc:doc1", "s1", fn)

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	if err := bus.Publish("doc:doc1", protocol.HeartbeatMessage()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed from publish, got %v", err)
	}
	if _, err := bus.Subscribe("doc:doc1", "s1", fn); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed from subscribe, got %v", err)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	seen := 0
	bus.Subscribe("doc:doc1", "s1", func(*protocol.Message) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bus.Publish("doc:doc1", protocol.HeartbeatMessage())
			}
		}()
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := seen
		mu.Unlock()
		if n == 100 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected 100 deliveries, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
