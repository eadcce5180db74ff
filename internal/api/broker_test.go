package api

import (
	"testing"
	"time"

	"github.com/seantiz/quill/internal/model"
)

func recvPayload(t *testing.T, ch <-chan model.Payload) model.Payload {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed without a payload")
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no payload within deadline")
		return nil
	}
}

func TestBrokerDeliversToWaitingSubscribers(t *testing.T) {
	b := NewResultBroker()

	ch1, unsub1 := b.Subscribe(7)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(7)
	defer unsub2()

	want := &model.ChangeResult{Affected: 3}
	b.Publish(7, want)

	for _, ch := range []<-chan model.Payload{ch1, ch2} {
		got, ok := recvPayload(t, ch).(*model.ChangeResult)
		if !ok || got.Affected != 3 {
			t.Errorf("payload = %#v, want %#v", got, want)
		}
	}
}

func TestBrokerRetainsForLateSubscribers(t *testing.T) {
	b := NewResultBroker()
	b.Publish(42, model.GenericOK{})

	ch, unsub := b.Subscribe(42)
	defer unsub()
	if _, ok := recvPayload(t, ch).(model.GenericOK); !ok {
		t.Error("late subscriber did not receive the retained payload")
	}
}

func TestBrokerIgnoresSecondPublish(t *testing.T) {
	b := NewResultBroker()
	b.Publish(1, &model.ChangeResult{Affected: 1})
	b.Publish(1, &model.ChangeResult{Affected: 99})

	ch, unsub := b.Subscribe(1)
	defer unsub()
	got := recvPayload(t, ch).(*model.ChangeResult)
	if got.Affected != 1 {
		t.Errorf("retained payload = %+v, want the first publish", got)
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewResultBroker()
	ch, unsub := b.Subscribe(5)
	unsub()

	b.Publish(5, model.GenericOK{})

	// An unsubscribed channel receives nothing from the publish.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unsubscribed channel received a payload")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerForget(t *testing.T) {
	b := NewResultBroker()
	b.Publish(9, model.GenericOK{})
	b.Forget(9)

	ch, unsub := b.Subscribe(9)
	defer unsub()
	select {
	case <-ch:
		t.Error("subscriber received a payload after Forget")
	case <-time.After(50 * time.Millisecond):
	}
}
