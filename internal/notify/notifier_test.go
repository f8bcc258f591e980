package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_PublishWakesOnlyDialogueSubscribers(t *testing.T) {
	n := New()
	a, cancelA := n.Subscribe("a")
	defer cancelA()
	b, cancelB := n.Subscribe("b")
	defer cancelB()

	n.Publish("a")

	select {
	case <-a:
	default:
		t.Fatal("subscriber of a was not woken")
	}
	select {
	case <-b:
		t.Fatal("subscriber of b was woken")
	default:
	}
}

func TestNotifier_PublishCoalesces(t *testing.T) {
	n := New()
	ch, cancel := n.Subscribe("a")
	defer cancel()

	for i := 0; i < 10; i++ {
		n.Publish("a")
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single pending wake-up")
	default:
	}
}

func TestNotifier_Cancel(t *testing.T) {
	n := New()
	_, cancel1 := n.Subscribe("a")
	_, cancel2 := n.Subscribe("a")
	assert.Equal(t, 2, n.Subscribers("a"))

	cancel1()
	cancel1()
	assert.Equal(t, 1, n.Subscribers("a"))

	cancel2()
	assert.Equal(t, 0, n.Subscribers("a"))

	// публикация без подписчиков не паникует
	n.Publish("a")
}
