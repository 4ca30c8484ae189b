package app

import (
	"testing"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEventHub_PublishAndClose(t *testing.T) {
	hub := NewEventHub(4)

	a, _ := hub.Subscribe("job-1")
	b, _ := hub.Subscribe("job-1")
	other, unsubscribeOther := hub.Subscribe("job-2")
	defer unsubscribeOther()

	hub.Publish(domain.JobEvent{JobID: "job-1", Type: domain.JobEventProgress, Processed: 1})
	hub.Close("job-1")

	for _, ch := range []<-chan domain.JobEvent{a, b} {
		ev, ok := <-ch
		assert.True(t, ok)
		assert.Equal(t, 1, ev.Processed)
		_, ok = <-ch
		assert.False(t, ok)
	}

	select {
	case <-other:
		t.Fatal("unexpected event for another job")
	default:
	}
	assert.Equal(t, 0, hub.Subscribers("job-1"))
	assert.Equal(t, 1, hub.Subscribers("job-2"))
}

func TestEventHub_FullSubscriberDropsEvents(t *testing.T) {
	hub := NewEventHub(1)
	ch, unsubscribe := hub.Subscribe("job")

	hub.Publish(domain.JobEvent{JobID: "job", Processed: 1})
	hub.Publish(domain.JobEvent{JobID: "job", Processed: 2})

	ev := <-ch
	assert.Equal(t, 1, ev.Processed)

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)

	// closing after unsubscribe must not close the channel twice
	hub.Close("job")
}
