package behavior

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFeed_CapsNewestFirst(t *testing.T) {
	feed := NewEventFeed(0)

	for i := 0; i < 55; i++ {
		feed.Emit(Event{NPCID: fmt.Sprintf("npc-%d", i), Kind: EventBehavior})
	}

	events := feed.Events()
	require.Len(t, events, DefaultFeedCap)
	assert.Equal(t, "npc-54", events[0].NPCID)
	assert.Equal(t, "npc-5", events[len(events)-1].NPCID, "the five oldest fall off")
}

func TestEventFeed_KeepsInsertionOrder(t *testing.T) {
	feed := NewEventFeed(3)
	feed.Emit(Event{NPCID: "a", StartTime: "12:30"})
	feed.Emit(Event{NPCID: "b", StartTime: "08:00"})

	events := feed.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].NPCID, "no re-sorting by start time")
	assert.Equal(t, "a", events[1].NPCID)
}

func TestEventFeed_Subscribers(t *testing.T) {
	feed := NewEventFeed(5)

	var mu sync.Mutex
	var got []string
	for _, name := range []string{"first", "second"} {
		name := name
		feed.Subscribe(func(e Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+e.NPCID)
		})
	}

	feed.Emit(Event{NPCID: "lila"})
	assert.Equal(t, []string{"first:lila", "second:lila"}, got)
	assert.Equal(t, 1, feed.Len())
}

func TestEventFeed_EventsIsACopy(t *testing.T) {
	feed := NewEventFeed(5)
	feed.Emit(Event{NPCID: "lila"})

	events := feed.Events()
	events[0].NPCID = "changed"
	assert.Equal(t, "lila", feed.Events()[0].NPCID)
}
