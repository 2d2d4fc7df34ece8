package playback

import "timedtext/internal/timeline"

// EventType names a controller event.
type EventType string

const (
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventEnded          EventType = "ended"
	EventTimeUpdate     EventType = "timeupdate"
	EventDurationChange EventType = "durationchange"
	EventSeeking        EventType = "seeking"
	EventSeeked         EventType = "seeked"
	EventWaiting        EventType = "waiting"
	EventCanPlay        EventType = "canplay"
	EventCanPlayThrough EventType = "canplaythrough"
	EventVolumeChange   EventType = "volumechange"
	EventRateChange     EventType = "ratechange"
	EventPlayhead       EventType = "playhead"
)

// Event is delivered to subscribers. Time is the logical time when the event
// was published; Playhead is set for EventPlayhead only.
type Event struct {
	Type     EventType
	Time     float64
	Playhead *Playhead
}

// Playhead describes what sits under a virtual time.
type Playhead struct {
	Time   float64
	Offset float64
	// SegmentIndex is the top-level item index within the Track.
	SegmentIndex int
	Segment      timeline.Item
	Clip         timeline.Item
	TimedText    *timeline.TimedText
	// Pseudo marks a preview that did not move the real playhead.
	Pseudo  bool
	Effects []timeline.ActiveEffect
}

// Caption returns the text of the token under the playhead, if any.
func (p *Playhead) Caption() string {
	if p == nil || p.TimedText == nil {
		return ""
	}
	return p.TimedText.Text
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event and returns a function removing it.
// Callbacks run on the loop; they may call back into the controller.
func (c *Controller) Subscribe(fn func(Event)) (cancel func()) {
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) emit(typ EventType) {
	c.publish(Event{Type: typ, Time: c.currentTime})
}

func (c *Controller) publish(ev Event) {
	subs := c.subscribers
	for _, s := range subs {
		s.fn(ev)
	}
}
