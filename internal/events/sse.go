package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel for the SSE
// handlers' select loops. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return SubscribeToChannelFunc[T](bus, ch, nil)
}

// SubscribeToChannelFunc is SubscribeToChannel with a filter; events for
// which keep returns false are not forwarded. A nil keep forwards all.
func SubscribeToChannelFunc[T Event](bus *Bus, ch chan<- any, keep func(T) bool) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		if keep != nil && !keep(e) {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
}
