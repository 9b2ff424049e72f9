package pd

import "github.com/go-osdp/osdp/msg"

// EventKind tags which reply shape an Event translates to once it
// reaches the head of the queue (spec.md §3, "events: keypad data,
// card reads").
type EventKind uint8

const (
	EventKeypad EventKind = iota
	EventCardRaw
	EventCardFmt
)

// Event is one queued occurrence (C2) waiting to ride the next POLL
// reply.
type Event struct {
	Kind   EventKind
	Reader uint8
	Digits []byte         // EventKeypad
	Format msg.CardFormat // EventCardRaw
	Data   []byte         // EventCardRaw, EventCardFmt
}
