// Package pd implements the Peripheral Device role: the collapsed C7
// phy/command-dispatch state machine, the secure-channel responder
// half of the handshake, the event queue (C2), and the tick driver.
// It mirrors the teacher's cs104 Config/Context conventions on the PD
// side of the wire, generalized from a single IEC-104 endpoint to this
// protocol's command/reply/event shape.
package pd

import (
	"errors"
	"time"

	"github.com/go-osdp/osdp/channel"
	"github.com/go-osdp/osdp/msg"
)

// DefaultQueueSize is the event queue's default depth.
const DefaultQueueSize = 16

// DefaultRespTimeout bounds how long a partially-received frame may sit
// in the receive buffer before this PD gives up and resyncs (spec.md
// §5).
const DefaultRespTimeout = 200 * time.Millisecond

// DefaultBaud is the communication speed Config.Baud defaults to.
const DefaultBaud = 9600

// Identity is this PD's REPLY_PDID content (spec.md §4.2).
type Identity struct {
	VendorCode uint32 // low 24 bits significant
	ModelNo    uint8
	Version    uint8
	Serial     uint32
	Firmware   uint32 // low 24 bits significant
}

// Config is validated once by Setup, mirroring the teacher's
// cs104.Config/Valid()/DefaultConfig() shape.
type Config struct {
	Address  uint8
	Channel  channel.Channel
	Identity Identity
	// CUID is this PD's secure-channel client UID, echoed back in the
	// CCRYPT reply (spec.md §6). Simulated devices may leave it zero.
	CUID [8]byte

	Capabilities []msg.Capability

	// SCBK pins this PD's installed key. Nil leaves the PD in install
	// mode: CHLNG/SCRYPT only succeed against the well-known SCBK-D
	// default key until a CMD_KEYSET installs a real one (spec.md §6).
	SCBK *[16]byte

	// Baud is the initial communication speed; COMSET may change it at
	// runtime (spec.md §4.6).
	Baud uint32

	QueueSize   int
	RespTimeout time.Duration
}

// DefaultConfig returns the protocol's documented timing defaults with
// no identity, capabilities, or channel set; callers fill those in
// before Setup.
func DefaultConfig() Config {
	return Config{
		Baud:        DefaultBaud,
		QueueSize:   DefaultQueueSize,
		RespTimeout: DefaultRespTimeout,
	}
}

var (
	ErrNilChannel   = errors.New("pd: no channel configured")
	ErrBadAddress   = errors.New("pd: address must be 0-0x7F")
	ErrBadQueueSize = errors.New("pd: queue size must be positive")
)

// Valid reports whether c is well-formed.
func (c Config) Valid() error {
	if c.Channel == nil {
		return ErrNilChannel
	}
	if c.Address > 0x7F {
		return ErrBadAddress
	}
	if c.QueueSize <= 0 {
		return ErrBadQueueSize
	}
	return nil
}
