package pd

import (
	"time"

	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/osdplog"
	"github.com/go-osdp/osdp/phy"
	"github.com/go-osdp/osdp/queue"
	"github.com/go-osdp/osdp/sc"
)

// CommandCallback is the application hook for every command that
// changes this device's state. Returning a non-nil error NAKs the
// command with NakRecord, the same "application rejected it" path the
// reference firmware uses for its command_callback return value
// (spec.md §4.6).
type CommandCallback interface {
	OnOutput(cmd msg.OutputCommand) error
	OnLed(cmd msg.LedCommand) error
	OnBuzzer(cmd msg.BuzzerCommand) error
	OnText(cmd msg.TextCommand) error
	OnComset(cmd msg.ComsetCommand) error
	OnKeyset(cmd msg.KeysetCommand) error
}

type comsetParams struct {
	Address uint8
	Baud    uint32
}

// Context is the PD role's top-level object (spec.md §3, "Context").
type Context struct {
	cfg Config

	phy      phyState
	sequence uint8
	rxBuf    []byte
	recvTmp  []byte
	txBuf    []byte
	tstamp   time.Time

	currentBaud   uint32
	pendingComset *comsetParams

	tamper       bool
	power        bool
	readerTamper bool

	events *queue.Ring[Event]

	scCapable bool
	crypto    sc.Crypto
	scActive  bool
	useSCBKD  bool
	cpAuthOK  bool
	cpRandom  [8]byte
	pdRandom  [8]byte
	scbk      [16]byte

	callback CommandCallback

	log osdplog.Clog
}

// Setup validates cfg and builds a Context starting at phyIdle.
func Setup(cfg Config) (*Context, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	c := &Context{
		cfg:         cfg,
		currentBaud: cfg.Baud,
		events:      queue.New[Event](cfg.QueueSize),
		rxBuf:       make([]byte, 0, phy.MaxFrameSize),
		recvTmp:     make([]byte, phy.MaxFrameSize),
		txBuf:       make([]byte, phy.MaxFrameSize),
		log:         osdplog.NewLogger("pd"),
	}
	for _, cap := range cfg.Capabilities {
		if cap.Function == msg.CapCommunicationSecurity && cap.Compliance&0x01 != 0 {
			c.scCapable = true
		}
	}
	if c.scCapable {
		c.crypto = &sc.AES128Crypto{}
	} else {
		c.crypto = sc.NullCrypto{}
	}
	if cfg.SCBK != nil {
		c.scbk = *cfg.SCBK
		c.crypto.SetSCBK(c.scbk)
	}
	return c, nil
}

// SetCommandCallback installs the application's command hook.
func (c *Context) SetCommandCallback(cb CommandCallback) { c.callback = cb }

// SetLogProvider redirects this context's log output.
func (c *Context) SetLogProvider(p osdplog.LogProvider) { c.log.SetProvider(p) }

// SetLocalStatus sets the tamper/power bits the next LSTAT reply
// reports.
func (c *Context) SetLocalStatus(tamper, power bool) {
	c.tamper = tamper
	c.power = power
}

// SetReaderTamper sets the bit the next RSTAT reply reports.
func (c *Context) SetReaderTamper(tamper bool) { c.readerTamper = tamper }

// PushKeypadEvent queues a keypress for delivery on a future POLL
// reply (spec.md §4.6, REPLY_KEYPPAD).
func (c *Context) PushKeypadEvent(reader uint8, digits []byte) error {
	return c.events.Enqueue(Event{Kind: EventKeypad, Reader: reader, Digits: digits})
}

// PushCardEvent queues a card read for delivery on a future POLL reply
// (spec.md §4.6, REPLY_RAW/REPLY_FMT).
func (c *Context) PushCardEvent(reader uint8, format msg.CardFormat, data []byte) error {
	kind := EventCardRaw
	if format == msg.CardFormatASCII {
		kind = EventCardFmt
	}
	return c.events.Enqueue(Event{Kind: kind, Reader: reader, Format: format, Data: data})
}

// SecureChannelActive reports whether this PD currently has an active
// secure channel with its CP (spec.md §6, operator-visible SC_ACTIVE
// bit).
func (c *Context) SecureChannelActive() bool { return c.scActive }

// Address reports this PD's current address (subject to change by
// COMSET).
func (c *Context) Address() uint8 { return c.cfg.Address }

// Baud reports this PD's current communication speed (subject to
// change by COMSET).
func (c *Context) Baud() uint32 { return c.currentBaud }
