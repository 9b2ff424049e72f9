package cp

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/osdplog"
	"github.com/go-osdp/osdp/phy"
	"github.com/go-osdp/osdp/queue"
	"github.com/go-osdp/osdp/sc"
)

// KeyPressFunc is the notifier for CMD-side reader keypad events. It
// is carried on the PD reply stream (REPLY_KEYPPAD) but the events are
// modeled as a CP callback because a keypress has no queue semantics.
type KeyPressFunc func(address uint8, key byte)

// CardReadFunc is the notifier for card-read events (REPLY_RAW/REPLY_FMT).
type CardReadFunc func(address uint8, format msg.CardFormat, data []byte)

// pd is the per-PD runtime state: phy state (C5), session state (C6),
// SC substate, and the command queue (C1) (spec.md §3, Data model).
type pd struct {
	cfg PDConfig

	phy     phyState
	session sessionState

	queue *queue.Ring[msg.Command]

	// staged command currently in flight through the phy, separate
	// from the queue so a BUSY retry can resend without re-dequeuing
	// (spec.md §4.4, "Note on BUSY retry").
	awaitingResp bool
	stagedCmd    msg.Command

	sequence uint8
	rxBuf    []byte
	txBuf    []byte
	recvTmp  []byte

	tstamp    time.Time
	phyTstamp time.Time
	scTstamp  time.Time

	capabilities map[msg.CapabilityFunction]msg.Capability
	scCapable    bool

	crypto    sc.Crypto
	scActive  bool
	useSCBKD  bool
	scbkdDone bool
	cpRandom  [8]byte
	pdRandom  [8]byte
	pdCUID    [8]byte
	scbk      [16]byte

	log osdplog.Clog
}

func (p *pd) online() bool { return p.session == sessionOnline }

// Context is the CP role's top-level object (spec.md §3, "Context").
type Context struct {
	cfg Config
	pds []*pd

	current int

	onKeyPress KeyPressFunc
	onCardRead CardReadFunc

	log osdplog.Clog
}

// Setup validates cfg and builds a Context, one pd per configured PD
// address, each starting at phyIdle/sessionInit.
func Setup(cfg Config) (*Context, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	ctx := &Context{cfg: cfg, log: osdplog.NewLogger("cp")}
	for _, pc := range cfg.PDs {
		p := &pd{
			cfg:          pc,
			queue:        queue.New[msg.Command](cfg.QueueSize),
			rxBuf:        make([]byte, 0, phy.MaxFrameSize),
			txBuf:        make([]byte, phy.MaxFrameSize),
			recvTmp:      make([]byte, phy.MaxFrameSize),
			capabilities: make(map[msg.CapabilityFunction]msg.Capability),
			log:          osdplog.NewLogger("cp.pd"),
		}
		if pc.UseSecureChannel {
			p.crypto = &sc.AES128Crypto{}
		} else {
			p.crypto = sc.NullCrypto{}
		}
		ctx.pds = append(ctx.pds, p)
	}
	return ctx, nil
}

// SetCallbackKeyPress installs the keypress notifier.
func (c *Context) SetCallbackKeyPress(fn KeyPressFunc) { c.onKeyPress = fn }

// SetCallbackCardRead installs the card-read notifier.
func (c *Context) SetCallbackCardRead(fn CardReadFunc) { c.onCardRead = fn }

// SetLogProvider redirects this context's (and every PD's) log output.
func (c *Context) SetLogProvider(p osdplog.LogProvider) {
	c.log.SetProvider(p)
	for _, pd := range c.pds {
		pd.log.SetProvider(p)
	}
}

// PDOnline reports whether the PD at pdIndex has completed session
// setup and is currently exchanging POLLs. Used by operators deciding
// whether a SendCommand is likely to succeed, and by tests driving the
// tick loop to a known point.
func (c *Context) PDOnline(pdIndex int) bool {
	if pdIndex < 0 || pdIndex >= len(c.pds) {
		return false
	}
	return c.pds[pdIndex].online()
}

// PDSecureChannelActive reports whether the PD at pdIndex currently has
// an active secure channel (spec.md §6, operator-visible SC_ACTIVE bit).
func (c *Context) PDSecureChannelActive(pdIndex int) bool {
	if pdIndex < 0 || pdIndex >= len(c.pds) {
		return false
	}
	return c.pds[pdIndex].scActive
}

var (
	ErrUnknownPD      = errors.New("cp: no such PD index")
	ErrNotOnline      = errors.New("cp: PD is not online")
	ErrQueueFull      = errors.New("cp: command queue full")
	ErrNotAllOnline   = errors.New("cp: KEYSET requires every PD online and SC_ACTIVE")
	ErrBadAddrCount   = errors.New("cp: address list length does not match configured PD count")
	ErrUnknownCommand = errors.New("cp: command id is not one of the application commands send_command accepts")
)

// applicationCommand reports whether cmd is one of the six commands
// spec.md §6 says SendCommand accepts (OUTPUT/LED/BUZZER/TEXT/COMSET/
// KEYSET). The protocol-internal commands the session machine stages
// for itself (POLL/ID/CAP/CHLNG/SCRYPT) share the same msg.Command
// interface and queue but must never be reachable from the
// application side.
func applicationCommand(cmd msg.Command) bool {
	switch cmd.(type) {
	case msg.OutputCommand, msg.LedCommand, msg.BuzzerCommand, msg.TextCommand, msg.ComsetCommand, msg.KeysetCommand:
		return true
	default:
		return false
	}
}

// SendCommand enqueues cmd for PD pdIndex. KEYSET is broadcast:
// pdIndex is ignored and cmd is enqueued for every PD, each requiring
// ONLINE + SC_ACTIVE (spec.md §6, CP application interface).
func (c *Context) SendCommand(pdIndex int, cmd msg.Command) error {
	if !applicationCommand(cmd) {
		return ErrUnknownCommand
	}
	if _, ok := cmd.(msg.KeysetCommand); ok {
		for _, p := range c.pds {
			if !p.online() || !p.scActive {
				return ErrNotAllOnline
			}
		}
		for _, p := range c.pds {
			if err := p.queue.Enqueue(cmd); err != nil {
				return ErrQueueFull
			}
		}
		return nil
	}

	if pdIndex < 0 || pdIndex >= len(c.pds) {
		return ErrUnknownPD
	}
	p := c.pds[pdIndex]
	if !p.online() {
		return ErrNotOnline
	}
	if err := p.queue.Enqueue(cmd); err != nil {
		return ErrQueueFull
	}
	return nil
}

// ParseAddressList parses a comma/space-separated list of decimal PD
// addresses and checks its length against want (spec.md §6, "Address
// list configuration").
func ParseAddressList(s string, want int) ([]uint8, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	addrs := make([]uint8, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 0x7F {
			return nil, errors.New("cp: invalid PD address " + strconv.Quote(f))
		}
		addrs = append(addrs, uint8(n))
	}
	if len(addrs) != want {
		return nil, ErrBadAddrCount
	}
	return addrs, nil
}
