// Package cp implements the Control Panel role: the phy state machine
// (C5), the session state machine (C6) including the secure-channel
// handshake, the per-PD command queue (C1), and the tick driver (C8).
// It is a function-for-function port of the teacher's cs104
// Config/Context conventions, generalized from an IEC-104 connection to
// an OSDP-like multi-drop PD list.
package cp

import (
	"errors"
	"time"

	"github.com/go-osdp/osdp/channel"
)

// Queue depth per PD (spec.md §4.1, "documented default: 16 per PD").
const DefaultQueueSize = 16

// Protocol timing defaults (spec.md §5, "Cancellation and timeouts").
const (
	DefaultRespTimeout      = 200 * time.Millisecond
	DefaultCmdRetryWait     = 300 * time.Millisecond
	DefaultOfflineRetryWait = 5 * time.Second
	DefaultSCRetryInterval  = 30 * time.Second
	DefaultPollRateHz       = 20 // => 50ms poll interval, spec.md §4.5's "1000 / configured poll rate"
)

// PDConfig is one entry of the address list (spec.md §6, "Address list
// configuration").
type PDConfig struct {
	Address uint8
	Channel channel.Channel
	// UseSecureChannel is the CP operator's intent to run SC with this
	// PD; it only takes effect if the PD's capabilities report
	// CapCommunicationSecurity.
	UseSecureChannel bool
	// SCBK pins a previously-issued per-PD key instead of deriving one
	// from MasterKey at SC_INIT. Nil uses the derived/default key.
	SCBK *[16]byte
}

// Config is validated once by Setup, mirroring the teacher's
// cs104.Config/Valid()/DefaultConfig() shape.
type Config struct {
	PDs []PDConfig
	// MasterKey is required when any PDConfig sets UseSecureChannel.
	MasterKey *[16]byte

	QueueSize        int
	RespTimeout      time.Duration
	CmdRetryWait     time.Duration
	OfflineRetryWait time.Duration
	SCRetryInterval  time.Duration
	PollRateHz       int
}

// DefaultConfig returns the protocol's documented timing defaults with
// an empty PD list; callers append PDConfig entries before Setup.
func DefaultConfig() Config {
	return Config{
		QueueSize:        DefaultQueueSize,
		RespTimeout:      DefaultRespTimeout,
		CmdRetryWait:     DefaultCmdRetryWait,
		OfflineRetryWait: DefaultOfflineRetryWait,
		SCRetryInterval:  DefaultSCRetryInterval,
		PollRateHz:       DefaultPollRateHz,
	}
}

var (
	ErrNoPDs            = errors.New("cp: config has no PDs")
	ErrDuplicateAddr    = errors.New("cp: duplicate PD address")
	ErrNilChannel       = errors.New("cp: PD has no channel")
	ErrMissingMasterKey = errors.New("cp: secure PD configured without a master key")
	ErrBadQueueSize     = errors.New("cp: queue size must be positive")
	ErrBadPollRate      = errors.New("cp: poll rate must be positive")
)

// Valid reports whether c is well-formed (spec.md §6, setup fails
// rather than proceeding on bad config).
func (c Config) Valid() error {
	if len(c.PDs) == 0 {
		return ErrNoPDs
	}
	if c.QueueSize <= 0 {
		return ErrBadQueueSize
	}
	if c.PollRateHz <= 0 {
		return ErrBadPollRate
	}
	seen := make(map[uint8]bool, len(c.PDs))
	needsKey := false
	for _, pd := range c.PDs {
		if pd.Channel == nil {
			return ErrNilChannel
		}
		if seen[pd.Address] {
			return ErrDuplicateAddr
		}
		seen[pd.Address] = true
		if pd.UseSecureChannel {
			needsKey = true
		}
	}
	if needsKey && c.MasterKey == nil {
		return ErrMissingMasterKey
	}
	return nil
}

// PollInterval is the derived poll cadence (spec.md §4.5,
// OSDP_PD_POLL_TIMEOUT_MS = 1000 / configured poll rate).
func (c Config) PollInterval() time.Duration {
	return time.Second / time.Duration(c.PollRateHz)
}
