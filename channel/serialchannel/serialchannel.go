// Package serialchannel implements channel.Channel over a real RS-485
// serial port using tarm/serial, the library the example pack's own
// serial transport (CK6170 Leo485) is built on.
package serialchannel

import (
	"time"

	goserial "github.com/tarm/serial"
)

// pollTimeout is the tarm/serial ReadTimeout used to approximate the
// channel contract's non-blocking Recv: short enough that one call
// never stalls the tick driver past a PD's slice of the poll period.
const pollTimeout = 5 * time.Millisecond

// Channel wraps an open serial port.
type Channel struct {
	port *goserial.Port
}

// Config mirrors the fields of goserial.Config this engine cares
// about; the baud of an open Channel can be changed with Reopen.
type Config struct {
	Name string
	Baud int
}

// Open opens the named serial port at cfg.Baud, 8N1, matching the
// framing every OSDP transport in practice uses.
func Open(cfg Config) (*Channel, error) {
	port, err := goserial.OpenPort(&goserial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: pollTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Channel{port: port}, nil
}

func (c *Channel) Send(buf []byte) (int, error) { return c.port.Write(buf) }

func (c *Channel) Recv(buf []byte) (int, error) {
	n, err := c.port.Read(buf)
	if err != nil {
		// tarm/serial surfaces a read timeout as an error; the channel
		// contract treats "nothing available yet" as (0, nil).
		return 0, nil
	}
	return n, nil
}

func (c *Channel) Flush() error { return c.port.Flush() }

// Close releases the underlying port. Not part of channel.Channel
// (which has no teardown operation); callers that opened via this
// package close through it too.
func (c *Channel) Close() error { return c.port.Close() }

// Reopen closes and reopens the port with cfg, e.g. at a new baud
// rate. Nothing in this module calls it: pd.Context records a COMSET's
// new baud in its own state and does not reopen the port.
func (c *Channel) Reopen(cfg Config) error {
	if err := c.port.Close(); err != nil {
		return err
	}
	reopened, err := Open(cfg)
	if err != nil {
		return err
	}
	*c = *reopened
	return nil
}
