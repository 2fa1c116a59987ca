package card

import (
	"fmt"

	"github.com/ebfe/scard"
)

// SCardTransport implements Transport over the platform PC/SC service
// (pcscd on Linux, winscard on Windows, the built-in framework on macOS).
type SCardTransport struct {
	ctx *scard.Context
}

// NewSCardTransport establishes a PC/SC context.
func NewSCardTransport() (*SCardTransport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	return &SCardTransport{ctx: ctx}, nil
}

// Readers lists the names of all attached readers.
func (t *SCardTransport) Readers() ([]string, error) {
	readers, err := t.ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return readers, nil
}

// Connect opens an exclusive connection to the named reader's card.
// Exclusive share mode makes concurrent opens from other processes fail
// fast instead of hanging.
func (t *SCardTransport) Connect(reader string) (Conn, error) {
	c, err := t.ctx.Connect(reader, scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader %q: %w", reader, err)
	}
	return &scardConn{card: c}, nil
}

// Close releases the PC/SC context.
func (t *SCardTransport) Close() error {
	return t.ctx.Release()
}

// scardConn wraps one connected card.
type scardConn struct {
	card *scard.Card
}

// Transmit sends an APDU and splits the response into data and status word.
func (c *scardConn) Transmit(apdu []byte) ([]byte, byte, byte, error) {
	resp, err := c.card.Transmit(apdu)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("transmit failed: %w", err)
	}
	if len(resp) < 2 {
		return nil, 0, 0, fmt.Errorf("short response: %d bytes", len(resp))
	}
	n := len(resp)
	return resp[:n-2], resp[n-2], resp[n-1], nil
}

// Close disconnects, leaving the card state untouched so the installer can
// pick the card up where the probe left it.
func (c *scardConn) Close() error {
	return c.card.Disconnect(scard.LeaveCard)
}
