package oath

import (
	"errors"
	"fmt"

	"github.com/ebfe/scard"
)

// PCSC opens YubiKeys through the platform smart card service. The scard
// context is established lazily and re-established after service restarts,
// so a daemon can outlive pcscd.
type PCSC struct {
	ctx *scard.Context
}

// NewPCSC returns an Opener backed by the platform PC/SC service.
func NewPCSC() *PCSC { return &PCSC{} }

// Open connects to the first reader whose name looks like a YubiKey.
// Returns ErrNoDevice when readers exist but none is a YubiKey; PC/SC
// errors (no readers, service down) pass through for classification.
func (p *PCSC) Open() (Card, string, error) {
	ctx, err := p.context()
	if err != nil {
		return nil, "", err
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		p.invalidate()
		return nil, "", fmt.Errorf("list readers: %w", err)
	}

	for _, reader := range readers {
		if !IsYubiKeyReader(reader) {
			continue
		}
		card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
		if err != nil {
			// Reader present but card gone or claimed; try the next.
			continue
		}
		return &pcscCard{card: card}, reader, nil
	}
	return nil, "", ErrNoDevice
}

// Close releases the scard context.
func (p *PCSC) Close() error {
	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Release()
	p.ctx = nil
	return err
}

func (p *PCSC) context() (*scard.Context, error) {
	if p.ctx != nil {
		if ok, err := p.ctx.IsValid(); err == nil && ok {
			return p.ctx, nil
		}
		p.invalidate()
	}
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish context: %w", err)
	}
	p.ctx = ctx
	return ctx, nil
}

func (p *PCSC) invalidate() {
	if p.ctx != nil {
		_ = p.ctx.Release()
		p.ctx = nil
	}
}

type pcscCard struct {
	card *scard.Card
}

func (c *pcscCard) Transmit(apdu []byte) ([]byte, error) {
	return c.card.Transmit(apdu)
}

func (c *pcscCard) Close() error {
	return c.card.Disconnect(scard.LeaveCard)
}

// IsDeviceGone reports whether err is a PC/SC condition meaning the device
// (or the smart card service itself) is unreachable, as opposed to a
// protocol failure on a present card.
func IsDeviceGone(err error) bool {
	if errors.Is(err, ErrNoDevice) {
		return true
	}
	var sce scard.Error
	if !errors.As(err, &sce) {
		return false
	}
	switch sce {
	case scard.ErrNoReadersAvailable,
		scard.ErrUnknownReader,
		scard.ErrReaderUnavailable,
		scard.ErrNoSmartcard,
		scard.ErrRemovedCard,
		scard.ErrResetCard,
		scard.ErrUnpoweredCard,
		scard.ErrUnresponsiveCard,
		scard.ErrNoService,
		scard.ErrServiceStopped,
		scard.ErrInvalidHandle:
		return true
	}
	return false
}
