package mdg

import (
	"time"

	"mbn/internal/schema"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// Generator creates synthetic ticks, cycling over the registry instruments.
type Generator struct {
	instruments []schema.Instrument
	rtype       record.RType
	basePrice   int64
	baseSize    uint32
	spread      int64
	index       int
	seq         uint32
}

// NewGenerator creates a generator for all instruments in the registry.
func NewGenerator(reg *schema.Registry, rtype record.RType, basePrice int64, baseSize uint32, spread int64) (*Generator, error) {
	if reg == nil || reg.InstrumentCount() == 0 {
		return nil, errors.New("registry has no instruments")
	}
	if !record.Supported(rtype) {
		return nil, errors.Errorf("unsupported rtype: %s", rtype)
	}
	instruments := make([]schema.Instrument, 0, reg.InstrumentCount())
	for i := 0; i < reg.InstrumentCount(); i++ {
		inst, ok := reg.InstrumentAt(i)
		if !ok {
			continue
		}
		instruments = append(instruments, inst)
	}
	if baseSize == 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}
	return &Generator{
		instruments: instruments,
		rtype:       rtype,
		basePrice:   basePrice,
		baseSize:    baseSize,
		spread:      spread,
	}, nil
}

// Next creates the next raw tick in sequence. Prices oscillate around the
// base price in steps of the instrument tick size.
func (g *Generator) Next(now time.Time) RawTick {
	inst := g.instruments[g.index]
	g.index = (g.index + 1) % len(g.instruments)
	g.seq++

	tick := inst.TickSize
	if tick <= 0 {
		tick = 1
	}
	step := int64(g.seq%16) - 8
	price := g.basePrice + step*tick

	side := record.SideBid
	if g.seq%2 == 0 {
		side = record.SideAsk
	}
	ts := uint64(now.UnixNano())
	return RawTick{
		Ticker:   inst.Ticker,
		RType:    g.rtype,
		Action:   record.ActionModify,
		Side:     side,
		Flags:    record.FlagLast | record.FlagTob,
		Price:    price,
		Size:     g.baseSize,
		BidPrice: price - g.spread,
		BidSize:  g.baseSize,
		AskPrice: price + g.spread,
		AskSize:  g.baseSize,
		Open:     price - tick,
		High:     price + g.spread,
		Low:      price - g.spread,
		Volume:   uint64(g.baseSize) * uint64(g.seq),
		Sequence: g.seq,
		TsEvent:  ts,
		TsRecv:   ts,
	}
}

// NextRecord generates the next tick and normalizes it.
func (g *Generator) NextRecord(n *Normalizer, now time.Time) (record.RecordEnum, error) {
	return n.Normalize(g.Next(now))
}
