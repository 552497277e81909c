package mdg

import (
	"time"

	"mbn/internal/schema"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// RawTick is a venue-agnostic market data input keyed by ticker.
type RawTick struct {
	Ticker   string
	RType    record.RType
	Action   record.Action
	Side     record.Side
	Flags    uint8
	Price    int64
	Size     uint32
	BidPrice int64
	BidSize  uint32
	AskPrice int64
	AskSize  uint32
	Open     int64
	High     int64
	Low      int64
	Volume   uint64
	Sequence uint32
	TsEvent  uint64
	TsRecv   uint64
}

// Normalizer maps raw ticks to mbn records.
type Normalizer struct {
	reg *schema.Registry
}

// NewNormalizer creates a normalizer for a registry.
func NewNormalizer(reg *schema.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Normalize resolves the ticker and builds the record variant named by tick.RType.
func (n *Normalizer) Normalize(tick RawTick) (record.RecordEnum, error) {
	if n.reg == nil {
		return nil, errors.New("registry is nil")
	}
	id, ok := n.reg.InstrumentIDByTicker(tick.Ticker)
	if !ok {
		return nil, errors.Errorf("instrument not found: %s", tick.Ticker)
	}
	if tick.TsRecv == 0 {
		tick.TsRecv = uint64(time.Now().UTC().UnixNano())
	}
	if tick.TsEvent == 0 {
		tick.TsEvent = tick.TsRecv
	}
	delta := int32(int64(tick.TsRecv) - int64(tick.TsEvent))

	level := [1]record.BidAskPair{{
		BidPx: tick.BidPrice,
		AskPx: tick.AskPrice,
		BidSz: tick.BidSize,
		AskSz: tick.AskSize,
		BidCt: 1,
		AskCt: 1,
	}}

	switch tick.RType {
	case record.RTypeMbp1, record.RTypeTbbo:
		msg := record.Mbp1Msg{
			Hd:        record.NewHeader[record.Mbp1Msg](id, tick.TsEvent),
			Px:        tick.Price,
			Sz:        tick.Size,
			Action:    tick.Action,
			Side:      tick.Side,
			Flags:     tick.Flags,
			TsRecv:    tick.TsRecv,
			TsInDelta: delta,
			Sequence:  tick.Sequence,
			Levels:    level,
		}
		if tick.RType == record.RTypeTbbo {
			tbbo := record.TbboMsg(msg)
			tbbo.Hd = record.NewHeader[record.TbboMsg](id, tick.TsEvent)
			return tbbo, nil
		}
		return msg, nil
	case record.RTypeTrades:
		return record.TradeMsg{
			Hd:        record.NewHeader[record.TradeMsg](id, tick.TsEvent),
			Px:        tick.Price,
			Sz:        tick.Size,
			Action:    record.ActionTrade,
			Side:      tick.Side,
			Flags:     tick.Flags,
			TsRecv:    tick.TsRecv,
			TsInDelta: delta,
			Sequence:  tick.Sequence,
		}, nil
	case record.RTypeBbo:
		return record.BboMsg{
			Hd:       record.NewHeader[record.BboMsg](id, tick.TsEvent),
			Px:       tick.Price,
			Sz:       tick.Size,
			Side:     tick.Side,
			Flags:    tick.Flags,
			TsRecv:   tick.TsRecv,
			Sequence: tick.Sequence,
			Levels:   level,
		}, nil
	case record.RTypeOhlcv:
		return record.OhlcvMsg{
			Hd:     record.NewHeader[record.OhlcvMsg](id, tick.TsEvent),
			Open:   tick.Open,
			High:   tick.High,
			Low:    tick.Low,
			Close:  tick.Price,
			Volume: tick.Volume,
		}, nil
	default:
		return nil, errors.Errorf("unsupported rtype: %s", tick.RType)
	}
}
