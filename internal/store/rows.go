package store

import (
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/yanun0323/errors"
)

// BarRow is one OHLCV bar.
type BarRow struct {
	ID           uint64 `gorm:"primaryKey"`
	InstrumentID uint32 `gorm:"index:idx_bar_instrument_ts,priority:1"`
	Ticker       string `gorm:"size:64"`
	TsEvent      int64  `gorm:"index:idx_bar_instrument_ts,priority:2"`
	Open         int64
	High         int64
	Low          int64
	Close        int64
	Volume       int64
}

func (BarRow) TableName() string { return "mbn_bars" }

// QuoteRow is one top-of-book record: Mbp1, Tbbo or Bbo, told apart by RType.
type QuoteRow struct {
	ID           uint64 `gorm:"primaryKey"`
	RType        uint8  `gorm:"index"`
	InstrumentID uint32 `gorm:"index:idx_quote_instrument_ts,priority:1"`
	Ticker       string `gorm:"size:64"`
	TsEvent      int64  `gorm:"index:idx_quote_instrument_ts,priority:2"`
	TsRecv       int64
	Price        int64
	Size         uint32
	Action       string `gorm:"size:1"`
	Side         string `gorm:"size:1"`
	Flags        uint8
	Sequence     uint32
	BidPx        int64
	AskPx        int64
	BidSz        uint32
	AskSz        uint32
	BidCt        uint32
	AskCt        uint32
}

func (QuoteRow) TableName() string { return "mbn_quotes" }

// TradeRow is one trade print.
type TradeRow struct {
	ID           uint64 `gorm:"primaryKey"`
	InstrumentID uint32 `gorm:"index:idx_trade_instrument_ts,priority:1"`
	Ticker       string `gorm:"size:64"`
	TsEvent      int64  `gorm:"index:idx_trade_instrument_ts,priority:2"`
	TsRecv       int64
	TsInDelta    int32
	Price        int64
	Size         uint32
	Side         string `gorm:"size:1"`
	Depth        uint8
	Flags        uint8
	Sequence     uint32
}

func (TradeRow) TableName() string { return "mbn_trades" }

// Models lists every row type for migration.
func Models() []any {
	return []any{&BarRow{}, &QuoteRow{}, &TradeRow{}}
}

// Batch groups rows by table.
type Batch struct {
	Bars   []BarRow
	Quotes []QuoteRow
	Trades []TradeRow
}

// Len returns the total number of rows.
func (b *Batch) Len() int {
	return len(b.Bars) + len(b.Quotes) + len(b.Trades)
}

// Reset empties the batch, keeping its capacity.
func (b *Batch) Reset() {
	b.Bars = b.Bars[:0]
	b.Quotes = b.Quotes[:0]
	b.Trades = b.Trades[:0]
}

// Add maps rec onto its row type. Tickers are resolved through symbols and
// left empty for unmapped instruments.
func (b *Batch) Add(rec record.RecordEnum, symbols metadata.SymbolMap) error {
	hd := rec.Header()
	ticker, _ := symbols.Ticker(hd.InstrumentID)

	switch m := rec.(type) {
	case record.OhlcvMsg:
		b.Bars = append(b.Bars, BarRow{
			InstrumentID: hd.InstrumentID,
			Ticker:       ticker,
			TsEvent:      int64(hd.TsEvent),
			Open:         m.Open,
			High:         m.High,
			Low:          m.Low,
			Close:        m.Close,
			Volume:       int64(m.Volume),
		})
	case record.Mbp1Msg:
		b.Quotes = append(b.Quotes, quoteRow(hd, ticker, m))
	case record.TbboMsg:
		b.Quotes = append(b.Quotes, quoteRow(hd, ticker, record.Mbp1Msg(m)))
	case record.BboMsg:
		level := m.Levels[0]
		b.Quotes = append(b.Quotes, QuoteRow{
			RType:        uint8(hd.RType),
			InstrumentID: hd.InstrumentID,
			Ticker:       ticker,
			TsEvent:      int64(hd.TsEvent),
			TsRecv:       int64(m.TsRecv),
			Price:        m.Px,
			Size:         m.Sz,
			Side:         m.Side.String(),
			Flags:        m.Flags,
			Sequence:     m.Sequence,
			BidPx:        level.BidPx,
			AskPx:        level.AskPx,
			BidSz:        level.BidSz,
			AskSz:        level.AskSz,
			BidCt:        level.BidCt,
			AskCt:        level.AskCt,
		})
	case record.TradeMsg:
		b.Trades = append(b.Trades, TradeRow{
			InstrumentID: hd.InstrumentID,
			Ticker:       ticker,
			TsEvent:      int64(hd.TsEvent),
			TsRecv:       int64(m.TsRecv),
			TsInDelta:    m.TsInDelta,
			Price:        m.Px,
			Size:         m.Sz,
			Side:         m.Side.String(),
			Depth:        m.Depth,
			Flags:        m.Flags,
			Sequence:     m.Sequence,
		})
	default:
		return errors.Errorf("no row mapping for rtype %s", rec.RType())
	}
	return nil
}

func quoteRow(hd record.RecordHeader, ticker string, m record.Mbp1Msg) QuoteRow {
	level := m.Levels[0]
	return QuoteRow{
		RType:        uint8(hd.RType),
		InstrumentID: hd.InstrumentID,
		Ticker:       ticker,
		TsEvent:      int64(hd.TsEvent),
		TsRecv:       int64(m.TsRecv),
		Price:        m.Px,
		Size:         m.Sz,
		Action:       m.Action.String(),
		Side:         m.Side.String(),
		Flags:        m.Flags,
		Sequence:     m.Sequence,
		BidPx:        level.BidPx,
		AskPx:        level.AskPx,
		BidSz:        level.BidSz,
		AskSz:        level.AskSz,
		BidCt:        level.BidCt,
		AskCt:        level.AskCt,
	}
}
