package record

import (
	"encoding/binary"
)

// Record is the capability set shared by every record variant, owned or borrowed.
type Record interface {
	Header() RecordHeader
	RType() RType
	// Size is the encoded byte size of the concrete record type.
	Size() int
	Price() int64
	Timestamp() uint64
	// AppendBytes appends the wire representation of the record to dst.
	AppendBytes(dst []byte) []byte
}

// RecordEnum is an owned record of one of the supported variants.
// It is implemented by Mbp1Msg, TbboMsg, TradeMsg, BboMsg and OhlcvMsg only.
type RecordEnum interface {
	Record
	recordEnum()
}

const (
	bidAskPairSize = 32

	Mbp1Size  = 80
	TbboSize  = Mbp1Size
	TradeSize = 48
	BboSize   = 80
	OhlcvSize = 56
)

// BidAskPair is one book level.
type BidAskPair struct {
	BidPx int64
	AskPx int64
	BidSz uint32
	AskSz uint32
	BidCt uint32
	AskCt uint32
}

func putBidAskPair(dst []byte, p BidAskPair) {
	_ = dst[bidAskPairSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(p.BidPx))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(p.AskPx))
	binary.LittleEndian.PutUint32(dst[16:20], p.BidSz)
	binary.LittleEndian.PutUint32(dst[20:24], p.AskSz)
	binary.LittleEndian.PutUint32(dst[24:28], p.BidCt)
	binary.LittleEndian.PutUint32(dst[28:32], p.AskCt)
}

func decodeBidAskPair(src []byte) BidAskPair {
	_ = src[bidAskPairSize-1]
	return BidAskPair{
		BidPx: int64(binary.LittleEndian.Uint64(src[0:8])),
		AskPx: int64(binary.LittleEndian.Uint64(src[8:16])),
		BidSz: binary.LittleEndian.Uint32(src[16:20]),
		AskSz: binary.LittleEndian.Uint32(src[20:24]),
		BidCt: binary.LittleEndian.Uint32(src[24:28]),
		AskCt: binary.LittleEndian.Uint32(src[28:32]),
	}
}

// Mbp1Msg is a top-of-book update: one book event plus the resulting best level.
type Mbp1Msg struct {
	Hd        RecordHeader
	Px        int64
	Sz        uint32
	Action    Action
	Side      Side
	Depth     uint8
	Flags     uint8
	TsRecv    uint64
	TsInDelta int32
	Sequence  uint32
	Levels    [1]BidAskPair
}

func (m Mbp1Msg) Header() RecordHeader { return m.Hd }
func (Mbp1Msg) RType() RType           { return RTypeMbp1 }
func (Mbp1Msg) Size() int              { return Mbp1Size }
func (m Mbp1Msg) Price() int64         { return m.Px }
func (m Mbp1Msg) Timestamp() uint64    { return m.TsRecv }
func (Mbp1Msg) recordEnum()            {}

func (m Mbp1Msg) AppendBytes(dst []byte) []byte {
	dst, b := grow(dst, Mbp1Size)
	putMbp1(b, m)
	return dst
}

// putMbp1 writes the layout shared by mbp-1 and tbbo records.
func putMbp1(dst []byte, m Mbp1Msg) {
	_ = dst[Mbp1Size-1]
	putHeader(dst, m.Hd)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(m.Px))
	binary.LittleEndian.PutUint32(dst[24:28], m.Sz)
	dst[28] = byte(m.Action)
	dst[29] = byte(m.Side)
	dst[30] = m.Depth
	dst[31] = m.Flags
	binary.LittleEndian.PutUint64(dst[32:40], m.TsRecv)
	binary.LittleEndian.PutUint32(dst[40:44], uint32(m.TsInDelta))
	binary.LittleEndian.PutUint32(dst[44:48], m.Sequence)
	putBidAskPair(dst[48:80], m.Levels[0])
}

func decodeMbp1(src []byte) Mbp1Msg {
	_ = src[Mbp1Size-1]
	return Mbp1Msg{
		Hd:        decodeHeader(src),
		Px:        int64(binary.LittleEndian.Uint64(src[16:24])),
		Sz:        binary.LittleEndian.Uint32(src[24:28]),
		Action:    Action(src[28]),
		Side:      Side(src[29]),
		Depth:     src[30],
		Flags:     src[31],
		TsRecv:    binary.LittleEndian.Uint64(src[32:40]),
		TsInDelta: int32(binary.LittleEndian.Uint32(src[40:44])),
		Sequence:  binary.LittleEndian.Uint32(src[44:48]),
		Levels:    [1]BidAskPair{decodeBidAskPair(src[48:80])},
	}
}

// TbboMsg is a trade with the best bid and offer immediately before it.
// It shares the physical layout of Mbp1Msg under its own rtype.
type TbboMsg Mbp1Msg

func (m TbboMsg) Header() RecordHeader { return m.Hd }
func (TbboMsg) RType() RType           { return RTypeTbbo }
func (TbboMsg) Size() int              { return TbboSize }
func (m TbboMsg) Price() int64         { return m.Px }
func (m TbboMsg) Timestamp() uint64    { return m.TsRecv }
func (TbboMsg) recordEnum()            {}

func (m TbboMsg) AppendBytes(dst []byte) []byte {
	dst, b := grow(dst, TbboSize)
	putMbp1(b, Mbp1Msg(m))
	return dst
}

// TradeMsg is a single trade print.
type TradeMsg struct {
	Hd        RecordHeader
	Px        int64
	Sz        uint32
	Action    Action
	Side      Side
	Depth     uint8
	Flags     uint8
	TsRecv    uint64
	TsInDelta int32
	Sequence  uint32
}

func (m TradeMsg) Header() RecordHeader { return m.Hd }
func (TradeMsg) RType() RType           { return RTypeTrades }
func (TradeMsg) Size() int              { return TradeSize }
func (m TradeMsg) Price() int64         { return m.Px }
func (m TradeMsg) Timestamp() uint64    { return m.TsRecv }
func (TradeMsg) recordEnum()            {}

func (m TradeMsg) AppendBytes(dst []byte) []byte {
	dst, b := grow(dst, TradeSize)
	putHeader(b, m.Hd)
	binary.LittleEndian.PutUint64(b[16:24], uint64(m.Px))
	binary.LittleEndian.PutUint32(b[24:28], m.Sz)
	b[28] = byte(m.Action)
	b[29] = byte(m.Side)
	b[30] = m.Depth
	b[31] = m.Flags
	binary.LittleEndian.PutUint64(b[32:40], m.TsRecv)
	binary.LittleEndian.PutUint32(b[40:44], uint32(m.TsInDelta))
	binary.LittleEndian.PutUint32(b[44:48], m.Sequence)
	return dst
}

func decodeTrade(src []byte) TradeMsg {
	_ = src[TradeSize-1]
	return TradeMsg{
		Hd:        decodeHeader(src),
		Px:        int64(binary.LittleEndian.Uint64(src[16:24])),
		Sz:        binary.LittleEndian.Uint32(src[24:28]),
		Action:    Action(src[28]),
		Side:      Side(src[29]),
		Depth:     src[30],
		Flags:     src[31],
		TsRecv:    binary.LittleEndian.Uint64(src[32:40]),
		TsInDelta: int32(binary.LittleEndian.Uint32(src[40:44])),
		Sequence:  binary.LittleEndian.Uint32(src[44:48]),
	}
}

// BboMsg is a sampled best bid and offer.
type BboMsg struct {
	Hd       RecordHeader
	Px       int64
	Sz       uint32
	Side     Side
	Flags    uint8
	TsRecv   uint64
	Sequence uint32
	Levels   [1]BidAskPair
}

func (m BboMsg) Header() RecordHeader { return m.Hd }
func (BboMsg) RType() RType           { return RTypeBbo }
func (BboMsg) Size() int              { return BboSize }
func (m BboMsg) Price() int64         { return m.Px }
func (m BboMsg) Timestamp() uint64    { return m.TsRecv }
func (BboMsg) recordEnum()            {}

func (m BboMsg) AppendBytes(dst []byte) []byte {
	dst, b := grow(dst, BboSize)
	putHeader(b, m.Hd)
	binary.LittleEndian.PutUint64(b[16:24], uint64(m.Px))
	binary.LittleEndian.PutUint32(b[24:28], m.Sz)
	b[28] = byte(m.Side)
	b[29] = m.Flags
	binary.LittleEndian.PutUint64(b[32:40], m.TsRecv)
	binary.LittleEndian.PutUint32(b[40:44], m.Sequence)
	putBidAskPair(b[48:80], m.Levels[0])
	return dst
}

func decodeBbo(src []byte) BboMsg {
	_ = src[BboSize-1]
	return BboMsg{
		Hd:       decodeHeader(src),
		Px:       int64(binary.LittleEndian.Uint64(src[16:24])),
		Sz:       binary.LittleEndian.Uint32(src[24:28]),
		Side:     Side(src[28]),
		Flags:    src[29],
		TsRecv:   binary.LittleEndian.Uint64(src[32:40]),
		Sequence: binary.LittleEndian.Uint32(src[40:44]),
		Levels:   [1]BidAskPair{decodeBidAskPair(src[48:80])},
	}
}

// OhlcvMsg is an open/high/low/close/volume bar.
type OhlcvMsg struct {
	Hd     RecordHeader
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume uint64
}

func (m OhlcvMsg) Header() RecordHeader { return m.Hd }
func (OhlcvMsg) RType() RType           { return RTypeOhlcv }
func (OhlcvMsg) Size() int              { return OhlcvSize }
func (m OhlcvMsg) Price() int64         { return m.Close }
func (m OhlcvMsg) Timestamp() uint64    { return m.Hd.TsEvent }
func (OhlcvMsg) recordEnum()            {}

func (m OhlcvMsg) AppendBytes(dst []byte) []byte {
	dst, b := grow(dst, OhlcvSize)
	putHeader(b, m.Hd)
	binary.LittleEndian.PutUint64(b[16:24], uint64(m.Open))
	binary.LittleEndian.PutUint64(b[24:32], uint64(m.High))
	binary.LittleEndian.PutUint64(b[32:40], uint64(m.Low))
	binary.LittleEndian.PutUint64(b[40:48], uint64(m.Close))
	binary.LittleEndian.PutUint64(b[48:56], m.Volume)
	return dst
}

func decodeOhlcv(src []byte) OhlcvMsg {
	_ = src[OhlcvSize-1]
	return OhlcvMsg{
		Hd:     decodeHeader(src),
		Open:   int64(binary.LittleEndian.Uint64(src[16:24])),
		High:   int64(binary.LittleEndian.Uint64(src[24:32])),
		Low:    int64(binary.LittleEndian.Uint64(src[32:40])),
		Close:  int64(binary.LittleEndian.Uint64(src[40:48])),
		Volume: binary.LittleEndian.Uint64(src[48:56]),
	}
}
