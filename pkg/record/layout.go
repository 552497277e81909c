package record

// layout describes the fixed physical shape of one record variant.
// Owned decoding and borrowed field access are both driven from this table.
type layout struct {
	size        int
	priceOffset int
	tsOffset    int
	decode      func(src []byte) RecordEnum
}

var layouts = [256]layout{
	RTypeMbp1: {
		size:        Mbp1Size,
		priceOffset: 16,
		tsOffset:    32,
		decode:      func(src []byte) RecordEnum { return decodeMbp1(src) },
	},
	RTypeTbbo: {
		size:        TbboSize,
		priceOffset: 16,
		tsOffset:    32,
		decode:      func(src []byte) RecordEnum { return TbboMsg(decodeMbp1(src)) },
	},
	RTypeTrades: {
		size:        TradeSize,
		priceOffset: 16,
		tsOffset:    32,
		decode:      func(src []byte) RecordEnum { return decodeTrade(src) },
	},
	RTypeBbo: {
		size:        BboSize,
		priceOffset: 16,
		tsOffset:    32,
		decode:      func(src []byte) RecordEnum { return decodeBbo(src) },
	},
	RTypeOhlcv: {
		size:        OhlcvSize,
		priceOffset: 40,
		tsOffset:    8,
		decode:      func(src []byte) RecordEnum { return decodeOhlcv(src) },
	},
}

func layoutOf(t RType) (*layout, bool) {
	l := &layouts[t]
	if l.size == 0 {
		return nil, false
	}
	return l, true
}

// Supported reports whether t maps to a record variant.
func Supported(t RType) bool {
	_, ok := layoutOf(t)
	return ok
}

// SizeOf returns the encoded size of the variant tagged t, or 0 when t is unsupported.
func SizeOf(t RType) int {
	if l, ok := layoutOf(t); ok {
		return l.size
	}
	return 0
}
