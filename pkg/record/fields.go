package record

import (
	"math"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
)

// Fields exports the record as a flat name -> value mapping.
func Fields(rec RecordEnum) map[string]any {
	hd := rec.Header()
	out := map[string]any{
		"length":        hd.Length,
		"rtype":         uint8(hd.RType),
		"instrument_id": hd.InstrumentID,
		"ts_event":      hd.TsEvent,
	}
	switch m := rec.(type) {
	case Mbp1Msg:
		quoteFields(out, m)
	case TbboMsg:
		quoteFields(out, Mbp1Msg(m))
	case TradeMsg:
		out["price"] = m.Px
		out["size"] = m.Sz
		out["action"] = m.Action.String()
		out["side"] = m.Side.String()
		out["depth"] = m.Depth
		out["flags"] = m.Flags
		out["ts_recv"] = m.TsRecv
		out["ts_in_delta"] = m.TsInDelta
		out["sequence"] = m.Sequence
	case BboMsg:
		out["price"] = m.Px
		out["size"] = m.Sz
		out["side"] = m.Side.String()
		out["flags"] = m.Flags
		out["ts_recv"] = m.TsRecv
		out["sequence"] = m.Sequence
		levelFields(out, m.Levels[0])
	case OhlcvMsg:
		out["open"] = m.Open
		out["high"] = m.High
		out["low"] = m.Low
		out["close"] = m.Close
		out["volume"] = m.Volume
	}
	return out
}

func quoteFields(out map[string]any, m Mbp1Msg) {
	out["price"] = m.Px
	out["size"] = m.Sz
	out["action"] = m.Action.String()
	out["side"] = m.Side.String()
	out["depth"] = m.Depth
	out["flags"] = m.Flags
	out["ts_recv"] = m.TsRecv
	out["ts_in_delta"] = m.TsInDelta
	out["sequence"] = m.Sequence
	levelFields(out, m.Levels[0])
}

func levelFields(out map[string]any, p BidAskPair) {
	out["bid_px"] = p.BidPx
	out["ask_px"] = p.AskPx
	out["bid_sz"] = p.BidSz
	out["ask_sz"] = p.AskSz
	out["bid_ct"] = p.BidCt
	out["ask_ct"] = p.AskCt
}

// FormatPrice renders a fixed-point price as a decimal string, e.g. 1500000000 -> "1.5".
func FormatPrice(px int64) string {
	neg := px < 0
	u := uint64(px)
	if neg {
		u = -u
	}
	whole := u / uint64(PriceScale)
	frac := u % uint64(PriceScale)

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(strconv.FormatUint(whole, 10))
	if frac != 0 {
		digits := strconv.FormatUint(frac, 10)
		sb.WriteByte('.')
		sb.WriteString(strings.Repeat("0", 9-len(digits)))
		sb.WriteString(strings.TrimRight(digits, "0"))
	}
	return sb.String()
}

// ParsePrice parses a decimal string into a fixed-point price. More than nine
// fractional digits is an error rather than a silent rounding.
func ParsePrice(s string) (int64, error) {
	str := strings.TrimSpace(s)
	neg := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(strings.TrimPrefix(str, "-"), "+")

	whole, frac, _ := strings.Cut(str, ".")
	if whole == "" && frac == "" {
		return 0, errors.Errorf("invalid price %q", s)
	}
	if len(frac) > 9 {
		return 0, errors.Errorf("price %q has more than 9 fractional digits", s)
	}

	var w, f uint64
	var err error
	if whole != "" {
		if w, err = strconv.ParseUint(whole, 10, 63); err != nil {
			return 0, errors.Wrapf(err, "invalid price %q", s)
		}
	}
	if frac != "" {
		if f, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 63); err != nil {
			return 0, errors.Wrapf(err, "invalid price %q", s)
		}
	}
	if w > uint64(math.MaxInt64/PriceScale) {
		return 0, errors.Errorf("price %q out of range", s)
	}

	px := int64(w)*PriceScale + int64(f)
	if neg {
		px = -px
	}
	return px, nil
}
