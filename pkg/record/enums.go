package record

import (
	"fmt"

	"github.com/yanun0323/errors"
)

// RType is the one-byte discriminant identifying a record's concrete layout.
type RType uint8

const (
	RTypeMbp1   RType = 0x01
	RTypeOhlcv  RType = 0x02
	RTypeTrades RType = 0x03
	RTypeTbbo   RType = 0x04
	RTypeBbo    RType = 0x05
)

// String returns the canonical name of the record type.
func (t RType) String() string {
	switch t {
	case RTypeMbp1:
		return "mbp-1"
	case RTypeOhlcv:
		return "ohlcv"
	case RTypeTrades:
		return "trades"
	case RTypeTbbo:
		return "tbbo"
	case RTypeBbo:
		return "bbo"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// ParseRType parses the canonical record type name.
func ParseRType(s string) (RType, error) {
	switch s {
	case "mbp-1":
		return RTypeMbp1, nil
	case "ohlcv":
		return RTypeOhlcv, nil
	case "trades":
		return RTypeTrades, nil
	case "tbbo":
		return RTypeTbbo, nil
	case "bbo":
		return RTypeBbo, nil
	default:
		return 0, errors.Errorf("invalid rtype: %s", s)
	}
}

// Schema describes the record stream stored in a container.
type Schema uint8

const (
	SchemaMbp1    Schema = 1
	SchemaOhlcv1S Schema = 2
	SchemaOhlcv1M Schema = 3
	SchemaOhlcv1H Schema = 4
	SchemaOhlcv1D Schema = 5
	SchemaTrades  Schema = 6
	SchemaTbbo    Schema = 7
	SchemaBbo1S   Schema = 8
	SchemaBbo1M   Schema = 9
)

var schemaNames = map[Schema]string{
	SchemaMbp1:    "mbp-1",
	SchemaOhlcv1S: "ohlcv-1s",
	SchemaOhlcv1M: "ohlcv-1m",
	SchemaOhlcv1H: "ohlcv-1h",
	SchemaOhlcv1D: "ohlcv-1d",
	SchemaTrades:  "trades",
	SchemaTbbo:    "tbbo",
	SchemaBbo1S:   "bbo-1s",
	SchemaBbo1M:   "bbo-1m",
}

// Valid reports whether s is a known schema.
func (s Schema) Valid() bool {
	_, ok := schemaNames[s]
	return ok
}

func (s Schema) String() string {
	if name, ok := schemaNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// RType returns the record type carried by a stream of this schema.
func (s Schema) RType() RType {
	switch s {
	case SchemaMbp1:
		return RTypeMbp1
	case SchemaOhlcv1S, SchemaOhlcv1M, SchemaOhlcv1H, SchemaOhlcv1D:
		return RTypeOhlcv
	case SchemaTrades:
		return RTypeTrades
	case SchemaTbbo:
		return RTypeTbbo
	case SchemaBbo1S, SchemaBbo1M:
		return RTypeBbo
	default:
		return 0
	}
}

// ParseSchema parses the canonical schema name.
func ParseSchema(name string) (Schema, error) {
	for s, n := range schemaNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown schema: %s", name)
}

// Side is the side of the book an event applies to.
type Side byte

const (
	SideAsk  Side = 'A'
	SideBid  Side = 'B'
	SideNone Side = 'N'
)

func (s Side) String() string {
	return string(rune(s))
}

// Action is the book event carried by a quote or trade record.
type Action byte

const (
	ActionModify Action = 'M'
	ActionTrade  Action = 'T'
	ActionFill   Action = 'F'
	ActionCancel Action = 'C'
	ActionAdd    Action = 'A'
	ActionClear  Action = 'R'
)

func (a Action) String() string {
	return string(rune(a))
}

// Record flag bits.
const (
	// FlagLast marks the last message in the venue packet for an instrument.
	FlagLast uint8 = 1 << 7
	// FlagTob marks a top-of-book message.
	FlagTob uint8 = 1 << 6
	// FlagSnapshot marks a message sourced from a replay.
	FlagSnapshot uint8 = 1 << 5
	// FlagMbp marks an aggregated price level message.
	FlagMbp uint8 = 1 << 4
	// FlagBadTsRecv marks an inaccurate ts_recv.
	FlagBadTsRecv uint8 = 1 << 3
	// FlagMaybeBadBook marks an unrecoverable gap in the channel.
	FlagMaybeBadBook uint8 = 1 << 2
)
