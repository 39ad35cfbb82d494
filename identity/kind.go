package identity

import "fmt"

// Kind tags the variant held by a Key. The set is closed: every column type the
// schema model can produce maps to exactly one Kind.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindString
	KindBytes
	KindBool
	KindDecimal
	KindTime
	KindDuration
	KindUUID
	KindFloat
	KindComposite

	kindCount
)

var kindNames = [kindCount]string{
	KindNull:      "null",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUint8:     "uint8",
	KindUint16:    "uint16",
	KindUint32:    "uint32",
	KindUint64:    "uint64",
	KindString:    "string",
	KindBytes:     "bytes",
	KindBool:      "bool",
	KindDecimal:   "decimal",
	KindTime:      "time",
	KindDuration:  "duration",
	KindUUID:      "uuid",
	KindFloat:     "float",
	KindComposite: "composite",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("invalid kind %d", uint8(k))
}

// hasText reports whether the variant keeps its payload in the string half of a Key.
func (k Kind) hasText() bool {
	switch k {
	case KindString, KindBytes, KindDecimal, KindTime, KindUUID, KindComposite:
		return true
	default:
		return false
	}
}
