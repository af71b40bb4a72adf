package fake

import (
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Fixed scalar literals. Each width/signedness variant gets its own
// magnitude so a synthesized message reveals which table entry produced
// each field.
const (
	scalarString = "Hello"

	scalarInt32    = int32(100)
	scalarInt64    = int64(1000)
	scalarUint32   = uint32(200)
	scalarUint64   = uint64(2000)
	scalarSint32   = int32(-100)
	scalarSint64   = int64(-1000)
	scalarFixed32  = uint32(300)
	scalarFixed64  = uint64(3000)
	scalarSfixed32 = int32(-300)
	scalarSfixed64 = int64(-3000)
	scalarFloat    = float32(1.5)
	scalarDouble   = float64(2.5)
)

// Scalar returns the placeholder literal for a primitive scalar kind.
// For strings the field name participates: names that start or end with
// "id" (case-insensitive) get a fresh random UUID v4 instead of the fixed
// literal. The second return value is false when the kind is not a scalar
// this table recognizes, signalling the caller to fall back.
func Scalar(kind protoreflect.Kind, fieldName string) (interface{}, bool) {
	switch kind {
	case protoreflect.BoolKind:
		return true, true
	case protoreflect.StringKind:
		if isIDField(fieldName) {
			return uuid.NewString(), true
		}
		return scalarString, true
	case protoreflect.BytesKind:
		return []byte(scalarString), true
	case protoreflect.Int32Kind:
		return scalarInt32, true
	case protoreflect.Int64Kind:
		return scalarInt64, true
	case protoreflect.Uint32Kind:
		return scalarUint32, true
	case protoreflect.Uint64Kind:
		return scalarUint64, true
	case protoreflect.Sint32Kind:
		return scalarSint32, true
	case protoreflect.Sint64Kind:
		return scalarSint64, true
	case protoreflect.Fixed32Kind:
		return scalarFixed32, true
	case protoreflect.Fixed64Kind:
		return scalarFixed64, true
	case protoreflect.Sfixed32Kind:
		return scalarSfixed32, true
	case protoreflect.Sfixed64Kind:
		return scalarSfixed64, true
	case protoreflect.FloatKind:
		return scalarFloat, true
	case protoreflect.DoubleKind:
		return scalarDouble, true
	default:
		return nil, false
	}
}

// isIDField reports whether a field name looks like an identifier field.
func isIDField(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "id") || strings.HasSuffix(lower, "id")
}
