package fake

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Payload is one synthesized message: the generic structured value and the
// schema-typed dynamic message built from it. Payloads are produced fresh on
// every invocation and never cached or shared between calls.
type Payload struct {
	// Fields is the generic structured value, with oneof groups nested
	// under their group name.
	Fields map[string]interface{}

	// Message is the typed value ready to hand to the transport.
	Message *dynamicpb.Message
}

// NewPayload synthesizes a payload for the given message type. Each call
// starts with a fresh depth map, so concurrent calls never share recursion
// bookkeeping.
func NewPayload(md protoreflect.MessageDescriptor) *Payload {
	fields := Message(md, NewDepth())
	msg := dynamicpb.NewMessage(md)
	populate(msg, md, fields)
	return &Payload{Fields: fields, Message: msg}
}

// populate copies a generic structured value into a dynamic message.
// Oneof members are looked up through their group's nested map; everything
// the generic value does not mention stays unset.
func populate(msg *dynamicpb.Message, md protoreflect.MessageDescriptor, fields map[string]interface{}) {
	descriptors := md.Fields()
	for i := 0; i < descriptors.Len(); i++ {
		fd := descriptors.Get(i)

		var raw interface{}
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
			group, ok := fields[string(od.Name())].(map[string]interface{})
			if !ok {
				continue
			}
			raw, ok = group[string(fd.Name())]
			if !ok {
				continue
			}
		} else {
			var ok bool
			raw, ok = fields[string(fd.Name())]
			if !ok {
				continue
			}
		}
		if raw == nil {
			continue
		}

		setField(msg, fd, raw)
	}
}

func setField(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor, raw interface{}) {
	switch {
	case fd.IsMap():
		entries, ok := raw.(map[string]interface{})
		if !ok {
			return
		}
		m := msg.Mutable(fd).Map()
		for keyText, value := range entries {
			key, ok := parseMapKey(fd.MapKey().Kind(), keyText)
			if !ok {
				continue
			}
			if v, ok := fieldValue(fd.MapValue(), value); ok {
				m.Set(key, v)
			}
		}
	case fd.IsList():
		elements, ok := raw.([]interface{})
		if !ok {
			return
		}
		list := msg.Mutable(fd).List()
		for _, element := range elements {
			if v, ok := fieldValue(fd, element); ok {
				list.Append(v)
			}
		}
	default:
		if v, ok := fieldValue(fd, raw); ok {
			msg.Set(fd, v)
		}
	}
}

// fieldValue converts a generic synthesized value into a protoreflect value
// for the given field (or map-value) descriptor. Returns false when the
// value cannot be represented; such fields simply stay unset.
func fieldValue(fd protoreflect.FieldDescriptor, raw interface{}) (protoreflect.Value, bool) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		nested, ok := raw.(map[string]interface{})
		if !ok {
			return protoreflect.Value{}, false
		}
		sub := dynamicpb.NewMessage(fd.Message())
		populate(sub, fd.Message(), nested)
		return protoreflect.ValueOfMessage(sub), true
	case protoreflect.EnumKind:
		name, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, false
		}
		ev := fd.Enum().Values().ByName(protoreflect.Name(name))
		if ev == nil {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfEnum(ev.Number()), true
	case protoreflect.BoolKind:
		v, ok := raw.(bool)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfBool(v), true
	case protoreflect.StringKind:
		v, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfString(v), true
	case protoreflect.BytesKind:
		v, ok := raw.([]byte)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfBytes(v), true
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		v, ok := raw.(int32)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfInt32(v), true
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		v, ok := raw.(int64)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfInt64(v), true
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		v, ok := raw.(uint32)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfUint32(v), true
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		v, ok := raw.(uint64)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfUint64(v), true
	case protoreflect.FloatKind:
		v, ok := raw.(float32)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfFloat32(v), true
	case protoreflect.DoubleKind:
		v, ok := raw.(float64)
		if !ok {
			return protoreflect.Value{}, false
		}
		return protoreflect.ValueOfFloat64(v), true
	default:
		return protoreflect.Value{}, false
	}
}

// mapKeyString renders a synthesized map key for the generic representation.
func mapKeyString(key interface{}) string {
	switch v := key.(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// parseMapKey converts a generic map key back to a typed protoreflect map key.
func parseMapKey(kind protoreflect.Kind, text string) (protoreflect.MapKey, bool) {
	switch kind {
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(text).MapKey(), true
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(text == "true").MapKey(), true
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return protoreflect.MapKey{}, false
		}
		return protoreflect.ValueOfInt32(int32(n)).MapKey(), true
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return protoreflect.MapKey{}, false
		}
		return protoreflect.ValueOfInt64(n).MapKey(), true
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return protoreflect.MapKey{}, false
		}
		return protoreflect.ValueOfUint32(uint32(n)).MapKey(), true
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return protoreflect.MapKey{}, false
		}
		return protoreflect.ValueOfUint64(n).MapKey(), true
	default:
		return protoreflect.MapKey{}, false
	}
}
