package fake

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// MaxDepth bounds how many times a single message type may appear on one
// synthesis path. Recursion beyond the limit yields an empty structure.
const MaxDepth = 3

// Depth tracks per-message-type visit counts for one top-level synthesis
// invocation. It is threaded by reference through the recursive walk and
// must never be reused across independent invocations.
type Depth map[protoreflect.FullName]int

// NewDepth returns a fresh depth map for one top-level synthesis call.
func NewDepth() Depth {
	return make(Depth)
}

// Message synthesizes a generic structured value for a message type.
// Fields are visited in declaration order. Fields that belong to a oneof
// group are not synthesized individually; each group is synthesized once
// via OneOf and merged in under the group's name.
func Message(md protoreflect.MessageDescriptor, depth Depth) map[string]interface{} {
	out := make(map[string]interface{})

	depth[md.FullName()]++
	if depth[md.FullName()] > MaxDepth {
		return out
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
			continue
		}
		value := Field(fd, depth)
		if fd.IsList() {
			// One element stands in for the whole collection.
			value = []interface{}{value}
		}
		out[string(fd.Name())] = value
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		for name, value := range OneOf(od, depth) {
			out[name] = value
		}
	}

	return out
}

// Field synthesizes a value for a single field. For repeated fields it
// returns the single element; the caller wraps it in a slice.
func Field(fd protoreflect.FieldDescriptor, depth Depth) interface{} {
	switch {
	case fd.IsMap():
		return mapEntry(fd, depth)
	case fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind:
		return Message(fd.Message(), depth)
	case fd.Kind() == protoreflect.EnumKind:
		return firstEnumValue(fd.Enum())
	default:
		// Descriptors arrive fully linked, so an unrecognized kind means the
		// field is genuinely malformed; degrade to nil rather than fail.
		value, ok := Scalar(fd.Kind(), string(fd.Name()))
		if !ok {
			return nil
		}
		return value
	}
}

// OneOf synthesizes a oneof group: always the first-declared alternative,
// keyed by the group name wrapping the single chosen field. The policy is
// deterministic and never varies across calls.
func OneOf(od protoreflect.OneofDescriptor, depth Depth) map[string]interface{} {
	fields := od.Fields()
	if fields.Len() == 0 {
		return map[string]interface{}{}
	}
	first := fields.Get(0)
	return map[string]interface{}{
		string(od.Name()): map[string]interface{}{
			string(first.Name()): Field(first, depth),
		},
	}
}

// mapEntry synthesizes the single-entry value for a map field. The key comes
// from the scalar table for the key kind (with the field's own name, so an
// id-like map still gets a UUID key). Message-typed values recurse, with the
// oneof picker taking precedence when the value message declares oneofs;
// enum-typed values get the first declared value; anything else degrades to
// an empty structure.
func mapEntry(fd protoreflect.FieldDescriptor, depth Depth) map[string]interface{} {
	key, ok := Scalar(fd.MapKey().Kind(), string(fd.Name()))
	if !ok {
		key = scalarString
	}

	mv := fd.MapValue()
	var value interface{}
	switch {
	case mv.Kind() == protoreflect.MessageKind:
		value = mapMessageValue(mv.Message(), depth)
	case mv.Kind() == protoreflect.EnumKind:
		value = firstEnumValue(mv.Enum())
	default:
		value = map[string]interface{}{}
	}

	return map[string]interface{}{mapKeyString(key): value}
}

// mapMessageValue synthesizes a message-typed map value. A value message
// that declares oneof groups is represented by its picked groups alone.
func mapMessageValue(md protoreflect.MessageDescriptor, depth Depth) map[string]interface{} {
	oneofs := realOneofs(md)
	if len(oneofs) == 0 {
		return Message(md, depth)
	}

	out := make(map[string]interface{})
	for _, od := range oneofs {
		for name, value := range OneOf(od, depth) {
			out[name] = value
		}
	}
	return out
}

// realOneofs returns the declared (non-synthetic) oneof groups of a message.
func realOneofs(md protoreflect.MessageDescriptor) []protoreflect.OneofDescriptor {
	var out []protoreflect.OneofDescriptor
	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		if od := oneofs.Get(i); !od.IsSynthetic() {
			out = append(out, od)
		}
	}
	return out
}

// firstEnumValue returns the name of the first enum value in declaration
// order, not numeric order.
func firstEnumValue(ed protoreflect.EnumDescriptor) string {
	values := ed.Values()
	if values.Len() == 0 {
		return ""
	}
	return string(values.Get(0).Name())
}
