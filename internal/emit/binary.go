package emit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/surrogate/internal/ir"
)

// Binary artifacts start with a magic string and a format version.
const (
	binaryMagic   = "SGC"
	binaryVersion = 1
)

// ErrNotArtifact is returned when decoding data without the artifact header.
var ErrNotArtifact = errors.New("not a surrogate artifact")

// Encode serializes a unit into the binary artifact format.
func Encode(u *ir.Unit) ([]byte, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	msg, err := schema.Message(u)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", u.Class.Name, err)
	}
	return frame(msg)
}

func frame(msg *dynamic.Message) ([]byte, error) {
	payload, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(binaryMagic)
	buf.WriteByte(binaryVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a binary artifact.
func Decode(data []byte) (*dynamic.Message, error) {
	if len(data) < len(binaryMagic)+1 || string(data[:len(binaryMagic)]) != binaryMagic {
		return nil, ErrNotArtifact
	}
	if v := data[len(binaryMagic)]; v != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotArtifact, v)
	}
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	msg := schema.NewArtifact()
	if err := msg.Unmarshal(data[len(binaryMagic)+1:]); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	return msg, nil
}

// ClassName returns the class name recorded in a decoded artifact.
func ClassName(msg *dynamic.Message) string {
	name, _ := msg.GetFieldByName("class_name").(string)
	return name
}

// Dump writes a decoded message as indented text, one field per line.
func Dump(w io.Writer, msg *dynamic.Message) error {
	var sb strings.Builder
	dumpMessage(&sb, msg, 0)
	_, err := io.WriteString(w, sb.String())
	return err
}

func dumpMessage(sb *strings.Builder, msg *dynamic.Message, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		val := msg.GetField(fd)
		if fd.IsRepeated() {
			items, _ := val.([]interface{})
			for _, item := range items {
				dumpValue(sb, indent, fd, item, depth)
			}
			continue
		}
		if !msg.HasField(fd) {
			continue
		}
		dumpValue(sb, indent, fd, val, depth)
	}
}

func dumpValue(sb *strings.Builder, indent string, fd *desc.FieldDescriptor, val interface{}, depth int) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		sb.WriteString(fmt.Sprintf("%s%s {\n", indent, fd.GetName()))
		if m, ok := val.(*dynamic.Message); ok {
			dumpMessage(sb, m, depth+1)
		}
		sb.WriteString(indent + "}\n")
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		sb.WriteString(fmt.Sprintf("%s%s: %q\n", indent, fd.GetName(), val))
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		sb.WriteString(fmt.Sprintf("%s%s: %#x\n", indent, fd.GetName(), val))
	default:
		sb.WriteString(fmt.Sprintf("%s%s: %v\n", indent, fd.GetName(), val))
	}
}
