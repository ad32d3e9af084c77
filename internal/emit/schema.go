package emit

import (
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/funvibe/surrogate/internal/ir"
)

const schemaFile = "surrogate/v1/artifact.proto"

const schemaSource = `syntax = "proto3";

package surrogate.v1;

message Field {
  string name = 1;
  string type = 2;
  int32 modifiers = 3;
}

message Method {
  string sub_signature = 1;
  int32 modifiers = 2;
  repeated string exceptions = 3;
  repeated string locals = 4;
  repeated string statements = 5;
}

message Artifact {
  string class_name = 1;
  string origin = 2;
  string super_class = 3;
  repeated string interfaces = 4;
  int32 modifiers = 5;
  repeated Field fields = 6;
  repeated Method methods = 7;
}

message WriteReply {
  string id = 1;
  int32 size = 2;
}

service ArtifactSink {
  rpc Write(Artifact) returns (WriteReply);
}
`

// Names of the schema elements.
const (
	artifactMessage = "surrogate.v1.Artifact"
	fieldMessage    = "surrogate.v1.Field"
	methodMessage   = "surrogate.v1.Method"
	replyMessage    = "surrogate.v1.WriteReply"
	sinkService     = "surrogate.v1.ArtifactSink"
	writeMethod     = "/" + sinkService + "/Write"
)

// Schema holds the parsed descriptors of the binary artifact format.
type Schema struct {
	file     *desc.FileDescriptor
	artifact *desc.MessageDescriptor
	field    *desc.MessageDescriptor
	method   *desc.MessageDescriptor
	reply    *desc.MessageDescriptor
	sink     *desc.ServiceDescriptor
}

var (
	schemaOnce   sync.Once
	sharedSchema *Schema
	schemaErr    error
)

// LoadSchema parses the artifact schema once per process.
func LoadSchema() (*Schema, error) {
	schemaOnce.Do(func() {
		sharedSchema, schemaErr = parseSchema()
	})
	return sharedSchema, schemaErr
}

func parseSchema() (*Schema, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{schemaFile: schemaSource}),
	}
	fds, err := parser.ParseFiles(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact schema: %w", err)
	}
	fd := fds[0]
	s := &Schema{
		file:     fd,
		artifact: fd.FindMessage(artifactMessage),
		field:    fd.FindMessage(fieldMessage),
		method:   fd.FindMessage(methodMessage),
		reply:    fd.FindMessage(replyMessage),
		sink:     fd.FindService(sinkService),
	}
	if s.artifact == nil || s.field == nil || s.method == nil || s.reply == nil || s.sink == nil {
		return nil, fmt.Errorf("artifact schema is incomplete")
	}
	return s, nil
}

// Message converts a unit into an Artifact message.
func (s *Schema) Message(u *ir.Unit) (*dynamic.Message, error) {
	c := u.Class
	msg := dynamic.NewMessage(s.artifact)
	if err := msg.TrySetFieldByName("class_name", c.Name); err != nil {
		return nil, err
	}
	if err := msg.TrySetFieldByName("origin", c.Origin.String()); err != nil {
		return nil, err
	}
	if err := msg.TrySetFieldByName("super_class", c.Super); err != nil {
		return nil, err
	}
	if err := msg.TrySetFieldByName("modifiers", int32(c.Modifiers)); err != nil {
		return nil, err
	}
	for _, iface := range c.Interfaces {
		if err := msg.TryAddRepeatedFieldByName("interfaces", iface); err != nil {
			return nil, err
		}
	}

	for _, f := range c.Fields {
		fm := dynamic.NewMessage(s.field)
		if err := fm.TrySetFieldByName("name", f.Name); err != nil {
			return nil, err
		}
		if err := fm.TrySetFieldByName("type", f.Type.String()); err != nil {
			return nil, err
		}
		if err := fm.TrySetFieldByName("modifiers", int32(f.Modifiers)); err != nil {
			return nil, err
		}
		if err := msg.TryAddRepeatedFieldByName("fields", fm); err != nil {
			return nil, err
		}
	}

	for _, m := range c.Methods {
		mm := dynamic.NewMessage(s.method)
		if err := mm.TrySetFieldByName("sub_signature", m.SubSignature()); err != nil {
			return nil, err
		}
		if err := mm.TrySetFieldByName("modifiers", int32(m.Modifiers)); err != nil {
			return nil, err
		}
		for _, e := range m.Exceptions {
			if err := mm.TryAddRepeatedFieldByName("exceptions", e); err != nil {
				return nil, err
			}
		}
		if b := u.Body(m.SubSignature()); b != nil {
			for _, l := range b.Locals {
				if err := mm.TryAddRepeatedFieldByName("locals", l.Name+" "+l.T.String()); err != nil {
					return nil, err
				}
			}
			for _, st := range b.Stmts {
				if err := mm.TryAddRepeatedFieldByName("statements", st.String()); err != nil {
					return nil, err
				}
			}
		}
		if err := msg.TryAddRepeatedFieldByName("methods", mm); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// NewArtifact returns an empty Artifact message.
func (s *Schema) NewArtifact() *dynamic.Message { return dynamic.NewMessage(s.artifact) }

// NewReply returns an empty WriteReply message.
func (s *Schema) NewReply() *dynamic.Message { return dynamic.NewMessage(s.reply) }
