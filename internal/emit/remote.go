package emit

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/ir"
)

// Remote sends binary artifacts to an ArtifactSink over gRPC.
type Remote struct {
	conn   *grpc.ClientConn
	schema *Schema

	recorder
}

// Dial connects to the sink at target (host:port).
func Dial(target string) (*Remote, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to sink %s: %w", target, err)
	}
	return &Remote{conn: conn, schema: schema}, nil
}

func (r *Remote) Emit(ctx context.Context, u *ir.Unit) error {
	msg, err := r.schema.Message(u)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", u.Class.Name, err)
	}
	reply := r.schema.NewReply()
	if err := r.conn.Invoke(ctx, writeMethod, msg, reply); err != nil {
		return fmt.Errorf("sending %s: %w", u.Class.Name, err)
	}
	size, _ := reply.GetFieldByName("size").(int32)
	r.record(u, "", int(size))
	return nil
}

// Close releases the connection.
func (r *Remote) Close() error { return r.conn.Close() }

// Sink is an ArtifactSink server storing received artifacts as binary files.
type Sink struct {
	Dir string

	schema *Schema
	server *grpc.Server
	// Received is called after each stored artifact; it may be nil.
	Received func(class string, size int)
}

// NewSink creates a sink writing into dir.
func NewSink(dir string) (*Sink, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sink directory: %w", err)
	}
	s := &Sink{Dir: dir, schema: schema, server: grpc.NewServer()}
	s.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: sinkService,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Write",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return srv.(*Sink).write(dec)
			},
		}},
		Metadata: schemaFile,
	}, s)
	return s, nil
}

func (s *Sink) write(dec func(interface{}) error) (interface{}, error) {
	msg := s.schema.NewArtifact()
	if err := dec(msg); err != nil {
		return nil, err
	}
	class := ClassName(msg)
	if err := checkClassName(class); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	data, err := frame(msg)
	if err != nil {
		return nil, err
	}
	name := FileName(class, config.FormatBinary)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("storing %s: %w", name, err)
	}
	if s.Received != nil {
		s.Received(class, len(data))
	}
	return s.reply(class, len(data))
}

func (s *Sink) reply(class string, size int) (*dynamic.Message, error) {
	reply := s.schema.NewReply()
	if err := reply.TrySetFieldByName("id", ArtifactID(class).String()); err != nil {
		return nil, err
	}
	if err := reply.TrySetFieldByName("size", int32(size)); err != nil {
		return nil, err
	}
	return reply, nil
}

// Serve accepts connections on lis until Stop is called.
func (s *Sink) Serve(lis net.Listener) error { return s.server.Serve(lis) }

// Stop waits for in-flight writes and stops the server.
func (s *Sink) Stop() { s.server.GracefulStop() }
