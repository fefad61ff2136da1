package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/rov.teleop/internal/monitoring"
)

const (
	ServiceName     = "teleop.Telemetry"
	WatchMethod     = "/" + ServiceName + "/Watch"
	DefaultMaxWatch = 8
)

// TelemetryServer is the server API for the teleop.Telemetry service.
type TelemetryServer interface {
	// Watch streams every actuator event published after the call starts.
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "teleop/telemetry.proto",
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).Watch(in, stream)
}

// RegisterService registers the telemetry service on a gRPC server.
func RegisterService(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Config holds configuration for the telemetry gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// MaxClients is the maximum number of concurrent Watch streams
	MaxClients int

	// ClientBuffer is the per-client event queue length
	ClientBuffer int
}

// Server serves Watch streams from a Broadcaster.
type Server struct {
	config      Config
	broadcaster *Broadcaster

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
	watching int
	wg       sync.WaitGroup
}

func NewServer(cfg Config, b *Broadcaster) *Server {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxWatch
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultClientBuffer
	}
	return &Server{config: cfg, broadcaster: b}
}

// Watch implements TelemetryServer.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	s.mu.Lock()
	if s.watching >= s.config.MaxClients {
		s.mu.Unlock()
		return status.Errorf(codes.ResourceExhausted, "at most %d watchers", s.config.MaxClients)
	}
	s.watching++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watching--
		s.mu.Unlock()
	}()

	id, events := s.broadcaster.Subscribe(s.config.ClientBuffer)
	defer s.broadcaster.Unsubscribe(id)
	monitoring.Logf("[telemetry] watcher %d connected", id)
	defer monitoring.Logf("[telemetry] watcher %d disconnected", id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := EventToStruct(ev)
			if err != nil {
				return status.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// Serve registers the service on a new gRPC server and serves lis until
// Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.New("telemetry server already running")
	}
	s.server = grpc.NewServer()
	s.listener = lis
	RegisterService(s.server, s)
	srv := s.server
	s.mu.Unlock()

	monitoring.Logf("[telemetry] gRPC server listening on %s", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Serve(lis); err != nil {
			monitoring.Logf("[telemetry] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop closes open Watch streams and stops the server. Streams get up to
// timeout to drain before being cut off.
func (s *Server) Stop(timeout time.Duration) {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		srv.Stop()
		<-done
	}
	s.wg.Wait()
	monitoring.Logf("[telemetry] gRPC server stopped")
}

// EventToStruct converts an event to the wire message sent on Watch.
func EventToStruct(ev Event) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"seq":  float64(ev.Seq),
		"kind": ev.Kind,
		"time": ev.Time.UTC().Format(time.RFC3339Nano),
	}
	switch {
	case ev.Command != nil:
		fields["port"] = ev.Command.Port
		fields["vertical"] = ev.Command.Vertical
		fields["starboard"] = ev.Command.Starboard
	case ev.Light != nil:
		fields["level"] = *ev.Light
	case ev.Laser != nil:
		fields["laser"] = int(*ev.Laser)
		fields["on"] = *ev.Laser != 0
	}
	return structpb.NewStruct(fields)
}

// WatchStream is the client side of a Watch call.
type WatchStream struct {
	stream grpc.ClientStream
}

// Watch opens a Watch stream on conn.
func Watch(ctx context.Context, conn grpc.ClientConnInterface, opts ...grpc.CallOption) (*WatchStream, error) {
	stream, err := conn.NewStream(ctx, &serviceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream: stream}, nil
}

// Recv blocks for the next event.
func (w *WatchStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := w.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
