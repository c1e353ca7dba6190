// Package stream serves completed frames to remote clients over a
// server-streaming gRPC method.
package stream

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

const (
	ServiceName      = "simpeaks.v1.FrameStream"
	streamFramesPath = "/" + ServiceName + "/StreamFrames"

	// DefaultMaxMsgSize fits a 1024x1024 frame encoded as Struct values.
	DefaultMaxMsgSize = 64 * 1024 * 1024
)

// Source is the frame fan-out the server subscribes to.
type Source interface {
	Subscribe() (id string, frames <-chan *ndarray.Array, ok bool)
	Unsubscribe(id string)
}

// FrameStreamServer is the service implementation type.
type FrameStreamServer interface {
	StreamFrames(*emptypb.Empty, grpc.ServerStream) error
}

func streamFramesHandler(srv any, ss grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := ss.RecvMsg(req); err != nil {
		return err
	}
	return srv.(FrameStreamServer).StreamFrames(req, ss)
}

// ServiceDesc describes the FrameStream service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FrameStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "simpeaks/v1/stream",
}

// RegisterService registers the FrameStream service with a gRPC server.
func RegisterService(r grpc.ServiceRegistrar, srv FrameStreamServer) {
	r.RegisterService(&ServiceDesc, srv)
}

// Config holds server options.
type Config struct {
	ListenAddr string
	MaxMsgSize int
}

// Server streams frames from a Source.
type Server struct {
	config Config
	source Source

	grpcServer *grpc.Server
	listener   net.Listener
	running    atomic.Bool
	streams    atomic.Int64
	wg         sync.WaitGroup
}

var _ FrameStreamServer = (*Server)(nil)

// NewServer creates a server. The gRPC server is built on Start or Serve.
func NewServer(src Source, cfg Config) *Server {
	if cfg.MaxMsgSize <= 0 {
		cfg.MaxMsgSize = DefaultMaxMsgSize
	}
	return &Server{config: cfg, source: src}
}

// StreamFrames sends every frame the source delivers until the client
// goes away or the source closes the subscription.
func (s *Server) StreamFrames(_ *emptypb.Empty, ss grpc.ServerStream) error {
	id, frames, ok := s.source.Subscribe()
	if !ok {
		return status.Error(codes.ResourceExhausted, "too many frame subscribers")
	}
	defer s.source.Unsubscribe(id)

	n := s.streams.Add(1)
	defer s.streams.Add(-1)
	log.Printf("[stream] client %s connected (active: %d)", id, n)

	ctx := ss.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] client %s cancelled", id)
			return ctx.Err()
		case a, ok := <-frames:
			if !ok {
				return nil
			}
			if err := ss.SendMsg(Encode(a)); err != nil {
				log.Printf("[stream] send to %s failed: %v", id, err)
				return err
			}
		}
	}
}

// ActiveStreams returns the number of open StreamFrames calls.
func (s *Server) ActiveStreams() int { return int(s.streams.Load()) }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(lis)
}

// Serve serves on lis in the background.
func (s *Server) Serve(lis net.Listener) error {
	if s.running.Swap(true) {
		return fmt.Errorf("stream server already running")
	}
	s.listener = lis
	s.grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(s.config.MaxMsgSize),
		grpc.MaxSendMsgSize(s.config.MaxMsgSize),
	)
	RegisterService(s.grpcServer, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("[stream] gRPC server listening on %s", lis.Addr())
		if err := s.grpcServer.Serve(lis); err != nil && s.running.Load() {
			log.Printf("[stream] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop stops the gRPC server and waits for the serve goroutine.
func (s *Server) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.grpcServer.Stop()
	s.wg.Wait()
	log.Printf("[stream] gRPC server stopped")
}
