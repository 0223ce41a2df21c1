package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/log"
)

var (
	// ErrInvalidStream is returned when a client asks for an unknown stream.
	ErrInvalidStream = errors.New("invalid stream id")
	// ErrStreamTaken is returned when a stream already has a client.
	ErrStreamTaken = errors.New("stream already has a client")
	// ErrServerRunning is returned by Start on a running server.
	ErrServerRunning = errors.New("stream server already running")
)

// PixelSource supplies the pixels of a region of the current frame.
type PixelSource interface {
	Crop(r analysis.Region) ([]byte, error)
}

// Config holds configuration for the stream server.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string
	// HandSize and HeadSize give the image size sent when a region is absent.
	HandSize analysis.Size
	HeadSize analysis.Size
	// HandshakeTimeout bounds how long a new connection may take to send its stream id.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds one message write before the client is dropped.
	WriteTimeout time.Duration
	// QueueSize is the number of encoded messages buffered per client.
	QueueSize int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Addr:             ":9009",
		HandSize:         analysis.DefaultRegionSize,
		HeadSize:         analysis.DefaultRegionSize,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     2 * time.Second,
		QueueSize:        8,
	}
}

// Stats reports server activity.
type Stats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Server accepts stream clients and fans frames out to them.
type Server struct {
	config Config

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	listener  net.Listener

	mu      sync.Mutex
	clients map[ID]*client

	sent    atomic.Uint64
	dropped atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// client is one connected stream consumer.
type client struct {
	id    ID
	conn  net.Conn
	queue chan []byte
	once  sync.Once
	done  chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewServer creates a stream server. Call Start to begin accepting.
func NewServer(config Config) *Server {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	return &Server{
		config:  config,
		clients: make(map[ID]*client),
	}
}

// Start listens on the configured address and accepts clients in the
// background.
func (s *Server) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(lis)

	log.Info("stream server listening", "addr", lis.Addr().String())
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every client and waits for them to finish.
func (s *Server) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.running.Swap(false) {
		return
	}
	s.mu.Lock()
	lis := s.listener
	s.mu.Unlock()
	lis.Close()

	s.mu.Lock()
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Info("stream server stopped", "sent", s.sent.Load(), "dropped", s.dropped.Load())
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	return Stats{Clients: n, Sent: s.sent.Load(), Dropped: s.dropped.Load()}
}

// Connected reports whether a client holds the stream.
func (s *Server) Connected(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[id]
	return ok
}

func (s *Server) acceptLoop(lis net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := lis.Accept()
		if err != nil {
			if s.running.Load() {
				log.Error("stream accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// serve registers a connection under the stream it asks for, then writes
// queued messages until the connection breaks or the server stops.
func (s *Server) serve(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	c, err := s.register(conn)
	if err != nil {
		log.Warn("stream client rejected", "remote", remote, "error", err)
		conn.Close()
		return
	}
	log.Info("stream client connected", "remote", remote, "stream", c.id)

	// clients never send after the handshake; a read returning means the
	// peer went away
	go func() {
		io.Copy(io.Discard, conn)
		c.close()
	}()

	s.writeLoop(c)

	s.mu.Lock()
	if s.clients[c.id] == c {
		delete(s.clients, c.id)
	}
	s.mu.Unlock()
	log.Info("stream client disconnected", "remote", remote, "stream", c.id)
}

func (s *Server) register(conn net.Conn) (*client, error) {
	if s.config.HandshakeTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	}
	id, err := ReadHandshake(conn)
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStream, int32(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return nil, net.ErrClosed
	}
	if _, taken := s.clients[id]; taken {
		return nil, fmt.Errorf("%w: %s", ErrStreamTaken, id)
	}
	c := &client{
		id:    id,
		conn:  conn,
		queue: make(chan []byte, s.config.QueueSize),
		done:  make(chan struct{}),
	}
	s.clients[id] = c
	return c, nil
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			if s.config.WriteTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			}
			if _, err := c.conn.Write(msg); err != nil {
				log.Warn("stream write failed", "stream", c.id, "error", err)
				c.close()
				return
			}
			s.sent.Add(1)
		}
	}
}

// Publish encodes the frame for every connected stream. All messages of a
// frame carry ts in Unix seconds. Slow clients lose messages rather than
// block the caller.
func (s *Server) Publish(ts time.Time, res analysis.Result, pixels PixelSource) {
	if !s.running.Load() {
		return
	}

	s.mu.Lock()
	targets := make(map[ID]*client, len(s.clients))
	for id, c := range s.clients {
		targets[id] = c
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	sec := ts.Unix()
	for _, id := range IDs {
		c, ok := targets[id]
		if !ok {
			continue
		}
		payload, err := s.encode(id, sec, res, pixels)
		if err != nil {
			log.Error("stream encode failed", "stream", id, "error", err)
			continue
		}
		select {
		case c.queue <- Frame(payload):
		default:
			s.dropped.Add(1)
			log.Debug("stream queue full, message dropped", "stream", id)
		}
	}
}

func (s *Server) encode(id ID, ts int64, res analysis.Result, pixels PixelSource) ([]byte, error) {
	switch id {
	case ClosestBody:
		return NewSkeletonMessage(ts, res).MarshalBinary()
	case HandColorLH:
		return s.colorMessage(ts, LeftHandFrameType, res.LeftHand, s.config.HandSize, pixels).MarshalBinary()
	case HandColorRH:
		return s.colorMessage(ts, RightHandFrameType, res.RightHand, s.config.HandSize, pixels).MarshalBinary()
	case HeadColor:
		return s.colorMessage(ts, HeadFrameType, res.Head, s.config.HeadSize, pixels).MarshalBinary()
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidStream, int32(id))
}

func (s *Server) colorMessage(ts int64, frameType int32, r analysis.Region, size analysis.Size, pixels PixelSource) ColorMessage {
	if !r.Present || pixels == nil {
		return NewColorMessage(ts, frameType, size.Width, size.Height, nil)
	}
	bgr, err := pixels.Crop(r)
	if err != nil {
		log.Warn("region pixels unavailable", "region", r.Label, "error", err)
		return NewColorMessage(ts, frameType, size.Width, size.Height, nil)
	}
	return NewColorMessage(ts, frameType, r.Width, r.Height, bgr)
}
