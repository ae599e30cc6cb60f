package main

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Server is the control-plane TCP listener: one goroutine-pair per
// connection, per §4.13/§5.
type Server struct {
	hub      *Hub
	addr     string
	listener net.Listener

	mu   sync.Mutex
	wg   sync.WaitGroup
	conn map[*Connection]struct{}
}

func NewServer(h *Hub, addr string) *Server {
	return &Server{hub: h, addr: addr, conn: make(map[*Connection]struct{})}
}

// Serve opens the listener and accepts connections until Close is called,
// at which point Accept returns an error and Serve returns nil.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	slog.Info("server: listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Close stops accepting and waits for every in-flight connection to finish
// its current frame (§5 Shutdown).
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conn {
		c.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) serveConn(netConn net.Conn) {
	defer s.wg.Done()

	c := newConnection(netConn)
	c.onDisconnect = func(conn *Connection) {
		userID := conn.UserID()
		if userID != "" {
			s.hub.voice.onDisconnect(userID)
		}
	}

	s.mu.Lock()
	s.conn[c] = struct{}{}
	s.mu.Unlock()
	s.hub.registry.Register(c)
	s.hub.metrics.ConnectionOpened()

	reader := bufio.NewReader(netConn)
	writer := bufio.NewWriter(netConn)
	go c.runWriter(writer)

	s.readLoop(c, reader)

	if c.onDisconnect != nil {
		c.onDisconnect(c)
	}
	userID := c.UserID()
	s.hub.registry.Unregister(c)
	if userID != "" {
		if err := s.hub.store.UpdatePresence(userID, "offline"); err != nil {
			slog.Error("server: update presence on disconnect failed", "user_id", userID, "err", err)
		}
		s.hub.broadcastToOnline(newEvent(CmdPresenceEvent, presenceEventPayload{UserID: userID, State: "offline"}), userID)
	}

	c.close()
	s.mu.Lock()
	delete(s.conn, c)
	s.mu.Unlock()
	s.hub.metrics.ConnectionClosed()
}

func (s *Server) readLoop(c *Connection, reader *bufio.Reader) {
	for {
		env, err := readFrame(reader)
		if err != nil {
			var pe *protoError
			if errors.As(err, &pe) {
				c.enqueue(newErrorResponse("", "", pe))
				continue
			}
			if !errors.Is(err, io.EOF) {
				slog.Debug("server: read frame failed", "peer", c.peer, "err", err)
			}
			return
		}
		s.hub.metrics.FrameReceived()
		c.Touch()

		resp, err := s.handleFrame(c, env)
		if err != nil {
			s.hub.metrics.FrameRejected()
			var pe *protoError
			if errors.As(err, &pe) {
				errResp := newErrorResponse(env.ID, env.Command, pe)
				c.enqueue(errResp)
				continue
			}
			slog.Error("server: unhandled internal error", "peer", c.peer, "command", env.Command, "err", err)
			c.enqueue(newErrorResponse(env.ID, env.Command, errInternal("internal error")))
			continue
		}
		if resp != nil {
			c.enqueue(*resp)
		}
	}
}

func (s *Server) handleFrame(c *Connection, env Envelope) (*Envelope, error) {
	if err := s.hub.validator.CheckVersion(env); err != nil {
		return nil, err
	}
	payload, err := s.hub.validator.Decode(env)
	if err != nil {
		return nil, err
	}
	return dispatch(s.hub, c, env, payload)
}
