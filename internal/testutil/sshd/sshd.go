// Package sshd provides an in-process SSH server for tests. It supports
// password authentication and session channels with exec requests answered
// from a scripted command table, so connection and probe logic can be
// exercised without a network or a real remote host.
package sshd

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Response is the scripted result for one exec command.
// Hang makes the server withhold the reply until it is stopped, which
// simulates a stuck remote command.
type Response struct {
	Stdout     string
	ExitStatus uint32
	Hang       bool
}

// Server is an in-process SSH server for testing.
type Server struct {
	t    testing.TB
	opts Options

	config   *ssh.ServerConfig
	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}

	mu       sync.Mutex
	commands []string
}

// Options configures the test SSH server.
type Options struct {
	Username string              // Required
	Password string              // Required
	Script   map[string]Response // exec command -> scripted response
	HostKey  ssh.Signer          // Generated if nil
}

// New creates a test SSH server. Call Start() to begin listening.
func New(t testing.TB, opts Options) *Server {
	t.Helper()
	if opts.Username == "" || opts.Password == "" {
		t.Fatal("sshd: Username and Password are required")
	}
	return &Server{
		t:    t,
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start begins listening on a random loopback port.
func (s *Server) Start() {
	s.t.Helper()

	hostKey := s.opts.HostKey
	if hostKey == nil {
		hostKey = GenerateHostKey(s.t)
	}

	s.config = &ssh.ServerConfig{}
	s.config.AddHostKey(hostKey)
	s.config.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
		if conn.User() == s.opts.Username && string(password) == s.opts.Password {
			return nil, nil
		}
		return nil, fmt.Errorf("authentication failed for user %q", conn.User())
	}

	var err error
	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		s.t.Fatalf("sshd: failed to listen: %v", err)
	}

	s.wg.Add(1)
	go s.acceptLoop()
}

// Stop closes the listener and waits for all connections to finish.
func (s *Server) Stop() {
	close(s.done)
	_ = s.listener.Close()
	s.wg.Wait()
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Commands returns every exec command received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *Server) recordCommand(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.t.Logf("sshd: accept error: %v", err)
			}
			return
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		// Authentication failures are expected in tests
		s.t.Logf("sshd: handshake failed: %v", err)
		return
	}
	defer func() { _ = sshConn.Close() }()

	go ssh.DiscardRequests(reqs)

	for {
		select {
		case <-s.done:
			return
		case newChan, ok := <-chans:
			if !ok {
				return
			}
			if newChan.ChannelType() != "session" {
				_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
				continue
			}
			s.wg.Add(1)
			go s.handleSession(newChan)
		}
	}
}

// execPayload is the RFC 4254 payload of an exec request.
type execPayload struct {
	Command string
}

func (s *Server) handleSession(newChan ssh.NewChannel) {
	defer s.wg.Done()

	ch, reqs, err := newChan.Accept()
	if err != nil {
		s.t.Logf("sshd: failed to accept session: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}
		var payload execPayload
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)
		s.recordCommand(payload.Command)

		resp := s.opts.Script[payload.Command]
		if resp.Hang {
			<-s.done
			return
		}
		if resp.Stdout != "" {
			_, _ = ch.Write([]byte(resp.Stdout))
		}
		statusPayload := ssh.Marshal(struct{ Status uint32 }{resp.ExitStatus})
		_, _ = ch.SendRequest("exit-status", false, statusPayload)
		return
	}
}

// GenerateHostKey returns a fresh ed25519 host key signer.
func GenerateHostKey(t testing.TB) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("sshd: failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("sshd: failed to create signer: %v", err)
	}
	return signer
}
