// Package tunnel forwards a local TCP port to a database host through an
// SSH server.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort    = 22
	defaultTimeout = 10 * time.Second
)

// ErrAuthFailed is returned when the SSH server rejects the credentials.
var ErrAuthFailed = errors.New("SSH authentication failed: check username/password/key")

// Config describes an SSH tunnel.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	KeyPassphrase  string
	KnownHostsFile string

	// RemoteHost and RemotePort are dialed from the SSH server.
	RemoteHost string
	RemotePort int

	Timeout time.Duration
}

func (c Config) sshAddr() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c Config) remoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// Tunnel is a running port forward.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	logger   *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Start connects to the SSH server and starts listening on 127.0.0.1.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (*Tunnel, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	clientCfg, err := clientConfig(cfg, timeout, logger)
	if err != nil {
		return nil, err
	}

	addr := cfg.sshAddr()
	logger.Debug("connecting to ssh server", slog.String("addr", addr), slog.String("user", cfg.User))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to SSH server %s: %w", addr, err)
	}

	_ = conn.SetDeadline(time.Now().Add(timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, classify(err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open local tunnel port: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   cfg.remoteAddr(),
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}

	logger.Info("ssh tunnel established",
		slog.String("ssh", addr),
		slog.String("remote", t.remote),
		slog.Int("local_port", t.LocalPort()))

	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

func clientConfig(cfg Config, timeout time.Duration, logger *slog.Logger) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		signer, err := loadKey(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeys = cb
	} else {
		logger.Warn("ssh host key not verified; set a known_hosts file to enable checking",
			slog.String("host", cfg.Host))
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

func loadKey(path, passphrase string) (ssh.Signer, error) {
	pemBytes, err := os.ReadFile(path) //nolint:gosec // key path comes from the user's own profile
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file: %w", err)
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key file: %w", err)
	}
	return signer, nil
}

// classify maps handshake failures to the errors callers branch on.
func classify(err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w (%v)", ErrAuthFailed, err)
	}
	return fmt.Errorf("SSH tunnel error: %w", err)
}

// LocalPort returns the bound local port.
func (t *Tunnel) LocalPort() int {
	return t.listener.Addr().(*net.TCPAddr).Port
}

// LocalAddr returns the bound local address.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !t.isClosed() {
				t.logger.Warn("tunnel accept failed", "error", err)
			}
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Warn("tunnel could not reach remote host", slog.String("remote", t.remote), "error", err)
		_ = local.Close()
		return
	}

	if !t.track(local, remote) {
		_ = local.Close()
		_ = remote.Close()
		return
	}
	defer t.untrack(local, remote)

	done := make(chan struct{}, 2)
	pipe := func(dst, src net.Conn) {
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}
	go pipe(remote, local)
	go pipe(local, remote)

	<-done
	_ = local.Close()
	_ = remote.Close()
	<-done
}

func (t *Tunnel) track(conns ...net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	for _, c := range conns {
		t.conns[c] = struct{}{}
	}
	return true
}

func (t *Tunnel) untrack(conns ...net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range conns {
		delete(t.conns, c)
	}
}

func (t *Tunnel) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close stops the listener, closes every forwarded connection and the SSH
// client. Calling Close more than once is safe.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for c := range t.conns {
		_ = c.Close()
	}
	t.mu.Unlock()

	err := t.listener.Close()
	_ = t.client.Close()
	t.wg.Wait()

	t.logger.Debug("ssh tunnel closed", slog.String("remote", t.remote))
	return err
}
