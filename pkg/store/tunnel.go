package store

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// TunnelConfig describes an SSH jump host in front of a snapshot backend
// that is only reachable from inside a management network.
type TunnelConfig struct {
	Host string // host or host:port; port 22 when omitted
	User string
	// Password and KeyFile are tried in that order; at least one is needed.
	Password string
	KeyFile  string
	// KnownHosts is an OpenSSH known_hosts file. Host keys are not checked
	// when it is empty.
	KnownHosts string
}

// SSHTunnel forwards a local TCP port to a remote address through an SSH
// connection.
type SSHTunnel struct {
	localAddr  string
	remoteAddr string
	sshClient  *ssh.Client
	listener   net.Listener
	done       chan struct{}
	wg         sync.WaitGroup
}

func (c TunnelConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if c.KeyFile != "" {
		pem, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH key %s: %w", c.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("SSH tunnel to %s: no password or key file", c.Host)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHosts != "" {
		cb, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}
	return &ssh.ClientConfig{User: c.User, Auth: auth, HostKeyCallback: hostKey}, nil
}

// NewSSHTunnel dials the jump host and opens a local listener on a random
// port. Connections to the local port are forwarded to remoteAddr as seen
// from the jump host.
func NewSSHTunnel(cfg TunnelConfig, remoteAddr string) (*SSHTunnel, error) {
	config, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &SSHTunnel{
		localAddr:  listener.Addr().String(),
		remoteAddr: remoteAddr,
		sshClient:  sshClient,
		listener:   listener,
		done:       make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return t, nil
}

// LocalAddr returns the local end of the tunnel, e.g. "127.0.0.1:54321".
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Close stops accepting, waits for open forwards to drain and closes the
// SSH connection.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	// Closing the client unblocks forwards still copying.
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", t.remoteAddr)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}
