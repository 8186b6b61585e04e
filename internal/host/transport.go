package host

import (
	"fmt"
	"net"
	"strconv"
)

// Transport env var and CLI flag names, mirrored into the child exactly as
// a VSCode extension host expects them.
const (
	EnvSocketHost     = "VSCODE_SOCKET_HOST"
	EnvSocketPort     = "VSCODE_SOCKET_PORT"
	EnvWillSendSocket = "VSCODE_WILL_SEND_SOCKET"
	EnvIPCHookCLI     = "VSCODE_IPC_HOOK_CLI"

	flagSocketHost     = "--vscode-socket-host"
	flagSocketPort     = "--vscode-socket-port"
	flagWillSendSocket = "--vscode-will-send-socket"
)

// Transport describes the IPC channel the child connects back on. The
// bridge only renders the channel into env vars and CLI flags; the RPC
// protocol on top of it belongs to the embedder.
type Transport interface {
	// Env returns KEY=VALUE pairs for the child environment.
	Env() []string
	// Args returns the CLI flags appended after the entry file.
	Args() []string
	// String names the transport for logs.
	String() string
}

// TCPTransport connects the child over a loopback TCP socket.
type TCPTransport struct {
	// Host defaults to 127.0.0.1.
	Host string
	Port int
}

func (t TCPTransport) host() string {
	if t.Host == "" {
		return "127.0.0.1"
	}
	return t.Host
}

// Env returns the socket host, port, and will-send-socket marker.
func (t TCPTransport) Env() []string {
	return []string{
		EnvSocketHost + "=" + t.host(),
		EnvSocketPort + "=" + strconv.Itoa(t.Port),
		EnvWillSendSocket + "=true",
	}
}

// Args mirrors the env vars as CLI flags.
func (t TCPTransport) Args() []string {
	return []string{
		flagSocketHost + "=" + t.host(),
		flagSocketPort + "=" + strconv.Itoa(t.Port),
		flagWillSendSocket,
	}
}

func (t TCPTransport) String() string {
	return fmt.Sprintf("tcp %s:%d", t.host(), t.Port)
}

// SocketTransport connects the child over a Unix domain socket.
type SocketTransport struct {
	Path string
}

// Env returns the single IPC hook variable.
func (t SocketTransport) Env() []string {
	return []string{EnvIPCHookCLI + "=" + t.Path}
}

// Args returns nothing; the hook path travels by environment only.
func (t SocketTransport) Args() []string { return nil }

func (t SocketTransport) String() string {
	return "unix " + t.Path
}

// AutoTCP allocates a free loopback port and returns the transport for it.
// The listener is closed before returning; the port stays yours by
// convention until the child binds it.
func AutoTCP() (TCPTransport, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return TCPTransport{}, fmt.Errorf("%w: %v", ErrNoFreePort, err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return TCPTransport{}, fmt.Errorf("%w: %v", ErrNoFreePort, err)
	}
	return TCPTransport{Host: "127.0.0.1", Port: port}, nil
}
