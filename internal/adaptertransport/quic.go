package adaptertransport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"os/exec"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICDialSpawn starts cmdPath and then dials it over QUIC at addr once the
// adapter has had a chance to come up, for adapters that expose DAP over a
// single QUIC stream instead of stdio or plain TCP. This is an additive
// transport beyond spec.md's stdio/tcp pair (see SPEC_FULL.md's domain
// stack); the bidirectional Stream it returns is indistinguishable from the
// other two to the DAP client.
func QUICDialSpawn(ctx context.Context, cmdPath string, args []string, addr string, dialTimeout time.Duration) (*Stream, error) {
	cmd := exec.Command(cmdPath, args...)
	cmd.Stderr = osStderr()
	setpgid(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("adaptertransport: start %s: %w", cmdPath, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // adapter is a local/trusted subprocess, not a public endpoint
		NextProtos:         []string{"dap"},
	}

	var (
		conn quic.Connection
		err  error
	)

	deadline := time.Now().Add(dialTimeout)
	for time.Now().Before(deadline) {
		conn, err = quic.DialAddr(dialCtx, addr, tlsConf, nil)
		if err == nil {
			break
		}

		select {
		case <-dialCtx.Done():
			_ = killProcess(cmd)

			return nil, fmt.Errorf("adaptertransport: quic dial %s: %w", addr, dialCtx.Err())
		case <-time.After(25 * time.Millisecond):
		}
	}

	if err != nil {
		_ = killProcess(cmd)

		return nil, fmt.Errorf("adaptertransport: quic dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = killProcess(cmd)

		return nil, fmt.Errorf("adaptertransport: quic open stream: %w", err)
	}

	rw := &rwCloser{Reader: stream, Writer: stream, Closer: quicStreamCloser{stream, conn}}

	return &Stream{
		Reader: bufio.NewReader(rw),
		Writer: bufio.NewWriter(rw),
		closer: rw,
		kill:   func() error { return killProcess(cmd) },
	}, nil
}

type quicStreamCloser struct {
	stream *quic.Stream
	conn   quic.Connection
}

func (c quicStreamCloser) Close() error {
	_ = c.stream.Close()

	return c.conn.CloseWithError(0, "broker shutdown")
}
