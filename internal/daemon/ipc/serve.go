package ipc

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/resolvekit/resolverd/internal/daemon/common/log"
)

// Evaluator runs one fanned-out command and returns its serialized result.
// An empty result is legal; the response frame is then empty.
type Evaluator interface {
	EvalCommand(cmd string) string
}

// Serve runs the sibling side of a peer channel: read a command frame,
// evaluate it, write the serialized result back. It returns when the channel
// closes or ctx is cancelled.
func Serve(ctx context.Context, conn net.Conn, eval Evaluator, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()

	for {
		cmd, err := ReadFrame(conn)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		result := eval.EvalCommand(string(cmd))
		if err := WriteFrame(conn, []byte(result)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Debug(map[string]any{"cmd": string(cmd), "bytes": len(result)}, "served peer command")
	}
}
