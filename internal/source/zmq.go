package source

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pebbe/zmq4"

	"posewatch/internal/logger"
)

const zmqReceiveTimeout = 250 * time.Millisecond

// ZMQSource pulls CBOR inference messages pushed by an external detector process.
type ZMQSource struct {
	endpoint string
	push     *PushSource
	logger   *logger.Logger
	clock    clock.Clock
	logEvery int
	dropped  int
}

// NewZMQSource creates a source connecting a PULL socket to endpoint.
func NewZMQSource(endpoint string, logger *logger.Logger, clk clock.Clock) *ZMQSource {
	if clk == nil {
		clk = clock.New()
	}
	return &ZMQSource{
		endpoint: endpoint,
		push:     NewPushSource(DefaultPushBuffer),
		logger:   logger,
		clock:    clk,
		logEvery: 100,
	}
}

func (s *ZMQSource) Results(ctx context.Context) (<-chan Result, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq socket: %w", err)
	}
	if err := socket.SetRcvtimeo(zmqReceiveTimeout); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to set zmq receive timeout: %w", err)
	}
	if err := socket.Connect(s.endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", s.endpoint, err)
	}

	out, err := s.push.Results(ctx)
	if err != nil {
		_ = socket.Close()
		return nil, err
	}

	go s.receive(ctx, socket)
	s.logger.Info("📡 Pulling inference results from %s", s.endpoint)
	return out, nil
}

func (s *ZMQSource) receive(ctx context.Context, socket *zmq4.Socket) {
	defer socket.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			if zmq4.AsErrno(err) == zmq4.ETERM {
				return
			}
			s.logger.Error("zmq receive error: %v", err)
			continue
		}

		res, err := DecodeCBOR(msg, s.clock.Now())
		if err != nil {
			s.dropped++
			if s.dropped%s.logEvery == 1 {
				s.logger.Warning("Skipping inference message (%d skipped so far): %v", s.dropped, err)
			}
			continue
		}

		if err := s.push.Deliver(ctx, res); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
				s.logger.Error("Failed to deliver inference result: %v", err)
			}
			return
		}
	}
}

func (s *ZMQSource) Close() error {
	return s.push.Close()
}
