package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyd-home/provisiond/pkg/provision"
	"github.com/cyd-home/provisiond/pkg/registry"
	"github.com/cyd-home/provisiond/pkg/validator"
	"github.com/cyd-home/provisiond/pkg/wire"
)

// DefaultPort is the default provisioning UDP port.
const DefaultPort = 12345

const (
	// receiveBackoff is how long the receive loop pauses after an error
	// before trying again.
	receiveBackoff = 1 * time.Second

	// shutdownGrace bounds how long Stop waits for in-flight handlers.
	shutdownGrace = 5 * time.Second
)

// UDPConfig configures a UDPListener.
type UDPConfig struct {
	// Address to listen on (e.g. ":12345"). Defaults to ":12345".
	Address string

	// Logger for transport logging (optional).
	Logger *slog.Logger
}

// UDPListener serves provisioning requests over UDP.
type UDPListener struct {
	config  UDPConfig
	service *provision.Service
	logger  *slog.Logger

	conn *net.UDPConn

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup // receive loop + in-flight handlers
}

// NewUDPListener creates a UDP listener serving the given provisioning
// pipeline.
func NewUDPListener(config UDPConfig, service *provision.Service) *UDPListener {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UDPListener{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Start binds the socket and begins receiving datagrams.
func (l *UDPListener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener already running")
	}

	addr, err := net.ResolveUDPAddr("udp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", l.config.Address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.conn = conn

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running.Store(true)

	l.logger.Info("UDP listener started", "addr", conn.LocalAddr().String())

	l.wg.Add(1)
	go l.receiveLoop()

	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (l *UDPListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop closes the socket, stopping intake, then waits up to a bounded grace
// period for in-flight handlers before abandoning them.
func (l *UDPListener) Stop() error {
	if !l.running.Load() {
		return nil
	}
	l.running.Store(false)
	l.cancel()
	l.conn.Close()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		l.logger.Warn("UDP listener shutdown grace period expired; abandoning in-flight handlers")
	}
	return nil
}

// receiveLoop reads datagrams until the listener stops. One handler
// goroutine is spawned per datagram; a failed read never terminates the
// loop, it backs off briefly and continues.
func (l *UDPListener) receiveLoop() {
	defer l.wg.Done()

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if !l.running.Load() || l.ctx.Err() != nil {
				return
			}
			l.logger.Error("error receiving UDP datagram", "error", err)
			select {
			case <-time.After(receiveBackoff):
				continue
			case <-l.ctx.Done():
				return
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleDatagram(data, remote)
		}()
	}
}

// handleDatagram decodes one envelope, runs the pipeline, and replies to the
// originating address. Errors are answered with a structured status code;
// nothing here can take down the receive loop.
func (l *UDPListener) handleDatagram(data []byte, remote *net.UDPAddr) {
	l.logger.Debug("received datagram", "remote", remote.String(), "bytes", len(data))

	resp := l.process(data)

	out, err := wire.EncodeResponse(resp)
	if err != nil {
		l.logger.Error("failed to encode response", "remote", remote.String(), "error", err)
		return
	}
	if _, err := l.conn.WriteToUDP(out, remote); err != nil {
		l.logger.Error("failed to send response", "remote", remote.String(), "error", err)
		return
	}
	l.logger.Debug("sent response", "remote", remote.String(), "status", resp.Status.String())
}

// process turns a raw datagram into a response envelope.
func (l *UDPListener) process(data []byte) *wire.Response {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return &wire.Response{
			Status: wire.StatusMalformedRequest,
			Error:  "undecodable request envelope",
		}
	}

	grant, err := l.service.Provision(l.ctx, provision.Request{
		DeviceID:    req.DeviceID,
		DeviceType:  req.DeviceType,
		MACAddress:  req.MACAddress,
		RequestType: req.RequestType,
	})
	if err != nil {
		return errorResponse(err, l.logger)
	}

	return &wire.Response{
		Status:     wire.StatusSuccess,
		Token:      grant.Token,
		BrokerHost: grant.BrokerHost,
		BrokerPort: grant.BrokerPort,
	}
}

// errorResponse maps pipeline errors to wire status codes, mirroring the
// HTTP rejection categories.
func errorResponse(err error, logger *slog.Logger) *wire.Response {
	switch {
	case errors.Is(err, provision.ErrMissingField):
		return &wire.Response{
			Status: wire.StatusMissingField,
			Error:  "missing required field",
		}
	case errors.Is(err, provision.ErrUnsupportedRequestType):
		return &wire.Response{
			Status: wire.StatusUnsupportedRequestType,
			Error:  "unsupported request type",
		}
	case errors.Is(err, provision.ErrDeviceDenied), errors.Is(err, validator.ErrDenied):
		return &wire.Response{
			Status: wire.StatusNotAuthorized,
			Error:  "device validation failed",
		}
	case errors.Is(err, registry.ErrStorage):
		logger.Error("registry failure handling datagram", "error", err)
		return &wire.Response{
			Status: wire.StatusInternal,
			Error:  "internal error",
		}
	default:
		logger.Error("unexpected error handling datagram", "error", err)
		return &wire.Response{
			Status: wire.StatusInternal,
			Error:  "internal error",
		}
	}
}
