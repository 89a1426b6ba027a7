// Package carbon delivers queued datapoints to a Graphite carbon receiver
// over the plaintext line protocol or the pickle batch protocol.
package carbon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/mesos-stats/internal/metrics"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

// ErrDelivery is returned when a chunk could not be sent after one reconnect
var ErrDelivery = errors.New("carbon delivery failed")

const (
	protocolLine   = "line"
	protocolPickle = "pickle"
)

// Config holds carbon delivery configuration
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PicklePort int    `yaml:"pickle_port"`
	Pickle     bool   `yaml:"pickle"`
	Prefix     string `yaml:"prefix"`
	ChunkSize  int    `yaml:"chunk_size"`
	DryRun     bool   `yaml:"dry_run"`
}

// DefaultConfig returns the default carbon configuration
func DefaultConfig() Config {
	return Config{
		Port:       2003,
		PicklePort: 2004,
		ChunkSize:  500,
	}
}

// Dialer opens connections to carbon. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Sender drains a queue into carbon
type Sender struct {
	logger *zap.Logger
	config Config
	dialer Dialer

	conn net.Conn
}

// NewSender creates a Sender using a plain TCP dialer
func NewSender(logger *zap.Logger, config Config) *Sender {
	return NewSenderWithDialer(logger, config, &net.Dialer{})
}

// NewSenderWithDialer creates a Sender that connects through dialer
func NewSenderWithDialer(logger *zap.Logger, config Config, dialer Dialer) *Sender {
	defaults := DefaultConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.Port <= 0 {
		config.Port = defaults.Port
	}
	if config.PicklePort <= 0 {
		config.PicklePort = defaults.PicklePort
	}

	return &Sender{
		logger: logger,
		config: config,
		dialer: dialer,
	}
}

func (s *Sender) protocol() string {
	if s.config.Pickle {
		return protocolPickle
	}
	return protocolLine
}

// Address returns the host:port the sender writes to
func (s *Sender) Address() string {
	port := s.config.Port
	if s.config.Pickle {
		port = s.config.PicklePort
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(port))
}

// Deliver drains queue in chunks and writes each chunk to carbon. Every dial
// and write must finish within ioTimeout of the call. A chunk that fails is
// retried once on a fresh connection; if that fails too, the rest of the
// queue is dropped and ErrDelivery is returned. It returns the number of
// datapoints written.
func (s *Sender) Deliver(ctx context.Context, queue timeseries.Queue, ioTimeout time.Duration) (int, error) {
	defer s.close()

	start := time.Now()
	deadline := start.Add(ioTimeout)
	protocol := s.protocol()
	sent, chunks := 0, 0

	for {
		chunk := queue.Drain(s.config.ChunkSize)
		if len(chunk) == 0 {
			break
		}
		chunks++

		if s.config.DryRun {
			sent += len(chunk)
			continue
		}

		if err := ctx.Err(); err != nil {
			dropped := len(chunk) + queue.Discard()
			metrics.RecordDatapointsDropped(len(chunk))
			return sent, fmt.Errorf("%w: cancelled with %d datapoints pending: %v", ErrDelivery, dropped, err)
		}
		if ioTimeout <= 0 {
			dropped := len(chunk) + queue.Discard()
			metrics.RecordDatapointsDropped(len(chunk))
			metrics.RecordDeliveryFailure(protocol)
			return sent, fmt.Errorf("%w: no time left for %d datapoints", ErrDelivery, dropped)
		}

		payload := s.encode(chunk)
		if err := s.send(ctx, payload, deadline); err != nil {
			s.logger.Warn("Carbon send failed, reconnecting",
				zap.String("address", s.Address()),
				zap.Int("chunk", chunks),
				zap.Error(err))
			metrics.RecordDeliveryRetry(protocol)
			s.close()

			if err := s.send(ctx, payload, deadline); err != nil {
				dropped := len(chunk) + queue.Discard()
				metrics.RecordDatapointsDropped(len(chunk))
				metrics.RecordDeliveryFailure(protocol)
				s.logger.Error("Carbon send failed after reconnect, dropping remaining datapoints",
					zap.String("address", s.Address()),
					zap.Int("sent", sent),
					zap.Int("dropped", dropped),
					zap.Error(err))
				return sent, fmt.Errorf("%w: %s: %v", ErrDelivery, s.Address(), err)
			}
		}

		sent += len(chunk)
		metrics.RecordDatapointsSent(protocol, len(chunk))
	}

	s.logger.Info("Carbon delivery finished",
		zap.String("protocol", protocol),
		zap.Bool("dryRun", s.config.DryRun),
		zap.Int("datapoints", sent),
		zap.Int("chunks", chunks),
		zap.Duration("took", time.Since(start)))
	return sent, nil
}

func (s *Sender) encode(chunk []timeseries.Datapoint) []byte {
	if s.config.Pickle {
		return encodePickle(s.config.Prefix, chunk)
	}
	return encodeLines(s.config.Prefix, chunk)
}

// send writes payload on the current connection, dialing first if needed
func (s *Sender) send(ctx context.Context, payload []byte, deadline time.Time) error {
	if s.conn == nil {
		dialCtx, cancel := context.WithDeadline(ctx, deadline)
		conn, err := s.dialer.DialContext(dialCtx, "tcp", s.Address())
		cancel()
		if err != nil {
			return fmt.Errorf("dial %s: %w", s.Address(), err)
		}
		s.conn = conn
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("write %d bytes: %w", len(payload), err)
	}
	return nil
}

func (s *Sender) close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// encodeLines renders points as "path value timestamp\n" lines
func encodeLines(prefix string, points []timeseries.Datapoint) []byte {
	var b bytes.Buffer
	b.Grow(len(points) * 64)

	for _, p := range points {
		p = p.WithPrefix(prefix)
		b.WriteString(p.Path)
		b.WriteByte(' ')
		b.WriteString(formatValue(p.Value))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(p.Timestamp, 10))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
