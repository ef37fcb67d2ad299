// Package speech talks to an external speech-to-text service over gRPC so
// spoken requests arrive at the assistant as plain text.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// transcribeMethod is the full method name of the transcription RPC. The
// service exchanges structpb payloads, so no generated stubs are needed and
// the wire contract stays a deployment concern.
const transcribeMethod = "/speech.Transcriber/Transcribe"

var (
	// ErrNoInput reports audio that produced no usable transcript.
	ErrNoInput = errors.New("no speech detected in audio")

	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
	Close()
}

// Client is a gRPC Transcriber.
type Client struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// ClientConfig holds connection tuning for the transcription service.
type ClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultClientConfig returns the default connection tuning.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewClient connects to the transcription service and fails fast when the
// endpoint is unreachable.
func NewClient(addr string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultClientConfig()
	if addr != "" {
		cfg.Address = addr
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to speech service at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so a bad endpoint surfaces
	// here instead of on the first user request.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("speech service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to speech service", "address", cfg.Address)
	return &Client{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Transcribe sends audio to the service and returns the recognized text.
// Empty or whitespace-only transcripts come back as ErrNoInput.
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoInput
	}
	if format == "" {
		format = "wav"
	}

	req, err := structpb.NewStruct(map[string]any{
		"audio":  base64.StdEncoding.EncodeToString(audio),
		"format": format,
	})
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, transcribeMethod, req, resp); err != nil {
		return "", fmt.Errorf("transcribe call: %w", err)
	}

	text := strings.TrimSpace(stringField(resp, "text"))
	if text == "" {
		return "", ErrNoInput
	}

	c.logger.Debug("Transcription completed",
		"audio_bytes", len(audio),
		"transcript_length", len(text),
	)
	return text, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	if v, ok := s.Fields[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
