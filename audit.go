package goSession

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one session lifecycle record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives lifecycle events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs each event through a slog logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) SlogSink {
	return audit.SlogSink{Logger: logger}
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Logger:     logger,
	}, sink)
}
