package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SpillThreshold is the in-memory byte budget named in §4.3 before a
// large message's accumulated bytes are flushed to disk.
const SpillThreshold = 1 << 20 // ~1 MiB

// MessageSpillBuffer accumulates an inbound message's bytes in memory, and
// once SpillThreshold would be exceeded, flushes the accumulated prefix to
// a temporary file on disk. GetCompleteMessage concatenates that on-disk
// prefix with whatever remainder is still unflushed.
type MessageSpillBuffer struct {
	mem       []byte
	spillFile *os.File
	spilled   int64
	log       *slog.Logger
}

// NewMessageSpillBuffer creates an empty buffer.
func NewMessageSpillBuffer(log *slog.Logger) *MessageSpillBuffer {
	if log == nil {
		log = slog.Default()
	}
	return &MessageSpillBuffer{log: log}
}

// Append adds content to the buffer, spilling the in-memory portion to a
// temp file if the threshold would otherwise be exceeded.
func (b *MessageSpillBuffer) Append(content []byte) error {
	b.mem = append(b.mem, content...)
	if len(b.mem) <= SpillThreshold {
		return nil
	}
	if err := b.spill(); err != nil {
		return err
	}
	return nil
}

func (b *MessageSpillBuffer) spill() error {
	if b.spillFile == nil {
		f, err := os.CreateTemp("", "udpflow-message-*.spill")
		if err != nil {
			return fmt.Errorf("storage: create spill file: %w", err)
		}
		b.spillFile = f
	}
	n, err := b.spillFile.Write(b.mem)
	if err != nil {
		return fmt.Errorf("storage: write spill file: %w", err)
	}
	b.spilled += int64(n)
	b.mem = b.mem[:0]
	return nil
}

// GetCompleteMessage returns the full accumulated payload: the on-disk
// prefix, if any, concatenated with the unflushed in-memory remainder.
func (b *MessageSpillBuffer) GetCompleteMessage() ([]byte, error) {
	if b.spillFile == nil {
		out := make([]byte, len(b.mem))
		copy(out, b.mem)
		return out, nil
	}
	if _, err := b.spillFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("storage: seek spill file: %w", err)
	}
	prefix, err := io.ReadAll(b.spillFile)
	if err != nil {
		return nil, fmt.Errorf("storage: read spill file: %w", err)
	}
	out := make([]byte, 0, len(prefix)+len(b.mem))
	out = append(out, prefix...)
	out = append(out, b.mem...)
	return out, nil
}

// Close removes the backing spill file, if one was created. Scheduled by
// the caller to run at process exit or session end (§4.3).
func (b *MessageSpillBuffer) Close() error {
	if b.spillFile == nil {
		return nil
	}
	path := b.spillFile.Name()
	if err := b.spillFile.Close(); err != nil {
		return fmt.Errorf("storage: close spill file: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.log.Warn("failed to remove message spill file", "path", path, "error", err)
	}
	return nil
}
