package transport

import (
	"errors"
	"time"

	"github.com/dkovalenko/udpflow/pkg/keepalive"
	"github.com/dkovalenko/udpflow/pkg/retransmit"
	"github.com/dkovalenko/udpflow/pkg/wire"
	"github.com/dkovalenko/udpflow/pkg/window"
)

// Config centralizes every tunable the transport needs, the way the
// reference protocol layer's TransferConfig gathers chunk, concurrency and
// retry settings in one place instead of scattering constants.
type Config struct {
	// FragmentSize bounds the payload-bearing portion of every outgoing
	// SEND_DATA/SEND_FILE packet.
	FragmentSize int `json:"fragment_size"`

	// MaxWindow is the soft local cap on the adaptive window (§9 open
	// question 4); it has no effect on the wire format.
	MaxWindow int `json:"max_window"`

	// RetransmitTimeout is the hard resend threshold for unacknowledged
	// packets.
	RetransmitTimeout time.Duration `json:"retransmit_timeout"`

	// KeepAliveInterval, KeepAliveTimeout and HeartbeatFailureThreshold
	// parameterize the keep-alive supervisor.
	KeepAliveInterval         time.Duration `json:"keep_alive_interval"`
	KeepAliveTimeout          time.Duration `json:"keep_alive_timeout"`
	HeartbeatFailureThreshold int           `json:"heartbeat_failure_threshold"`

	// DestDir is where completed files are written.
	DestDir string `json:"dest_dir"`

	// ReceiveBufferSize bounds one read off the socket; it must comfortably
	// exceed FragmentSize plus the wire header.
	ReceiveBufferSize int `json:"receive_buffer_size"`

	// CorruptFirstFragment, when set, inverts the last byte of the first
	// outbound data fragment of the next payload so the retransmit/RESEND path can
	// be exercised deliberately. It is a test and diagnostic hook, not a
	// feature a normal operator session flips on its own.
	CorruptFirstFragment bool `json:"corrupt_first_fragment"`
}

// DefaultConfig returns a Config with the values named throughout §4 and §9.
func DefaultConfig() *Config {
	return &Config{
		FragmentSize:              wire.MaxFragmentSize,
		MaxWindow:                 window.DefaultMaxSize,
		RetransmitTimeout:         retransmit.DefaultTimeout,
		KeepAliveInterval:         keepalive.Interval,
		KeepAliveTimeout:          keepalive.ReplyTimeout,
		HeartbeatFailureThreshold: keepalive.FailureThreshold,
		DestDir:                   ".",
		ReceiveBufferSize:         65535,
	}
}

// Validate reports whether the configuration is internally consistent,
// following the reference config's field-by-field checklist style.
func (c *Config) Validate() error {
	if c.FragmentSize <= 0 || c.FragmentSize > wire.MaxFragmentSize {
		return errors.New("transport: fragment_size must be between 1 and wire.MaxFragmentSize")
	}
	if c.MaxWindow < window.MinSize {
		return errors.New("transport: max_window must be at least window.MinSize")
	}
	if c.RetransmitTimeout <= 0 {
		return errors.New("transport: retransmit_timeout must be positive")
	}
	if c.KeepAliveInterval <= 0 {
		return errors.New("transport: keep_alive_interval must be positive")
	}
	if c.KeepAliveTimeout <= c.KeepAliveInterval {
		return errors.New("transport: keep_alive_timeout must exceed keep_alive_interval")
	}
	if c.HeartbeatFailureThreshold <= 0 {
		return errors.New("transport: heartbeat_failure_threshold must be positive")
	}
	if c.DestDir == "" {
		return errors.New("transport: dest_dir must not be empty")
	}
	if c.ReceiveBufferSize < wire.HeaderSize+c.FragmentSize {
		return errors.New("transport: receive_buffer_size too small for configured fragment_size")
	}
	return nil
}
