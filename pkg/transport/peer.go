package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkovalenko/udpflow/internal/util"
	"github.com/dkovalenko/udpflow/pkg/diagnostics"
	"github.com/dkovalenko/udpflow/pkg/fragment"
	"github.com/dkovalenko/udpflow/pkg/keepalive"
	"github.com/dkovalenko/udpflow/pkg/retransmit"
	"github.com/dkovalenko/udpflow/pkg/session"
	"github.com/dkovalenko/udpflow/pkg/stats"
	"github.com/dkovalenko/udpflow/pkg/storage"
	"github.com/dkovalenko/udpflow/pkg/wire"
	"github.com/dkovalenko/udpflow/pkg/window"
)

// sweepInterval is how often the event loop opportunistically checks the
// in-flight table for timed-out packets (§4.4: "invoked opportunistically
// on every iteration of the event loop").
const sweepInterval = 250 * time.Millisecond

// diagnosticsInterval is how often the event loop logs a resource-usage
// snapshot, piggybacking on the keep-alive supervisor's notion of "this
// connection is still alive and worth watching".
const diagnosticsInterval = 30 * time.Second

// Peer is the single per-connection event loop described in §2: it is
// simultaneously a sender (one outbound session state machine) and a
// receiver (one inbound session state machine) sharing one socket. Every
// field touched by dispatch logic is owned exclusively by the Run
// goroutine; the few fields reachable from other goroutines (the socket,
// the in-flight table, the advertised-window snapshot) carry their own
// synchronization.
type Peer struct {
	cfg  *Config
	sock *Socket
	log  *slog.Logger

	outbound *session.Session
	inbound  *session.Session

	win      *window.Controller
	inflight *retransmit.Table

	advertisedWindow atomic.Int32

	lastOutgoingMu sync.Mutex
	lastOutgoing   map[uint32][]byte

	reassembly *fragment.Store

	pendingPayload      wire.Payload
	currentOutboundIter *fragment.Outbound
	outboundExhausted   bool
	corruptArmed        bool

	msgBuffer           *storage.MessageSpillBuffer
	fileWriter          *storage.FileWriter
	fileNameBuf         []byte
	fileNameComplete    bool
	pendingFileContent  [][]byte

	submitQueue *SubmitQueue
	submitCh    chan wire.Payload
	controlCh   chan controlMsg

	keepAlive *keepalive.Supervisor
	diag      *diagnostics.Monitor

	outStats *stats.Tracker
	inStats  *stats.Tracker

	OnMessage    func(content []byte)
	OnFile       func(name, path string)
	OnTerminated func(reason string)
	OnStats      func(snapshot stats.Snapshot)
}

// New builds a Peer bound to an already-dialed socket.
func New(cfg *Config, sock *Socket, log *slog.Logger) (*Peer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Peer{
		cfg:          cfg,
		sock:         sock,
		log:          log,
		outbound:     session.New(),
		inbound:      session.New(),
		win:          window.New(),
		inflight:     retransmit.New(cfg.RetransmitTimeout, log),
		lastOutgoing: make(map[uint32][]byte),
		submitQueue:  NewSubmitQueue(),
		submitCh:     make(chan wire.Payload, 8),
		controlCh:    make(chan controlMsg, 4),
		diag:         diagnostics.NewMonitor(),
	}
	p.win.SetMax(cfg.MaxWindow)
	p.advertisedWindow.Store(int32(p.win.Size()))
	p.keepAlive = keepalive.NewWithParams(p, cfg.KeepAliveInterval, cfg.KeepAliveTimeout,
		cfg.HeartbeatFailureThreshold, log, p.onHeartbeatFailure)
	return p, nil
}

// SendKeepAlive implements keepalive.Sender. It is called from the
// supervisor's own goroutine, never from Run, so it only touches
// goroutine-safe state (the socket, the atomic window snapshot, the
// mutex-guarded lastOutgoing map).
func (p *Peer) SendKeepAlive(seq uint32) {
	pkt := wire.NewKeepAlive(seq, p.snapshotWindow())
	raw := wire.Encode(pkt)
	p.rememberOutgoing(seq, raw)
	if err := p.sock.Send(raw); err != nil {
		p.log.Warn("keepalive send failed", "error", err)
	}
}

// onHeartbeatFailure is the keepalive.Supervisor's onTerminate callback: it
// runs on the supervisor's own goroutine, so it only touches terminate,
// which is itself goroutine-safe.
func (p *Peer) onHeartbeatFailure(reason string) {
	action := Classify(ErrHeartbeatFailure)
	LogAction(p.log, action, "heartbeat supervisor", fmt.Errorf("%w: %s", ErrHeartbeatFailure, reason))
	p.terminate(reason)
}

func (p *Peer) terminate(reason string) {
	_ = p.sock.Close()
	if p.OnTerminated != nil {
		p.OnTerminated(reason)
	}
}

func (p *Peer) snapshotWindow() uint16 {
	return uint16(p.advertisedWindow.Load())
}

func (p *Peer) rememberOutgoing(seq uint32, raw []byte) {
	p.lastOutgoingMu.Lock()
	p.lastOutgoing[seq] = raw
	p.lastOutgoingMu.Unlock()
}

func (p *Peer) lookupOutgoing(seq uint32) ([]byte, bool) {
	p.lastOutgoingMu.Lock()
	defer p.lastOutgoingMu.Unlock()
	raw, ok := p.lastOutgoing[seq]
	return raw, ok
}

// Submit hands a local payload to the peer, blocking only long enough to
// enqueue it onto the event loop's channel.
func (p *Peer) Submit(payload wire.Payload) {
	p.submitCh <- payload
}

// controlMsg carries operator-driven changes that must execute on the
// event loop goroutine since they touch loop-owned state (cfg.DestDir) or
// trigger shutdown.
type controlMsg struct {
	destDir   string
	terminate bool
}

// SetDestDir redirects where finished incoming files are written, without
// disturbing any transfer already in flight.
func (p *Peer) SetDestDir(dir string) {
	p.controlCh <- controlMsg{destDir: dir}
}

// RequestTerminate asks the event loop to close the connection, the same
// path the keep-alive supervisor uses on heartbeat failure.
func (p *Peer) RequestTerminate() {
	p.controlCh <- controlMsg{terminate: true}
}

// Run drives the event loop until ctx is cancelled or the socket closes.
func (p *Peer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.keepAlive.Start(ctx)
	defer p.keepAlive.Stop()

	raws := make(chan []byte, 32)
	readErrs := make(chan error, 1)
	go p.readLoop(ctx, raws, readErrs)

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	diagTicker := time.NewTicker(diagnosticsInterval)
	defer diagTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrs:
			return err
		case raw := <-raws:
			p.handleDatagram(raw)
		case payload := <-p.submitCh:
			p.handleSubmit(payload)
		case ctrl := <-p.controlCh:
			p.handleControl(ctrl)
		case <-sweep.C:
			p.handleSweep()
		case <-diagTicker.C:
			snap := p.diag.Sample()
			p.log.Debug("resource snapshot", "uptime", snap.Uptime, "goroutines", snap.NumGoroutine,
				"heap_alloc", snap.HeapAlloc, "num_gc", snap.NumGC)
		}
	}
}

func (p *Peer) readLoop(ctx context.Context, out chan<- []byte, errs chan<- error) {
	buf := make([]byte, p.cfg.ReceiveBufferSize)
	for {
		n, err := p.sock.Receive(buf)
		if err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- cp:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Peer) handleControl(ctrl controlMsg) {
	if ctrl.terminate {
		action := Classify(ErrOperatorTerminate)
		LogAction(p.log, action, "operator control", ErrOperatorTerminate)
		p.terminate("operator requested termination")
		return
	}
	if ctrl.destDir != "" {
		exists, isDir, err := util.CheckDirectory(ctrl.destDir)
		if err != nil || !exists || !isDir {
			p.log.Warn("rejected destination folder change", "dir", ctrl.destDir,
				"exists", exists, "is_dir", isDir, "error", err)
			return
		}
		p.log.Info("destination folder changed", "dir", ctrl.destDir)
		p.cfg.DestDir = ctrl.destDir
	}
}

func (p *Peer) handleSweep() {
	due := p.inflight.Sweep(time.Now())
	for _, raw := range due {
		if err := p.sock.Send(raw); err != nil {
			p.log.Warn("retransmit failed", "error", err)
		}
	}
}

func (p *Peer) handleDatagram(raw []byte) {
	pkt, result := wire.Decode(raw)
	switch result {
	case wire.DecodeMalformed:
		action := Classify(ErrMalformedPacket)
		LogAction(p.log, action, "decode datagram", fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(raw)))
		return
	case wire.DecodeCRCFailed:
		action := Classify(ErrChecksumMismatch)
		LogAction(p.log, action, "decode datagram",
			fmt.Errorf("%w: seq %d type %s", ErrChecksumMismatch, pkt.SequenceNumber, pkt.Type))
		if action == ActionRequestResend {
			p.sendResend(pkt)
		}
		return
	}

	switch pkt.Type {
	case wire.TypeStart:
		p.handleStart(pkt)
	case wire.TypeAnswer:
		p.handleAnswer(pkt)
	case wire.TypeFinish:
		p.handleFinish(pkt)
	case wire.TypeSendData:
		p.handleSendData(pkt)
	case wire.TypeSendFile:
		p.handleSendFile(pkt)
	case wire.TypeConfirmData, wire.TypeConfirmFile:
		p.handleConfirm(pkt.SequenceNumber)
	case wire.TypeResend:
		p.handleResend(pkt)
	case wire.TypeKeepAlive:
		p.handleKeepAliveRequest(pkt)
	case wire.TypeKeepAliveReply:
		p.keepAlive.NoteReply()
	}
}

func (p *Peer) sendTracked(pkt *wire.Packet) {
	raw := wire.Encode(pkt)
	p.rememberOutgoing(pkt.SequenceNumber, raw)
	if err := p.sock.Send(raw); err != nil {
		p.log.Warn("send failed", "error", err, "type", pkt.Type)
		return
	}
	p.keepAlive.NoteActivity()
}

// sendResend answers a CRC-failed datagram, echoing the faulty packet's
// sequence, window and flags exactly as §4.4 specifies.
func (p *Peer) sendResend(faulty *wire.Packet) {
	p.sendTracked(wire.NewResend(faulty.SequenceNumber, faulty.Window, faulty.Flags))
}

// handleResend re-transmits whatever this peer last sent under the
// requested sequence number, without minting a new sequence (§4.4 "finalRequest").
func (p *Peer) handleResend(pkt *wire.Packet) {
	raw, ok := p.lookupOutgoing(pkt.SequenceNumber)
	if !ok {
		p.log.Warn("resend requested for unknown sequence", "seq", pkt.SequenceNumber)
		return
	}
	if err := p.sock.Send(raw); err != nil {
		p.log.Warn("resend failed", "error", err)
	}
}

func (p *Peer) handleKeepAliveRequest(pkt *wire.Packet) {
	reply := wire.NewKeepAliveReply(pkt.SequenceNumber+1, p.snapshotWindow())
	p.sendTracked(reply)
}

// --- sender-role dispatch -------------------------------------------------

func (p *Peer) handleSubmit(payload wire.Payload) {
	if p.outbound.State() != session.StateIdle {
		p.submitQueue.Push(payload)
		return
	}
	p.startSubmit(payload)
}

func (p *Peer) startSubmit(payload wire.Payload) {
	kind := wire.KindMessage
	if payload.Kind == wire.PayloadFile {
		kind = wire.KindFile
	}
	start, err := p.outbound.Submit(kind, p.snapshotWindow())
	if err != nil {
		p.log.Error("failed to start submission", "error", err)
		return
	}
	p.pendingPayload = payload
	p.corruptArmed = p.cfg.CorruptFirstFragment || payload.CorruptFirst

	if payload.Kind == wire.PayloadFile {
		p.outStats = stats.NewTracker(stats.DirectionSend, "file", payload.Name, int64(len(payload.Content)))
	} else {
		p.outStats = stats.NewTracker(stats.DirectionSend, "message", "", int64(len(payload.Message)))
	}

	p.sendTracked(start)
}

func (p *Peer) handleAnswer(pkt *wire.Packet) {
	if err := p.outbound.OnAnswer(pkt.SequenceNumber); err != nil {
		p.log.Debug("ignoring answer in unexpected state", "error", err)
		return
	}
	p.beginFragmenting()
}

func (p *Peer) beginFragmenting() {
	fragmentSize := p.cfg.FragmentSize
	if p.pendingPayload.FragmentSize > 0 {
		fragmentSize = p.pendingPayload.FragmentSize
	}

	var ob *fragment.Outbound
	var err error
	if p.pendingPayload.Kind == wire.PayloadFile {
		ob, err = fragment.NewFileOutbound(p.pendingPayload.Name, bytes.NewReader(p.pendingPayload.Content),
			fragmentSize, p.snapshotWindow(), p.outbound.NextSequence)
	} else {
		ob, err = fragment.NewMessageOutbound(p.pendingPayload.Message, fragmentSize,
			p.snapshotWindow(), p.outbound.NextSequence)
	}
	if err != nil {
		p.log.Error("failed to build outbound fragmenter", "error", err)
		return
	}
	p.currentOutboundIter = ob
	p.outboundExhausted = false
	p.fillWindow()
}

func (p *Peer) fillWindow() {
	for p.currentOutboundIter != nil {
		outstanding := p.inflight.Count()
		if !p.win.CanSendMore(outstanding) {
			return
		}
		pkt, err := p.currentOutboundIter.Next()
		if err == io.EOF {
			p.outboundExhausted = true
			p.currentOutboundIter = nil
			p.tryFinish()
			return
		}
		if err != nil {
			p.log.Error("fragment read failed", "error", err)
			return
		}
		sealed := wire.Encode(pkt)
		p.inflight.Track(pkt.SequenceNumber, sealed)
		p.rememberOutgoing(pkt.SequenceNumber, sealed)

		onWire := sealed
		if p.corruptArmed {
			onWire = append([]byte(nil), sealed...)
			onWire[len(onWire)-1] ^= 0xFF
			p.corruptArmed = false
			p.log.Debug("corrupted first outbound fragment for diagnostic purposes", "seq", pkt.SequenceNumber)
		}
		if err := p.sock.Send(onWire); err != nil {
			p.log.Warn("data send failed", "error", err)
			return
		}
		p.keepAlive.NoteActivity()
		if p.outStats != nil {
			p.outStats.RecordFragment(len(pkt.Payload))
		}
	}
}

func (p *Peer) tryFinish() {
	if !p.outboundExhausted || p.inflight.Count() != 0 {
		return
	}
	fin, err := p.outbound.RequestFinish(p.snapshotWindow())
	if err != nil {
		p.log.Debug("finish request skipped", "error", err)
		return
	}
	p.sendTracked(fin)
}

func (p *Peer) handleConfirm(seq uint32) {
	rtt, existed := p.inflight.Ack(seq)
	if existed {
		p.win.OnConfirm(rtt)
		p.advertisedWindow.Store(int32(p.win.Size()))
	}
	p.fillWindow()
	p.tryFinish()
}

// --- receiver-role dispatch ------------------------------------------------

func (p *Peer) handleStart(pkt *wire.Packet) {
	kind := wire.FlagKind(pkt.Flags)
	answer, err := p.inbound.OnStart(pkt.SequenceNumber, kind, p.snapshotWindow())
	if errors.Is(err, session.ErrDuplicateStart) {
		action := Classify(ErrDuplicatePacket)
		LogAction(p.log, action, "duplicate start", err)
		return
	}
	if err != nil {
		p.log.Debug("ignoring start in unexpected state", "error", err)
		return
	}

	p.reassembly = fragment.NewStore(pkt.SequenceNumber + 1)
	p.fileNameBuf = nil
	p.fileNameComplete = false
	p.pendingFileContent = nil
	p.fileWriter = nil
	if kind == wire.KindMessage {
		p.msgBuffer = storage.NewMessageSpillBuffer(p.log)
		p.inStats = stats.NewTracker(stats.DirectionReceive, "message", "", 0)
	} else {
		p.msgBuffer = nil
		p.inStats = stats.NewTracker(stats.DirectionReceive, "file", "", 0)
	}
	p.sendTracked(answer)
}

func (p *Peer) handleSendData(pkt *wire.Packet) {
	if p.reassembly == nil {
		p.log.Debug("dropping data packet with no active inbound session", "seq", pkt.SequenceNumber)
		return
	}
	p.reassembly.Put(pkt.SequenceNumber, pkt.Payload, 0)
	p.sendTracked(wire.NewConfirmData(pkt.SequenceNumber, p.snapshotWindow()))
	if p.inStats != nil {
		p.inStats.RecordFragment(len(pkt.Payload))
	}

	for _, f := range p.reassembly.Drain() {
		if p.msgBuffer != nil {
			if err := p.msgBuffer.Append(f.Payload); err != nil {
				p.log.Error("failed to append message fragment", "error", err)
			}
		}
	}
}

func (p *Peer) handleSendFile(pkt *wire.Packet) {
	if p.reassembly == nil {
		p.log.Debug("dropping file packet with no active inbound session", "seq", pkt.SequenceNumber)
		return
	}
	p.reassembly.Put(pkt.SequenceNumber, pkt.Payload, pkt.NameLength)
	p.sendTracked(wire.NewConfirmFile(pkt.SequenceNumber, p.snapshotWindow()))
	if p.inStats != nil {
		p.inStats.RecordFragment(len(pkt.Payload))
	}

	for _, f := range p.reassembly.Drain() {
		p.consumeFileFragment(f)
	}
}

func (p *Peer) consumeFileFragment(f fragment.Fragment) {
	name, content := fragment.SplitName(f.Payload, f.NameLength)

	if p.fileNameComplete {
		p.appendFileContent(content)
		return
	}

	p.fileNameBuf = append(p.fileNameBuf, name...)
	if len(content) == 0 {
		return
	}
	p.completeFileName()
	p.appendFileContent(content)
}

func (p *Peer) completeFileName() {
	p.fileNameComplete = true
	writer, err := storage.NewFileWriter(p.cfg.DestDir, string(p.fileNameBuf), p.log)
	if err != nil {
		p.log.Error("failed to open file writer", "error", err)
		return
	}
	p.fileWriter = writer
	for _, pending := range p.pendingFileContent {
		p.appendFileContent(pending)
	}
	p.pendingFileContent = nil
}

func (p *Peer) appendFileContent(content []byte) {
	if len(content) == 0 || p.fileWriter == nil {
		return
	}
	if err := p.fileWriter.Append(content); err != nil {
		p.log.Error("failed to append file fragment", "error", err)
	}
}

func (p *Peer) handleFinish(pkt *wire.Packet) {
	if wire.IsFinishConfirm(pkt.Flags) {
		p.handleFinishConfirm()
		return
	}
	p.handleFinishRequest(pkt)
}

func (p *Peer) handleFinishConfirm() {
	if err := p.outbound.OnFinishConfirm(); err != nil {
		p.log.Debug("ignoring finish confirm in unexpected state", "error", err)
		return
	}
	if p.outStats != nil {
		p.emitStats(p.outStats)
		p.outStats = nil
	}
	if next, ok := p.submitQueue.Pop(); ok {
		p.startSubmit(next)
	}
}

func (p *Peer) emitStats(tr *stats.Tracker) {
	snap := tr.Snapshot()
	p.log.Info("transfer complete", "direction", snap.Direction, "kind", snap.Kind,
		"bytes", snap.BytesMoved, "fragments", snap.FragmentsAcked, "throughput_bps", snap.ThroughputBps)
	if p.OnStats != nil {
		p.OnStats(snap)
	}
}

func (p *Peer) handleFinishRequest(pkt *wire.Packet) {
	if p.inbound.State() != session.StateReceiving {
		p.log.Debug("ignoring finish request in unexpected state")
		return
	}

	kind := p.inbound.Kind()
	if kind == wire.KindFile {
		if !p.fileNameComplete && len(p.fileNameBuf) > 0 {
			p.completeFileName()
		}
		if p.fileWriter != nil {
			path, err := p.fileWriter.Finish()
			if err != nil {
				p.log.Error("failed to finalize received file", "error", err)
			} else if p.OnFile != nil {
				p.OnFile(string(p.fileNameBuf), path)
			}
		}
	} else if p.msgBuffer != nil {
		data, err := p.msgBuffer.GetCompleteMessage()
		if err != nil {
			p.log.Error("failed to assemble received message", "error", err)
		} else if p.OnMessage != nil {
			p.OnMessage(data)
		}
		_ = p.msgBuffer.Close()
	}

	confirm, err := p.inbound.OnFinish(pkt.SequenceNumber, p.snapshotWindow())
	if err != nil {
		action := Classify(ErrSessionUnrecoverable)
		LogAction(p.log, action, "build finish confirm", fmt.Errorf("%w: %v", ErrSessionUnrecoverable, err))
		p.resetInboundState()
		return
	}
	p.sendTracked(confirm)

	if p.inStats != nil {
		p.emitStats(p.inStats)
	}
	p.resetInboundState()
}

// resetInboundState walks the receive side back to Idle, discarding
// whatever reassembly, file or message buffers the current inbound
// transfer was using.
func (p *Peer) resetInboundState() {
	// An inbound session that is already Idle is kept, so it still remembers
	// the last processed START and can ignore a late duplicate of it.
	if p.inbound.State() != session.StateIdle {
		p.inbound = session.New()
	}
	if p.reassembly != nil {
		p.reassembly.Reset()
	}
	p.fileWriter = nil
	p.fileNameBuf = nil
	p.fileNameComplete = false
	p.pendingFileContent = nil
	p.msgBuffer = nil
	p.inStats = nil
}

// Close releases the socket and any staged receive-side storage.
func (p *Peer) Close() error {
	if p.msgBuffer != nil {
		_ = p.msgBuffer.Close()
	}
	if p.fileWriter != nil {
		p.fileWriter.Abort()
	}
	return p.sock.Close()
}

