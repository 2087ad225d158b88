// Package engine owns the completion-ring-driven event loop: the
// listening socket, the frame pool, and the session table, wired
// together into accept/recv/send/close verbs and a single poll loop
// that drains completions and dispatches them to their handler.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/classicwire/classicd/internal/config"
	"github.com/classicwire/classicd/internal/dispatch"
	"github.com/classicwire/classicd/internal/frame"
	"github.com/classicwire/classicd/internal/framepool"
	"github.com/classicwire/classicd/internal/ioring"
	"github.com/classicwire/classicd/internal/session"
)

// Engine is one server instance: one ring, one frame pool, one session
// table, all sized once at construction and never resized.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	ring     *ioring.Ring
	frames   *framepool.Pool[frame.Frame]
	sessions *session.Table
	world    dispatch.WorldHook

	listenerFD int32
	traceSeq   uint64
	snapshot   atomic.Pointer[Stats]
}

// New sizes and wires every fixed-capacity resource from cfg but does not
// yet bind the listening socket; call Listen for that.
func New(cfg *config.Config, logger *slog.Logger, world dispatch.WorldHook) (*Engine, error) {
	ring, err := ioring.New(uint32(cfg.Engine.QueueDepth))
	if err != nil {
		return nil, fmt.Errorf("engine: ring: %w", err)
	}
	frames, err := framepool.New[frame.Frame](cfg.Engine.FramePoolSize)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("engine: frame pool: %w", err)
	}
	sessions, err := session.NewTable(cfg.Engine.MaxConnections)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("engine: session table: %w", err)
	}
	if world == nil {
		world = dispatch.NoopWorldHook{}
	}
	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		ring:       ring,
		frames:     frames,
		sessions:   sessions,
		world:      world,
		listenerFD: frame.NoSession,
	}
	e.snapshot.Store(&Stats{SessionsMax: sessions.Cap(), FramesMax: frames.Cap()})
	return e, nil
}

// SetWorldHook replaces the collaborator that observes gameplay traffic.
// Exists because a world hook (e.g. the diagnostics trace hub) commonly
// needs a reference to the already-constructed Engine for its own stats
// endpoint, creating a construction-order cycle that passing the hook
// only through New cannot resolve.
func (e *Engine) SetWorldHook(world dispatch.WorldHook) {
	if world == nil {
		world = dispatch.NoopWorldHook{}
	}
	e.world = world
}

// Listen binds the configured address and queues the first accept.
func (e *Engine) Listen() error {
	fd, err := e.ring.OpenListener(e.cfg.Listen.Address)
	if err != nil {
		return fmt.Errorf("engine: listen: %w", err)
	}
	e.listenerFD = fd
	e.logger.Info("engine listening", "address", e.cfg.Listen.Address)
	return e.queueAccept()
}

func (e *Engine) nextTraceID() uint64 { return atomic.AddUint64(&e.traceSeq, 1) }

// Stats is a point-in-time snapshot of the engine's fixed-capacity
// resources, for the diagnostics surface.
type Stats struct {
	SessionsActive int
	SessionsMax    int
	FramesFree     int
	FramesMax      int
	TraceSeq       uint64
}

// Stats returns the most recently published snapshot. It never touches
// the session table or frame pool directly: those are mutated only from
// Run's single goroutine, and diagnostics requests arrive on arbitrary
// HTTP handler goroutines, so the only safe cross-goroutine read is this
// atomically published pointer.
func (e *Engine) Stats() Stats {
	return *e.snapshot.Load()
}

// publishStats recomputes the snapshot from live state. Called only from
// Run's goroutine, once per poll round that drained at least one
// completion.
func (e *Engine) publishStats() {
	active := 0
	for i := 0; i < e.sessions.Cap(); i++ {
		if e.sessions.Get(int32(i)).FD != -1 {
			active++
		}
	}
	e.snapshot.Store(&Stats{
		SessionsActive: active,
		SessionsMax:    e.sessions.Cap(),
		FramesFree:     e.frames.Available(),
		FramesMax:      e.frames.Cap(),
		TraceSeq:       atomic.LoadUint64(&e.traceSeq),
	})
}

func (e *Engine) newFrame(kind frame.Kind) (int32, *frame.Frame, bool) {
	idx, ok := e.frames.Alloc()
	if !ok {
		return 0, nil, false
	}
	f := e.frames.Get(idx)
	f.Reset()
	f.Kind = kind
	f.TraceID = e.nextTraceID()
	return idx, f, true
}

func (e *Engine) queueAccept() error {
	idx, f, ok := e.newFrame(frame.KindAccept)
	if !ok {
		return fmt.Errorf("engine: frame pool exhausted, cannot queue accept")
	}
	// IORING_OP_ACCEPT rejects a non-zero sqe.len, and a sockaddr pointer
	// would also need an addrlen pointer that Push does not set, so the
	// accept is queued without a peer-address buffer.
	if !e.ring.Push(ioring.OpAccept, e.listenerFD, nil, 0, uint64(idx)) {
		e.frames.Free(idx)
		return fmt.Errorf("engine: submission queue full, dropping accept")
	}
	return nil
}

func (e *Engine) queueRecv(sessionIdx int32) error {
	slot := e.sessions.Get(sessionIdx)
	idx, f, ok := e.newFrame(frame.KindRecv)
	if !ok {
		return fmt.Errorf("engine: frame pool exhausted, cannot queue recv")
	}
	f.Session = sessionIdx
	f.SessionFD = slot.FD
	buf := slot.WritePtr()
	f.RecvBuf = buf
	f.RecvCapacity = len(buf)
	// Seed with the unread tail. onRecv does not read this field: it
	// works from the session cursors, which already span the unread tail.
	f.BytesIn = int(slot.Readable())
	if len(buf) == 0 {
		e.frames.Free(idx)
		return fmt.Errorf("engine: session %d ring buffer full, cannot queue recv", sessionIdx)
	}
	if !e.ring.Push(ioring.OpRecv, slot.FD, unsafe.Pointer(&buf[0]), uint32(len(buf)), uint64(idx)) {
		e.frames.Free(idx)
		return fmt.Errorf("engine: submission queue full, dropping recv")
	}
	return nil
}

func (e *Engine) queueSend(sessionIdx int32, payload []byte) error {
	slot := e.sessions.Get(sessionIdx)
	idx, f, ok := e.newFrame(frame.KindSend)
	if !ok {
		return fmt.Errorf("engine: frame pool exhausted, cannot queue send")
	}
	f.Session = sessionIdx
	f.SessionFD = slot.FD
	f.SendBuf = payload
	f.SendCapacity = len(payload)
	if len(payload) == 0 {
		e.frames.Free(idx)
		return nil
	}
	if !e.ring.Push(ioring.OpSend, slot.FD, unsafe.Pointer(&payload[0]), uint32(len(payload)), uint64(idx)) {
		e.frames.Free(idx)
		return fmt.Errorf("engine: submission queue full, dropping send")
	}
	return nil
}

func (e *Engine) queueClose(sessionIdx int32, fd int32) error {
	idx, f, ok := e.newFrame(frame.KindClose)
	if !ok {
		return fmt.Errorf("engine: frame pool exhausted, cannot queue close")
	}
	f.Session = sessionIdx
	f.SessionFD = fd
	if !e.ring.Push(ioring.OpClose, fd, nil, 0, uint64(idx)) {
		e.frames.Free(idx)
		return fmt.Errorf("engine: submission queue full, dropping close")
	}
	return nil
}

// Run drains completions until ctx is cancelled. Each iteration submits
// pending verbs, pops every ready completion, and dispatches it; a round
// that drains nothing yields the processor (runtime.Gosched) and loops
// straight into the next submit/poll round. Run never sleeps or blocks
// waiting for a completion.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		default:
		}

		if _, err := e.ring.Submit(); err != nil {
			return fmt.Errorf("engine: submit: %w", err)
		}

		drained := 0
		for {
			c, ok := e.ring.PopCompletion()
			if !ok {
				break
			}
			e.dispatch(c)
			drained++
		}
		if drained > 0 {
			e.publishStats()
		}
		if drained == 0 {
			select {
			case <-ctx.Done():
				return e.shutdown()
			default:
				// Nothing ready; yield so in-flight work can progress
				// before the next submit/poll round.
				runtime.Gosched()
			}
		}
	}
}

func (e *Engine) shutdown() error {
	e.logger.Info("engine shutting down")
	for i := 0; i < e.sessions.Cap(); i++ {
		slot := e.sessions.Get(int32(i))
		if slot.FD != -1 {
			e.queueClose(int32(i), slot.FD)
		}
	}
	if e.listenerFD != frame.NoSession {
		e.queueClose(frame.NoSession, e.listenerFD)
	}
	e.ring.Submit()
	// Best-effort drain so close completions release their session slots
	// before the ring itself goes away.
	for {
		c, ok := e.ring.PopCompletion()
		if !ok {
			break
		}
		e.dispatch(c)
	}
	return e.ring.Close()
}

func (e *Engine) dispatch(c ioring.Completion) {
	idx := int32(c.UserData)
	f := e.frames.Get(idx)
	kind := f.Kind
	defer e.frames.Free(idx)

	switch kind {
	case frame.KindAccept:
		e.onAccept(f, c.Res)
	case frame.KindRecv:
		e.onRecv(f, c.Res)
	case frame.KindSend:
		e.onSend(f, c.Res)
	case frame.KindClose:
		e.onClose(f, c.Res)
	}
}

func (e *Engine) onAccept(f *frame.Frame, res int32) {
	// Always re-arm the listener so one slow or failed accept never stalls
	// the whole server.
	defer func() {
		if err := e.queueAccept(); err != nil {
			e.logger.Warn("re-arm accept failed", "error", err)
		}
	}()

	if res < 0 {
		e.logger.Warn("accept failed", "errno", res)
		return
	}
	peerFD := res
	idx, ok, err := e.sessions.Acquire(peerFD)
	if err != nil {
		e.logger.Error("session acquire failed", "error", err)
		e.queueClose(frame.NoSession, peerFD)
		return
	}
	if !ok {
		e.logger.Warn("session table full, rejecting connection")
		e.queueClose(frame.NoSession, peerFD)
		return
	}
	e.logger.Info("session accepted", "session", idx, "fd", peerFD, "trace", f.TraceID)
	if err := e.queueRecv(idx); err != nil {
		e.logger.Error("queue initial recv failed", "session", idx, "error", err)
	}
}

func (e *Engine) onRecv(f *frame.Frame, res int32) {
	if res <= 0 {
		e.closeSession(f.Session, f.SessionFD)
		return
	}
	slot := e.sessions.Get(f.Session)
	if slot.StaleFor(f.SessionFD) {
		return
	}
	slot.AdvanceWrite(uint64(res))
	slot.BytesIn += uint64(res)

	outcome := dispatch.ProcessInbound(f.Session, slot, e.world)
	if outcome.Malformed {
		e.logger.Warn("malformed packet, closing session", "session", f.Session)
		e.closeSession(f.Session, f.SessionFD)
		return
	}
	for _, reply := range outcome.Replies {
		if err := e.queueSend(f.Session, reply); err != nil {
			e.logger.Error("queue send failed", "session", f.Session, "error", err)
		}
	}
	if outcome.Disconnect {
		if outcome.CloseReason != "" {
			if outcome.CloseIsInfo {
				e.logger.Info("session closed", "session", f.Session, "reason", outcome.CloseReason)
			} else {
				e.logger.Warn("session closed", "session", f.Session, "reason", outcome.CloseReason)
			}
		}
		e.closeSession(f.Session, f.SessionFD)
		return
	}
	if err := e.queueRecv(f.Session); err != nil {
		e.logger.Error("re-arm recv failed", "session", f.Session, "error", err)
	}
}

func (e *Engine) onSend(f *frame.Frame, res int32) {
	if res < 0 {
		e.closeSession(f.Session, f.SessionFD)
		return
	}
	sent := int(res)
	f.BytesOut += sent
	if sent < len(f.SendBuf) {
		// Partial send: re-queue the remainder rather than dropping it or
		// reporting false success.
		remainder := f.SendBuf[sent:]
		if err := e.queueSend(f.Session, remainder); err != nil {
			e.logger.Error("re-queue partial send failed", "session", f.Session, "error", err)
			e.closeSession(f.Session, f.SessionFD)
		}
		return
	}
	slot := e.sessions.Get(f.Session)
	if !slot.StaleFor(f.SessionFD) {
		slot.BytesOut += uint64(sent)
	}
}

func (e *Engine) onClose(f *frame.Frame, _ int32) {
	if f.Session == frame.NoSession {
		return
	}
	slot := e.sessions.Get(f.Session)
	if slot.StaleFor(f.SessionFD) {
		return
	}
	if err := e.sessions.Release(f.Session); err != nil {
		e.logger.Error("session release failed", "session", f.Session, "error", err)
	}
}

func (e *Engine) closeSession(sessionIdx int32, fd int32) {
	if sessionIdx == frame.NoSession {
		return
	}
	slot := e.sessions.Get(sessionIdx)
	if slot.StaleFor(fd) {
		return
	}
	if slot.State == session.StateDisconnecting {
		// A close is already in flight; a failed recv/send completing
		// behind it must not queue a second one.
		return
	}
	slot.State = session.StateDisconnecting
	if err := e.queueClose(sessionIdx, fd); err != nil {
		e.logger.Error("queue close failed", "session", sessionIdx, "error", err)
	}
}
