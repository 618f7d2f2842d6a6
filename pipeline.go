package hantas

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hantas-hq/gohantas/codec"
	"github.com/hantas-hq/gohantas/frame"
	"github.com/hantas-hq/gohantas/queue"
	"github.com/hantas-hq/gohantas/ringbuffer"
	"github.com/hantas-hq/gohantas/transport"
)

// Option selects which connect/keep-alive request a Connect synthesizes and
// whether a legacyProbe gates Connected. Response decoding follows the frame
// variant, not the Option.
type Option int

const (
	// OptionGen2 is the Modbus-native pipeline: reads proceed over 0x03/0x04,
	// and the synthesized info read is the 0x11 Read-Info request for the
	// 200 byte DeviceInfo block.
	OptionGen2 Option = iota
	// OptionLegacy is the vendor-serial pipeline: the synthesized request is
	// the next legacyProbe step (a calibration-data request, then a
	// setting-data request), and the probe additionally gates Connected.
	OptionLegacy
)

// Pipeline drives one transport: it owns the connection state machine, the
// keyed request queue, and the tick-driven worker that serializes queue
// heads, times them out, and routes decoded responses to the dispatch
// table. Grounded on poller.job: a ticker-driven select loop
// that owns all mutation of per-connection state, with producers only ever
// touching the thread-safe queue.
type Pipeline struct {
	dispatch

	adapter transport.Adapter
	framer *frame.Framer
	variant frame.Variant
	option Option
	rb *ringbuffer.RingBuffer

	deviceID uint8
	tickInterval time.Duration

	messageTimeout time.Duration
	connectTimeout time.Duration
	keepAliveEnabled bool
	keepAlivePeriod time.Duration
	keepAliveTimeout time.Duration
	retries int
	skipInfoOnConnect bool

	q *queue.Queue[RequestKey, *PendingRequest]

	mu sync.Mutex
	conn *connTracker
	nowFn func() time.Time

	txID atomic.Uint32

	cancel context.CancelFunc
	done chan struct{}
}

// Config configures a Pipeline. Zero values take the library's documented
// defaults from const.go.
type Config struct {
	Variant frame.Variant
	Option Option

	DeviceID uint8

	TickInterval time.Duration
	MessageTimeout time.Duration
	ConnectTimeout time.Duration
	KeepAliveEnabled bool
	KeepAlivePeriod time.Duration
	KeepAliveTimeout time.Duration
	Retries int

	RingBufferSize int
	// ProcessTimeout bounds how long a non-empty, non-progressing ring
	// buffer is tolerated before the framer clears it; zero disables resync.
	ProcessTimeout time.Duration

	// SkipInfoOnConnect opts out of the automatic info/probe request that
	// Connect otherwise enqueues. Connecting still completes on the first
	// valid response to whatever the caller enqueues itself.
	SkipInfoOnConnect bool

	// NowFunc overrides time.Now, for tests.
	NowFunc func() time.Time
}

// Open creates a Pipeline bound to adapter but does not yet connect it;
// call Connect to start the worker and the connection state machine.
func Open(adapter transport.Adapter, cfg Config) *Pipeline {
	tick := cfg.TickInterval
	if tick == 0 {
		if cfg.Option == OptionLegacy {
			tick = LegacyTickInterval
		} else {
			tick = ModernTickInterval
		}
	}
	messageTimeout := cfg.MessageTimeout
	if messageTimeout == 0 {
		messageTimeout = DefaultMessageTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectTimeout
	}
	keepAlivePeriod := cfg.KeepAlivePeriod
	if keepAlivePeriod == 0 {
		keepAlivePeriod = DefaultKeepAlivePeriod
	}
	keepAliveTimeout := cfg.KeepAliveTimeout
	if keepAliveTimeout == 0 {
		keepAliveTimeout = DefaultKeepAliveTimeout
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	rbSize := cfg.RingBufferSize
	if rbSize == 0 {
		rbSize = MinRingBufferSize
	}
	nowFn := cfg.NowFunc
	if nowFn == nil {
		nowFn = time.Now
	}

	p := &Pipeline{
		adapter: adapter,
		framer: frame.NewFramer(cfg.Variant, cfg.ProcessTimeout),
		variant: cfg.Variant,
		option: cfg.Option,
		rb: ringbuffer.New(rbSize),
		deviceID: cfg.DeviceID,
		tickInterval: tick,
		messageTimeout: messageTimeout,
		connectTimeout: connectTimeout,
		keepAliveEnabled: cfg.KeepAliveEnabled,
		keepAlivePeriod: keepAlivePeriod,
		keepAliveTimeout: keepAliveTimeout,
		retries: retries,
		skipInfoOnConnect: cfg.SkipInfoOnConnect,
		q: queue.New[RequestKey, *PendingRequest](),
		conn: newConnTracker(),
		nowFn: nowFn,
	}
	if cfg.Option == OptionLegacy {
		p.conn.legacy = newLegacyProbe()
	}
	return p
}

// Connect opens the transport, starts the worker goroutine, and transitions
// Closed -> Connecting. It does not block until Connected;
// observe OnConnectionChanged for that.
func (p *Pipeline) Connect(ctx context.Context) error {
	if err := p.adapter.Open(ctx); err != nil {
		return &TransportError{Err: err}
	}

	p.mu.Lock()
	p.conn.state = Connecting
	p.conn.connectedAt = p.nowFn()
	p.conn.lastActivity = p.nowFn()
	p.conn.lastResponseAt = p.nowFn()
	p.conn.keepAliveEnabled = p.keepAliveEnabled
	if p.conn.legacy != nil {
		p.conn.legacy = newLegacyProbe()
	}
	p.mu.Unlock()

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(workerCtx)

	if p.skipInfoOnConnect {
		return nil
	}
	if p.option == OptionLegacy {
		return p.enqueueLegacyProbeStep()
	}
	return p.enqueueInfoRead()
}

// Close tears the pipeline down from any state: stops the worker, closes
// the transport, disposes the queue, and fires connection-changed(false)
// exactly once if the pipeline was not already Closed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	wasClosed := p.conn.state == Closed
	p.conn.state = Closed
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	p.q.Dispose()
	err := p.adapter.Close()
	if !wasClosed {
		p.fireConnectionChanged(false)
	}
	return err
}

// State returns the pipeline's current connection state.
func (p *Pipeline) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.state
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	rx := p.adapter.Receive()
	connEvents := p.adapter.Connected()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-rx:
			if !ok {
				continue
			}
			p.fireRxRaw(data)
			if err := p.rb.Write(data); err != nil {
				p.fireError(KindTransport, &TransportError{Err: err})
				continue
			}
			p.drainFrames()
		case connected, ok := <-connEvents:
			if !ok {
				continue
			}
			if !connected {
				p.handleTransportLoss()
			}
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pipeline) handleTransportLoss() {
	p.mu.Lock()
	already := p.conn.state == Closed
	p.conn.state = Closed
	p.mu.Unlock()
	if !already {
		p.fireConnectionChanged(false)
	}
}

// tick implements one worker cycle: step 1 (state machine may
// synthesize a request), step 2 (activate the queue head), step 3 (time it
// out and retry/drop).
func (p *Pipeline) tick() {
	p.stateTick()
	p.activateHead()
	p.timeoutHead()
}

func (p *Pipeline) stateTick() {
	p.mu.Lock()
	state := p.conn.state
	now := p.nowFn()
	switch state {
	case Connecting:
		if now.Sub(p.conn.connectedAt) > p.connectTimeout {
			p.conn.state = Closed
			p.mu.Unlock()
			p.fireConnectionChanged(false)
			return
		}
	case Connected:
		if p.conn.keepAliveEnabled {
			idleFor := now.Sub(p.conn.lastActivity)
			if !p.conn.keepAliveSent && idleFor > p.keepAlivePeriod {
				p.conn.keepAliveSent = true
				p.mu.Unlock()
				if p.option == OptionLegacy {
					_ = p.enqueueLegacyProbeStep()
				} else {
					_ = p.enqueueInfoRead()
				}
				return
			}
			if p.conn.keepAliveSent && now.Sub(p.conn.lastResponseAt) > p.keepAliveTimeout {
				p.conn.state = Closed
				p.mu.Unlock()
				p.fireConnectionChanged(false)
				return
			}
		}
	}
	p.mu.Unlock()
}

// activateHead writes the queue head to the transport if it has not yet
// been written, step 2.
func (p *Pipeline) activateHead() {
	req, ok, err := p.q.Peek()
	if err != nil || !ok || req.Activated {
		return
	}
	if err := p.adapter.Send(req.Packet); err != nil {
		p.fireError(KindTransport, &TransportError{Err: err})
		return
	}
	p.fireTxRaw(req.Packet)

	p.mu.Lock()
	p.conn.lastActivity = p.nowFn()
	p.mu.Unlock()

	if req.NoAck {
		_, _, _ = p.q.Dequeue()
		return
	}
	req.Activated = true
	req.ActivatedAt = p.nowFn()
}

// timeoutHead implements retry/drop handling: an activated head that has not
// heard back within messageTimeout loses one retry; at zero it is dropped.
func (p *Pipeline) timeoutHead() {
	req, ok, err := p.q.Peek()
	if err != nil || !ok || !req.Activated {
		return
	}
	if p.nowFn().Sub(req.ActivatedAt) <= p.messageTimeout {
		return
	}
	req.RetriesLeft--
	req.Activated = false
	if req.RetriesLeft > 0 {
		return
	}
	_, _, _ = p.q.Dequeue()
	p.fireError(KindPipeline, &PipelineError{
		Opcode: req.Opcode,
		Address: req.Address,
		Err: fmt.Errorf("retries exhausted"),
	})
}

// drainFrames pulls every complete frame currently buffered and routes it,
// looping until the framer reports no more complete frames are available.
func (p *Pipeline) drainFrames() {
	for {
		env, ok := p.framer.Next(p.rb)
		if !ok {
			return
		}
		p.routeEnvelope(env)
	}
}

func (p *Pipeline) routeEnvelope(env frame.Envelope) {
	addr := uint16(0)
	matchedOpcode := env.Opcode

	head, ok, err := p.q.Peek()
	if err == nil && ok && head.Activated {
		want := frame.ReplyOpcode(p.variant, head.Opcode)
		if env.Opcode == want || (env.IsException && env.Opcode == head.Opcode) {
			addr = head.Address
			matchedOpcode = head.Opcode
			_, _, _ = p.q.Dequeue()

			p.mu.Lock()
			p.conn.lastResponseAt = p.nowFn()
			if p.conn.state == Connecting {
				p.conn.state = Connected
			}
			p.conn.keepAliveSent = false
			p.mu.Unlock()
			p.maybeFireConnected()
		}
	}

	if env.IsException {
		p.fireError(KindProtocol, &ProtocolError{Opcode: matchedOpcode, Code: env.ExceptionCode})
		p.fireReceived(&ProtocolError{Opcode: matchedOpcode, Code: env.ExceptionCode}, addr)
		return
	}

	record, decodeErr := decodeEnvelope(env, p.variant)
	if decodeErr != nil {
		p.fireError(KindDecode, decodeErr)
		return
	}
	p.observeLegacyProbe(env.Opcode, record)
	p.fireReceived(record, addr)
}

func (p *Pipeline) maybeFireConnected() {
	p.mu.Lock()
	justConnected := p.conn.state == Connected
	legacyGate := p.conn.legacy != nil && !p.conn.legacy.connected()
	p.mu.Unlock()
	if justConnected && !legacyGate {
		p.fireConnectionChanged(true)
	}
}

func (p *Pipeline) observeLegacyProbe(opcode uint8, record any) {
	p.mu.Lock()
	lp := p.conn.legacy
	p.mu.Unlock()
	if lp == nil {
		return
	}
	c, ok := record.(codec.CalData)
	if !ok {
		return
	}
	switch opcode {
	case frame.ReplyOpcode(frame.VariantVendor, frame.VendorReqCalData):
		lp.observeCalData(c)
	case frame.ReplyOpcode(frame.VariantVendor, frame.VendorReqSetData):
		lp.observeSetData(c)
	}
	if lp.connected() {
		p.maybeFireConnected()
	}
}

// decodeEnvelope maps a wire opcode to the codec function that understands
// its payload.
func decodeEnvelope(env frame.Envelope, variant frame.Variant) (any, error) {
	if variant == frame.VariantVendor {
		switch env.Opcode {
		case frame.ReplyOpcode(frame.VariantVendor, frame.VendorReqCalData),
			frame.ReplyOpcode(frame.VariantVendor, frame.VendorReqSetData):
			return codec.DecodeCalData(env.Payload)
		case frame.VendorRepAdc:
			return codec.DecodeCalData(env.Payload)
		case frame.VendorRepStatus:
			return codec.DecodeStatusLegacySimple(env.Payload)
		case frame.VendorRepEvent:
			return codec.DecodeEventGen1(env.Payload)
		case frame.VendorOpcodeASCIITorque:
			return env.Payload, nil
		default:
			return env.Payload, nil
		}
	}

	switch env.Opcode {
	case frame.FuncReadHoldingRegisters, frame.FuncReadInputRegisters:
		return env.Payload, nil
	case frame.FuncReadInfo:
		return codec.DecodeDeviceInfo(env.Payload)
	case frame.FuncGraph, frame.FuncGraphRes, frame.FuncHighResGraph:
		return codec.DecodeGraph(env.Payload)
	default:
		return env.Payload, nil
	}
}

func (p *Pipeline) nextTransactionID() uint16 {
	return uint16(p.txID.Add(1))
}

// enqueue enqueues one wire packet, deduplicated by (opcode, address,
// FNV-1a(packet)) in EnforceUnique mode by default.
func (p *Pipeline) enqueue(opcode uint8, address uint16, packet []byte, noAck bool) error {
	return p.enqueueMode(opcode, address, packet, noAck, queue.EnforceUnique)
}

func (p *Pipeline) enqueueMode(opcode uint8, address uint16, packet []byte, noAck bool, mode queue.Mode) error {
	req := &PendingRequest{
		Opcode: opcode,
		Address: address,
		Packet: packet,
		Key: newRequestKey(opcode, address, packet),
		RetriesLeft: p.retries,
		NoAck: noAck,
	}
	if err := p.q.Enqueue(req.Key, req, mode); err != nil {
		if err == queue.ErrDuplicateKey {
			return nil
		}
		return &PipelineError{Opcode: opcode, Address: address, Err: err}
	}
	return nil
}

// enqueueInfoRead is the Gen2 (RTU/TCP) connect/keep-alive probe: the
// 0x11 vendor-extension function code reading the 200 byte DeviceInfo
// block (100 registers).
func (p *Pipeline) enqueueInfoRead() error {
	pkt := p.buildRequest(frame.FuncReadInfo, readBody(0, 100))
	return p.enqueue(frame.FuncReadInfo, 0, pkt, false)
}

// enqueueLegacyProbeStep is the vendor-serial connect/keep-alive probe:
// it advances legacyProbe one step by enqueueing whichever calibration or
// setting request the sub-state machine currently needs.
func (p *Pipeline) enqueueLegacyProbeStep() error {
	p.mu.Lock()
	lp := p.conn.legacy
	p.mu.Unlock()
	if lp == nil {
		return nil
	}
	opcode, ok := lp.nextOpcode()
	if !ok {
		return nil
	}
	pkt := p.buildRequest(opcode, nil)
	return p.enqueue(opcode, 0, pkt, false)
}

// buildRequest assembles a request frame in this pipeline's wire variant.
func (p *Pipeline) buildRequest(opcode uint8, body []byte) []byte {
	switch p.variant {
	case frame.VariantTCP:
		return buildTCPRequest(p.nextTransactionID(), p.deviceID, opcode, body)
	case frame.VariantVendor:
		return buildVendorRequest(opcode, body)
	default:
		return buildRTURequest(p.deviceID, opcode, body)
	}
}

// ReadHolding issues read_holding(addr, count), splitting into blocks of at
// most MaxReadRegisters. The call is accepted (error nil) if at least one
// block was enqueued.
func (p *Pipeline) ReadHolding(addr uint16, count uint16) error {
	return p.readRegisters(frame.FuncReadHoldingRegisters, addr, count)
}

// ReadInput issues read_input(addr, count) with the same chunking rule as ReadHolding.
func (p *Pipeline) ReadInput(addr uint16, count uint16) error {
	return p.readRegisters(frame.FuncReadInputRegisters, addr, count)
}

func (p *Pipeline) readRegisters(opcode uint8, addr uint16, count uint16) error {
	if count == 0 {
		return nil
	}
	anyAccepted := false
	var firstErr error
	for remaining, cur := count, addr; remaining > 0; {
		chunk := remaining
		if chunk > MaxReadRegisters {
			chunk = MaxReadRegisters
		}
		pkt := p.buildRequest(opcode, readBody(cur, chunk))
		if err := p.enqueue(opcode, cur, pkt, false); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			anyAccepted = true
		}
		cur += chunk
		remaining -= chunk
	}
	if !anyAccepted && firstErr != nil {
		return firstErr
	}
	return nil
}

// ReadInfo issues a one-shot info read: the 200 byte DeviceInfo block over
// Modbus (OptionGen2), or the next legacyProbe step over vendor serial
// (OptionLegacy): a calibration-data request, then a setting-data request,
// and nothing once the probe has completed — legacy firmware has no standalone info
// opcode distinct from the connect-time calibration/setting probe.
func (p *Pipeline) ReadInfo() error {
	if p.option == OptionLegacy {
		return p.enqueueLegacyProbeStep()
	}
	return p.enqueueInfoRead()
}

// WriteSingle issues write_single(addr, value). allowDuplicate opts the
// request out of the default EnforceUnique dedup so repeated identical
// commits are not silently coalesced.
func (p *Pipeline) WriteSingle(addr uint16, value uint16, allowDuplicate bool) error {
	pkt := p.buildRequest(frame.FuncWriteSingleRegister, writeSingleBody(addr, value))
	return p.enqueueMode(frame.FuncWriteSingleRegister, addr, pkt, false, dedupMode(allowDuplicate))
}

// WriteMulti issues write_multi(addr, values), splitting into blocks of at
// most MaxWriteRegisters. allowDuplicate has the same meaning as in WriteSingle.
func (p *Pipeline) WriteMulti(addr uint16, values []uint16, allowDuplicate bool) error {
	if len(values) == 0 {
		return nil
	}
	anyAccepted := false
	var firstErr error
	cur := addr
	mode := dedupMode(allowDuplicate)
	for len(values) > 0 {
		n := len(values)
		if n > MaxWriteRegisters {
			n = MaxWriteRegisters
		}
		block := values[:n]
		pkt := p.buildRequest(frame.FuncWriteMultiRegisters, writeMultiBody(cur, block))
		if err := p.enqueueMode(frame.FuncWriteMultiRegisters, cur, pkt, false, mode); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			anyAccepted = true
		}
		cur += uint16(n)
		values = values[n:]
	}
	if !anyAccepted && firstErr != nil {
		return firstErr
	}
	return nil
}

// WriteString issues write_string(addr, text, length): text is encoded as
// packed big-endian register pairs (2 ASCII bytes per register), padded
// with NUL to the requested register length, then written via WriteMulti.
func (p *Pipeline) WriteString(addr uint16, text string, length uint16) error {
	if length == 0 {
		length = uint16((len(text) + 1) / 2)
	}
	raw := make([]byte, int(length)*2)
	copy(raw, text)
	values := make([]uint16, length)
	for i := range values {
		values[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return p.WriteMulti(addr, values, false)
}

func dedupMode(allowDuplicate bool) queue.Mode {
	if allowDuplicate {
		return queue.AllowDuplicate
	}
	return queue.EnforceUnique
}
