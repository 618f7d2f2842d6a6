package hantas

import "sync"

// dispatch is the pipeline's small callback table: zero or one subscriber
// per channel, grounded on server.go's "small dispatch table" replacement for
// multicast delegates, mirroring server.go's single-field
// OnErrorFunc/OnAcceptConnFunc callbacks in server.Server. Each setter is
// guarded by a mutex since application code may call On* concurrently with
// the worker invoking them.
type dispatch struct {
	mu sync.RWMutex

	onConnectionChanged func(connected bool)
	onReceived func(record any, addr uint16)
	onError func(kind ErrorKind, err error)
	onTxRaw func(data []byte)
	onRxRaw func(data []byte)
}

func (d *dispatch) OnConnectionChanged(fn func(connected bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConnectionChanged = fn
}

func (d *dispatch) OnReceived(fn func(record any, addr uint16)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReceived = fn
}

func (d *dispatch) OnError(fn func(kind ErrorKind, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

func (d *dispatch) OnTxRaw(fn func(data []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTxRaw = fn
}

func (d *dispatch) OnRxRaw(fn func(data []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRxRaw = fn
}

func (d *dispatch) fireConnectionChanged(connected bool) {
	d.mu.RLock()
	fn := d.onConnectionChanged
	d.mu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

func (d *dispatch) fireReceived(record any, addr uint16) {
	d.mu.RLock()
	fn := d.onReceived
	d.mu.RUnlock()
	if fn != nil {
		fn(record, addr)
	}
}

func (d *dispatch) fireError(kind ErrorKind, err error) {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil {
		fn(kind, err)
	}
}

func (d *dispatch) fireTxRaw(data []byte) {
	d.mu.RLock()
	fn := d.onTxRaw
	d.mu.RUnlock()
	if fn != nil {
		fn(data)
	}
}

func (d *dispatch) fireRxRaw(data []byte) {
	d.mu.RLock()
	fn := d.onRxRaw
	d.mu.RUnlock()
	if fn != nil {
		fn(data)
	}
}
