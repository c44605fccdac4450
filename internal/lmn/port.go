// Package lmn wraps the serial local metrological network port meters
// are read from directly: open/close lifecycle,
// OBIS-addressed runtime reconfiguration, and fan-out of received
// bytes to registered consumers.
package lmn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/solostec/smf-gateway/pkg/log"
)

// Port wraps one serial LMN connection. Grounded on pkg/nats.Client:
// open-on-Init/always-closed-on-Shutdown lifecycle and a guarded
// singleton — generalized from NATS's single global client to one
// guarded instance per logical port name, since a gateway can have
// several LMN ports attached at once.
type Port struct {
	name string
	mu   sync.Mutex
	dev  serial.Port
	mode serial.Mode

	open      atomic.Bool
	bytesRead atomic.Uint64

	consumersMu sync.Mutex
	consumers   []chan []byte

	stop chan struct{}
	wg   sync.WaitGroup
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Port{}
)

// Init opens (or returns the already-open) port registered under
// name.
func Init(name, device string, baud int) (*Port, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if p, ok := registry[name]; ok {
		return p, nil
	}

	mode := serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	dev, err := serial.Open(device, &mode)
	if err != nil {
		return nil, fmt.Errorf("lmn: open %s: %w", device, err)
	}

	p := &Port{name: name, dev: dev, mode: mode, stop: make(chan struct{})}
	p.open.Store(true)
	registry[name] = p
	p.wg.Add(1)
	go p.readLoop()
	log.Infof("lmn: opened port %s on %s at %d baud", name, device, baud)
	return p, nil
}

// Get returns the port already opened under name, if any.
func Get(name string) (*Port, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := registry[name]
	return p, ok
}

// Shutdown closes the port and stops its reader goroutine.
func (p *Port) Shutdown() error {
	registryMu.Lock()
	delete(registry, p.name)
	registryMu.Unlock()

	close(p.stop)
	err := p.dev.Close()
	p.open.Store(false)
	p.wg.Wait()
	return err
}

// Consume registers ch to receive every byte slice read from the
// port. A consumer that falls behind has frames dropped for it rather
// than blocking the reader: the reader goroutine never blocks on a
// slow fan-out target.
func (p *Port) Consume(ch chan []byte) {
	p.consumersMu.Lock()
	defer p.consumersMu.Unlock()
	p.consumers = append(p.consumers, ch)
}

// Unconsume deregisters a previously registered consumer channel.
func (p *Port) Unconsume(ch chan []byte) {
	p.consumersMu.Lock()
	defer p.consumersMu.Unlock()
	for i, c := range p.consumers {
		if c == ch {
			p.consumers = append(p.consumers[:i], p.consumers[i+1:]...)
			return
		}
	}
}

// Write sends data out the port.
func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev.Write(data)
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		n, err := p.dev.Read(buf)
		if err != nil {
			log.Warnf("lmn: port %s read error: %v", p.name, err)
			return
		}
		if n == 0 {
			continue
		}
		p.bytesRead.Add(uint64(n))
		frame := append([]byte(nil), buf[:n]...)
		p.fanOut(frame)
	}
}

func (p *Port) fanOut(frame []byte) {
	p.consumersMu.Lock()
	consumers := append([]chan []byte(nil), p.consumers...)
	p.consumersMu.Unlock()

	for _, c := range consumers {
		select {
		case c <- frame:
		default:
			log.Warnf("lmn: port %s dropped a frame, consumer channel full", p.name)
		}
	}
}
