package ipt

import (
	"encoding/binary"
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// EscapeOctet marks the boundary between the idle stream and a frame
// header. A literal occurrence of this octet inside a frame's body is
// transmitted doubled and collapsed back to one by the framer.
const EscapeOctet byte = 0x7E

// headerLen is the padded header size: command(2) + sequence(1) +
// reserved(1) + length(4). length counts the header itself, so a
// frame's body is (length - headerLen) octets.
const headerLen = 8

// maxFrameLen bounds how large a single frame's declared length may
// be, so a corrupted length field cannot make the framer allocate
// unbounded memory.
const maxFrameLen = 16 * 1024 * 1024

// Frame is one decoded IP-T command/response unit.
type Frame struct {
	Command  uint16
	Sequence byte
	Body     []byte
}

// Encode renders cmd/seq/body as the escaped wire form: the escape
// octet, the 8-byte header, then the body with any literal escape
// octets doubled.
func Encode(cmd uint16, seq byte, body []byte) []byte {
	out := make([]byte, 0, 1+headerLen+len(body))
	out = append(out, EscapeOctet)

	var header [headerLen]byte
	binary.BigEndian.PutUint16(header[0:2], cmd)
	header[2] = seq
	header[3] = 0 // reserved
	binary.LittleEndian.PutUint32(header[4:8], uint32(headerLen+len(body)))
	out = append(out, header[:]...)

	for _, b := range body {
		out = append(out, b)
		if b == EscapeOctet {
			out = append(out, EscapeOctet)
		}
	}
	return out
}

type frameState int

const (
	stateStream frameState = iota
	stateEsc
	stateHead
	stateData
)

// Framer drives the STREAM → ESC → HEAD → DATA → STREAM state machine
// of over a byte stream that has already been descrambled;
// it never touches the Scrambler itself. Feed is not safe for
// concurrent use — callers run it from the owning session's single
// reader goroutine, the Go rendering of what the wire protocol calls
// a "strand".
type Framer struct {
	state      frameState
	header     []byte
	body       []byte
	bodyLen    uint32
	pendingEsc bool
	onFrame    func(Frame)
	onError    func(error)
}

// NewFramer returns a Framer that invokes onFrame for every completed
// frame and onError for malformed input: malformed lengths surface as
// FrameError and the session is torn down.
func NewFramer(onFrame func(Frame), onError func(error)) *Framer {
	return &Framer{onFrame: onFrame, onError: onError}
}

// Feed processes buf byte by byte, emitting any frames it completes.
func (f *Framer) Feed(buf []byte) {
	for _, b := range buf {
		f.feedByte(b)
	}
}

func (f *Framer) feedByte(b byte) {
	switch f.state {
	case stateStream:
		if b == EscapeOctet {
			f.state = stateEsc
		}
	case stateEsc:
		if b == EscapeOctet {
			// A doubled escape outside a frame is a no-op keep-alive;
			// stay idle.
			f.state = stateStream
			return
		}
		f.header = []byte{b}
		f.state = stateHead
	case stateHead:
		f.header = append(f.header, b)
		if len(f.header) < headerLen {
			return
		}
		length := binary.LittleEndian.Uint32(f.header[4:8])
		if length < headerLen || length > maxFrameLen {
			f.fail(fmt.Errorf("ipt: invalid frame length %d: %w", length, gwerr.ErrFrame))
			return
		}
		f.bodyLen = length - headerLen
		f.body = make([]byte, 0, f.bodyLen)
		if f.bodyLen == 0 {
			f.emit()
		} else {
			f.state = stateData
		}
	case stateData:
		if f.pendingEsc {
			f.pendingEsc = false
			if b != EscapeOctet {
				f.fail(fmt.Errorf("ipt: unescaped %#x inside frame body: %w", EscapeOctet, gwerr.ErrFrame))
				return
			}
			f.appendBody(EscapeOctet)
			return
		}
		if b == EscapeOctet {
			f.pendingEsc = true
			return
		}
		f.appendBody(b)
	}
}

func (f *Framer) appendBody(b byte) {
	f.body = append(f.body, b)
	if uint32(len(f.body)) == f.bodyLen {
		f.emit()
	}
}

func (f *Framer) emit() {
	cmd := binary.BigEndian.Uint16(f.header[0:2])
	seq := f.header[2]
	body := f.body
	f.resetToStream()
	if f.onFrame != nil {
		f.onFrame(Frame{Command: cmd, Sequence: seq, Body: body})
	}
}

func (f *Framer) fail(err error) {
	f.resetToStream()
	if f.onError != nil {
		f.onError(err)
	}
}

func (f *Framer) resetToStream() {
	f.state = stateStream
	f.header = nil
	f.body = nil
	f.bodyLen = 0
	f.pendingEsc = false
}
