package sml

import (
	"bytes"
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// Message body tags: request/response pairs, one bit
// apart, plus the out-of-band attention response.
const (
	TagOpenReq           uint16 = 0x0100
	TagOpenRes           uint16 = 0x0101
	TagCloseReq          uint16 = 0x0200
	TagCloseRes          uint16 = 0x0201
	TagGetProfileListReq uint16 = 0x0400
	TagGetProfileListRes uint16 = 0x0401
	TagGetProcParamReq   uint16 = 0x0500
	TagGetProcParamRes   uint16 = 0x0501
	TagSetProcParamReq   uint16 = 0x0600
	TagSetProcParamRes   uint16 = 0x0601
	TagGetListReq        uint16 = 0x0700
	TagGetListRes        uint16 = 0x0701
	TagAttentionRes      uint16 = 0xFF01
)

// Message is one SML_Message: envelope fields plus a dispatched body
//. Body holds the decoded TLV value of the message-specific
// payload list; on encode it instead holds pre-built TLV bytes of that
// same list (see encodeMessageBody).
type Message struct {
	TransactionID []byte
	GroupNo       uint8
	AbortOnError  uint8
	Tag           uint16
	Body          any
}

const crcFieldLen = 3 // TL byte + 2 data bytes; EncodeMessage always uses a 2-byte CRC

// EncodeMessage serializes msg as a 5-element TLV list: transactionId,
// groupNo, abortOnError, messageBody (tag+body CHOICE), crc16. bodyList
// must already be TLV-encoded bytes for the message-specific payload.
func EncodeMessage(msg Message, bodyList []byte) []byte {
	var buf []byte
	buf = append(buf, encodeTL(typeList, 5)...)
	buf = append(buf, EncodeBinary(msg.TransactionID)...)
	buf = append(buf, EncodeUint(uint64(msg.GroupNo), 1)...)
	buf = append(buf, EncodeUint(uint64(msg.AbortOnError), 1)...)
	buf = append(buf, encodeMessageBody(msg.Tag, bodyList)...)
	crc := CRC16(buf)
	buf = append(buf, EncodeUint(uint64(crc), 2)...)
	return buf
}

func encodeMessageBody(tag uint16, bodyList []byte) []byte {
	out := encodeTL(typeList, 2)
	out = append(out, EncodeUint(uint64(tag), 2)...)
	out = append(out, bodyList...)
	return out
}

// DecodeMessage parses one SML_Message starting at buf[0], validating
// its CRC16 trailer, and returns it along with the number of bytes
// consumed. Message.Body is left as the generic decoded TLV value of
// the message-specific payload for the caller to interpret by Tag.
func DecodeMessage(buf []byte) (Message, int, error) {
	raw, consumed, err := Decode(buf)
	if err != nil {
		return Message{}, 0, err
	}
	items, ok := raw.([]any)
	if !ok || len(items) != 5 {
		return Message{}, 0, fmt.Errorf("sml: malformed message envelope: %w", gwerr.ErrFrame)
	}

	txID, _ := items[0].([]byte)
	groupNo, _ := items[1].(uint64)
	abortOnError, _ := items[2].(uint64)
	crcWant, _ := items[4].(uint64)

	bodyItems, ok := items[3].([]any)
	if !ok || len(bodyItems) != 2 {
		return Message{}, 0, fmt.Errorf("sml: malformed message body choice: %w", gwerr.ErrFrame)
	}
	tag, _ := bodyItems[0].(uint64)

	if consumed < crcFieldLen {
		return Message{}, 0, fmt.Errorf("sml: message shorter than CRC field: %w", gwerr.ErrFrame)
	}
	if got := CRC16(buf[:consumed-crcFieldLen]); got != uint16(crcWant) {
		return Message{}, 0, fmt.Errorf("sml: message CRC mismatch (want %#04x got %#04x): %w", crcWant, got, gwerr.ErrChecksum)
	}

	return Message{
		TransactionID: txID,
		GroupNo:       uint8(groupNo),
		AbortOnError:  uint8(abortOnError),
		Tag:           uint16(tag),
		Body:          bodyItems[1],
	}, consumed, nil
}

var (
	escapeMarker   = []byte{0x1B, 0x1B, 0x1B, 0x1B}
	openMarker     = []byte{0x01, 0x01, 0x01, 0x01}
	closeMarkerTag = byte(0x1A)
)

// EncodeFile wraps a sequence of already-encoded SML messages in the
// open/close escape sequences and computes the file-level CRC16 over
// the padded transmission.
func EncodeFile(encodedMessages [][]byte) []byte {
	var body []byte
	body = append(body, escapeMarker...)
	body = append(body, openMarker...)
	for _, m := range encodedMessages {
		body = append(body, m...)
	}
	pad := (4 - len(body)%4) % 4
	body = append(body, make([]byte, pad)...)

	crcInput := append(body, escapeMarker...)
	crcInput = append(crcInput, closeMarkerTag, byte(pad))
	crc := CRC16(crcInput)
	return append(crcInput, byte(crc>>8), byte(crc))
}

// DecodeFile validates the escape framing and file CRC of buf and
// returns the decoded messages it carries.
func DecodeFile(buf []byte) ([]Message, error) {
	if len(buf) < 16 || !bytes.Equal(buf[:4], escapeMarker) || !bytes.Equal(buf[4:8], openMarker) {
		return nil, fmt.Errorf("sml: missing open escape sequence: %w", gwerr.ErrFrame)
	}

	closeSeq := append(append([]byte{}, escapeMarker...), closeMarkerTag)
	closeIdx := bytes.Index(buf[8:], closeSeq)
	if closeIdx < 0 {
		return nil, fmt.Errorf("sml: missing close escape sequence: %w", gwerr.ErrFrame)
	}
	closeIdx += 8
	if closeIdx+8 > len(buf) {
		return nil, fmt.Errorf("sml: truncated close trailer: %w", gwerr.ErrFrame)
	}

	pad := int(buf[closeIdx+5])
	crcWant := uint16(buf[closeIdx+6])<<8 | uint16(buf[closeIdx+7])
	crcInput := buf[:closeIdx+6]
	if got := CRC16(crcInput); got != crcWant {
		return nil, fmt.Errorf("sml: file CRC mismatch (want %#04x got %#04x): %w", crcWant, got, gwerr.ErrChecksum)
	}

	payload := buf[8:closeIdx]
	if pad > len(payload) {
		return nil, fmt.Errorf("sml: pad %d exceeds payload length %d: %w", pad, len(payload), gwerr.ErrFrame)
	}
	payload = payload[:len(payload)-pad]

	var messages []Message
	pos := 0
	for pos < len(payload) {
		msg, n, err := DecodeMessage(payload[pos:])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
		pos += n
	}
	return messages, nil
}
