package sml

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/serverid"
)

// AttentionResponse is the payload of a TagAttentionRes message: a
// meter-reported attention code with an optional free-text
// message.
type AttentionResponse struct {
	ServerID serverid.ID
	Code     obis.Code
	Message  string
}

// Name returns the human-readable name for Code, or "" if it is not
// one of the fixed attention codes.
func (a AttentionResponse) Name() string {
	return obis.AttentionName(a.Code)
}

// EncodeAttentionBody builds the TLV payload list carried under a
// TagAttentionRes message body.
func EncodeAttentionBody(a AttentionResponse) []byte {
	return EncodeList(
		EncodeBinary(a.ServerID.Encode()),
		EncodeBinary(a.Code.Bytes()),
		EncodeBinary([]byte(a.Message)),
	)
}

// DecodeAttentionBody interprets the generic TLV value carried in a
// decoded Message.Body as an attention response payload.
func DecodeAttentionBody(body any) (AttentionResponse, error) {
	items, ok := body.([]any)
	if !ok || len(items) != 3 {
		return AttentionResponse{}, fmt.Errorf("sml: malformed attention body: %w", gwerr.ErrFrame)
	}
	sidBytes, _ := items[0].([]byte)
	sid, err := serverid.Decode(sidBytes)
	if err != nil {
		return AttentionResponse{}, err
	}
	codeBytes, _ := items[1].([]byte)
	if len(codeBytes) != 6 {
		return AttentionResponse{}, fmt.Errorf("sml: malformed attention code: %w", gwerr.ErrFrame)
	}
	msg, _ := items[2].([]byte)

	return AttentionResponse{
		ServerID: sid,
		Code:     obis.FromBytes(codeBytes),
		Message:  string(msg),
	}, nil
}
