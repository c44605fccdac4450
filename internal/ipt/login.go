package ipt

import (
	"encoding/binary"
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// LoginRequest is the decoded body of a CmdLoginReq frame.
type LoginRequest struct {
	Scrambled bool
	Key       [32]byte
	Account   string
	Password  string
}

// EncodeLoginRequest renders a login request body: a scrambled-login
// flag, the 32-byte scramble key, then length-prefixed account and
// password strings.
func EncodeLoginRequest(r LoginRequest) []byte {
	body := make([]byte, 0, 1+32+1+len(r.Account)+1+len(r.Password))
	if r.Scrambled {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	body = append(body, r.Key[:]...)
	body = append(body, byte(len(r.Account)))
	body = append(body, r.Account...)
	body = append(body, byte(len(r.Password)))
	body = append(body, r.Password...)
	return body
}

// DecodeLoginRequest parses the body produced by EncodeLoginRequest.
func DecodeLoginRequest(body []byte) (LoginRequest, error) {
	if len(body) < 1+32+1 {
		return LoginRequest{}, fmt.Errorf("ipt: login request too short: %w", gwerr.ErrFrame)
	}
	var r LoginRequest
	r.Scrambled = body[0] != 0
	copy(r.Key[:], body[1:33])
	off := 33
	accLen := int(body[off])
	off++
	if off+accLen+1 > len(body) {
		return LoginRequest{}, fmt.Errorf("ipt: login request truncated account: %w", gwerr.ErrFrame)
	}
	r.Account = string(body[off : off+accLen])
	off += accLen
	pwdLen := int(body[off])
	off++
	if off+pwdLen > len(body) {
		return LoginRequest{}, fmt.Errorf("ipt: login request truncated password: %w", gwerr.ErrFrame)
	}
	r.Password = string(body[off : off+pwdLen])
	return r, nil
}

// LoginResponse is the decoded body of a CmdLoginRes frame.
type LoginResponse struct {
	Code     ResponseCode
	Watchdog uint16 // seconds
}

// EncodeLoginResponse renders a login response body.
func EncodeLoginResponse(r LoginResponse) []byte {
	body := make([]byte, 3)
	body[0] = byte(r.Code)
	binary.BigEndian.PutUint16(body[1:3], r.Watchdog)
	return body
}

// DecodeLoginResponse parses the body produced by EncodeLoginResponse.
func DecodeLoginResponse(body []byte) (LoginResponse, error) {
	if len(body) < 3 {
		return LoginResponse{}, fmt.Errorf("ipt: login response too short: %w", gwerr.ErrFrame)
	}
	return LoginResponse{
		Code:     ResponseCode(body[0]),
		Watchdog: binary.BigEndian.Uint16(body[1:3]),
	}, nil
}
