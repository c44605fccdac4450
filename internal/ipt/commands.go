package ipt

// Command tags. Requests live in the 0x9xxx/0xCxxx
// families; their responses live in the paired 0x1xxx/0x4xxx families.
// Only the login response (0x4002) and the push-channel-open response
// (0x1000) are pinned by concrete scenarios; the remaining
// tags are assigned consistently within the same two families.
const (
	CmdLoginReq  uint16 = 0xC002
	CmdLoginRes  uint16 = 0x4002
	CmdOpenConnectionReq  uint16 = 0xC003
	CmdOpenConnectionRes  uint16 = 0x4003
	CmdCloseConnectionReq uint16 = 0xC004
	CmdCloseConnectionRes uint16 = 0x4004
	CmdWatchdogReq        uint16 = 0xC005
	CmdWatchdogRes        uint16 = 0x4005

	CmdOpenPushChannelReq  uint16 = 0x9000
	CmdOpenPushChannelRes  uint16 = 0x1000
	CmdClosePushChannelReq uint16 = 0x9001
	CmdClosePushChannelRes uint16 = 0x1001
	CmdTransferPushDataReq uint16 = 0x9002
	CmdTransferPushDataRes uint16 = 0x1002
	CmdRegisterTargetReq   uint16 = 0x9003
	CmdRegisterTargetRes   uint16 = 0x1003
	CmdDeregisterTargetReq uint16 = 0x9004
	CmdDeregisterTargetRes uint16 = 0x1004
)

// ResponseCode is the first byte of most response bodies.
type ResponseCode byte

const (
	ResponseSuccess        ResponseCode = 1
	ResponseUnreachable    ResponseCode = 2
	ResponseUndefined      ResponseCode = 3
	ResponseBusy           ResponseCode = 4
	ResponseAuthFailed     ResponseCode = 5
	ResponseGeneralError   ResponseCode = 6
)

// IsRequest reports whether cmd belongs to one of the request families.
func IsRequest(cmd uint16) bool {
	fam := cmd & 0xF000
	return fam == 0x9000 || fam == 0xC000
}

// IsResponse reports whether cmd belongs to one of the response families.
func IsResponse(cmd uint16) bool {
	fam := cmd & 0xF000
	return fam == 0x1000 || fam == 0x4000
}
