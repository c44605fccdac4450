package sml

import (
	"fmt"
	"math"
	"time"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/serverid"
)

// ProfileValue is one register reading inside a GetProfileList.Res
//. Raw is the unscaled integer on the wire;
// Float applies Scaler to recover the physical value.
type ProfileValue struct {
	OBIS   obis.Code
	Raw    int64
	Scaler int8
	Unit   string
}

// Float returns Raw * 10^Scaler.
func (v ProfileValue) Float() float64 {
	return float64(v.Raw) * math.Pow(10, float64(v.Scaler))
}

// ProfileListResponse is the decoded payload of a GetProfileList.Res
// message body.
type ProfileListResponse struct {
	ServerID serverid.ID
	ActTime  time.Time
	Values   []ProfileValue
}

// EncodeProfileListBody builds the TLV payload list carried under a
// TagGetProfileListRes message body.
func EncodeProfileListBody(r ProfileListResponse) []byte {
	valItems := make([][]byte, len(r.Values))
	for i, v := range r.Values {
		valItems[i] = EncodeList(
			EncodeBinary(v.OBIS.Bytes()),
			EncodeInt(v.Raw, 8),
			EncodeInt(int64(v.Scaler), 1),
			EncodeBinary([]byte(v.Unit)),
		)
	}
	return EncodeList(
		EncodeBinary(r.ServerID.Encode()),
		EncodeUint(uint64(r.ActTime.Unix()), 4),
		EncodeList(valItems...),
	)
}

// DecodeProfileListBody interprets the generic TLV value carried in a
// decoded Message.Body as a GetProfileList.Res payload.
func DecodeProfileListBody(body any) (ProfileListResponse, error) {
	items, ok := body.([]any)
	if !ok || len(items) != 3 {
		return ProfileListResponse{}, fmt.Errorf("sml: malformed profile list body: %w", gwerr.ErrFrame)
	}

	sidBytes, _ := items[0].([]byte)
	sid, err := serverid.Decode(sidBytes)
	if err != nil {
		return ProfileListResponse{}, err
	}

	actUnix, _ := items[1].(uint64)

	valList, ok := items[2].([]any)
	if !ok {
		return ProfileListResponse{}, fmt.Errorf("sml: malformed profile value list: %w", gwerr.ErrFrame)
	}

	values := make([]ProfileValue, 0, len(valList))
	for _, entry := range valList {
		fields, ok := entry.([]any)
		if !ok || len(fields) != 4 {
			return ProfileListResponse{}, fmt.Errorf("sml: malformed profile value entry: %w", gwerr.ErrFrame)
		}
		obisBytes, _ := fields[0].([]byte)
		if len(obisBytes) != 6 {
			return ProfileListResponse{}, fmt.Errorf("sml: malformed OBIS code in profile value: %w", gwerr.ErrFrame)
		}
		raw, _ := fields[1].(int64)
		scaler, _ := fields[2].(int64)
		unit, _ := fields[3].([]byte)

		values = append(values, ProfileValue{
			OBIS:   obis.FromBytes(obisBytes),
			Raw:    raw,
			Scaler: int8(scaler),
			Unit:   string(unit),
		})
	}

	return ProfileListResponse{
		ServerID: sid,
		ActTime:  time.Unix(int64(actUnix), 0).UTC(),
		Values:   values,
	}, nil
}
