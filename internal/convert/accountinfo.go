// Package convert decodes archival account records from their protobuf wire form.
package convert

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/model"
)

// Field numbers of CryptoGetInfoResponse.AccountInfo and AccountID.
const (
	fieldAccountID       protowire.Number = 1
	fieldDeleted         protowire.Number = 3
	fieldProxyAccountID  protowire.Number = 4
	fieldKey             protowire.Number = 7
	fieldExpirationTime  protowire.Number = 12
	fieldAutoRenewPeriod protowire.Number = 13
	fieldMemo            protowire.Number = 16

	fieldShardNum   protowire.Number = 1
	fieldRealmNum   protowire.Number = 2
	fieldAccountNum protowire.Number = 3
)

// --- decode ---

// DecodeLine base64-decodes one feed line and parses the account record it carries.
// Both padded and unpadded standard base64 are accepted.
func DecodeLine(line string) (model.AccountInfo, error) {
	line = strings.TrimSpace(line)
	enc := base64.StdEncoding
	if !strings.HasSuffix(line, "=") {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(line)
	if err != nil {
		return model.AccountInfo{}, fmt.Errorf("base64: %w: %w", errs.ErrMalformedRecord, err)
	}
	return DecodeAccountInfo(data)
}

// DecodeAccountInfo parses the wire form of an AccountInfo message. Unknown fields are skipped.
func DecodeAccountInfo(b []byte) (model.AccountInfo, error) {
	var (
		info      model.AccountInfo
		hasID     bool
		memo      string
		decodeErr error
	)
	walkErr := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) {
		if decodeErr != nil {
			return
		}
		switch {
		case num == fieldAccountID && typ == protowire.BytesType:
			info.AccountID, decodeErr = decodeAccountID(v)
			hasID = decodeErr == nil
		case num == fieldDeleted && typ == protowire.VarintType:
			info.Deleted = protowire.DecodeBool(u)
		case num == fieldProxyAccountID && typ == protowire.BytesType:
			var id model.EntityID
			if id, decodeErr = decodeAccountID(v); decodeErr == nil {
				info.ProxyAccountID = &id
			}
		case num == fieldKey && typ == protowire.BytesType:
			info.Key = append([]byte{}, v...)
		case num == fieldExpirationTime && typ == protowire.BytesType:
			var ts timestamppb.Timestamp
			if decodeErr = proto.Unmarshal(v, &ts); decodeErr == nil {
				info.ExpirationTime = &model.Timestamp{Seconds: ts.GetSeconds(), Nanos: ts.GetNanos()}
			}
		case num == fieldAutoRenewPeriod && typ == protowire.BytesType:
			var d durationpb.Duration
			if decodeErr = proto.Unmarshal(v, &d); decodeErr == nil {
				secs := d.GetSeconds()
				info.AutoRenewPeriod = &secs
			}
		case num == fieldMemo && typ == protowire.BytesType:
			memo = string(v)
		}
	})
	if walkErr != nil {
		return model.AccountInfo{}, fmt.Errorf("%w: %w", errs.ErrMalformedRecord, walkErr)
	}
	if decodeErr != nil {
		return model.AccountInfo{}, fmt.Errorf("%w: %w", errs.ErrMalformedRecord, decodeErr)
	}
	if !hasID {
		return model.AccountInfo{}, fmt.Errorf("missing account id: %w", errs.ErrMalformedRecord)
	}
	info.Memo = &memo
	return info, nil
}

func decodeAccountID(b []byte) (model.EntityID, error) {
	var shard, realm, num int64
	err := walk(b, func(n protowire.Number, typ protowire.Type, _ []byte, u uint64) {
		if typ != protowire.VarintType {
			return
		}
		switch n {
		case fieldShardNum:
			shard = int64(u)
		case fieldRealmNum:
			realm = int64(u)
		case fieldAccountNum:
			num = int64(u)
		}
	})
	if err != nil {
		return 0, err
	}
	return model.NewEntityID(shard, realm, num)
}

// walk iterates top-level fields, handing length-delimited payloads as v and varints as u.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			u, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			fn(num, typ, nil, u)
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			fn(num, typ, v, 0)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return nil
}

// --- encode ---

// EncodeAccountInfo produces the wire form of an account record. Absent fields are omitted.
func EncodeAccountInfo(info model.AccountInfo) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAccountID, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeAccountID(info.AccountID))
	if info.Deleted {
		b = protowire.AppendTag(b, fieldDeleted, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if info.ProxyAccountID != nil {
		b = protowire.AppendTag(b, fieldProxyAccountID, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAccountID(*info.ProxyAccountID))
	}
	if info.Key != nil {
		b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
		b = protowire.AppendBytes(b, info.Key)
	}
	if info.ExpirationTime != nil {
		ts, _ := proto.Marshal(&timestamppb.Timestamp{Seconds: info.ExpirationTime.Seconds, Nanos: info.ExpirationTime.Nanos})
		b = protowire.AppendTag(b, fieldExpirationTime, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}
	if info.AutoRenewPeriod != nil {
		d, _ := proto.Marshal(&durationpb.Duration{Seconds: *info.AutoRenewPeriod})
		b = protowire.AppendTag(b, fieldAutoRenewPeriod, protowire.BytesType)
		b = protowire.AppendBytes(b, d)
	}
	if info.Memo != nil && *info.Memo != "" {
		b = protowire.AppendTag(b, fieldMemo, protowire.BytesType)
		b = protowire.AppendString(b, *info.Memo)
	}
	return b
}

// EncodeLine renders an account record as one base64 feed line (without newline).
func EncodeLine(info model.AccountInfo) string {
	return base64.StdEncoding.EncodeToString(EncodeAccountInfo(info))
}

func encodeAccountID(id model.EntityID) []byte {
	var b []byte
	for _, f := range []struct {
		num protowire.Number
		val int64
	}{{fieldShardNum, id.Shard()}, {fieldRealmNum, id.Realm()}, {fieldAccountNum, id.Num()}} {
		if f.val == 0 {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.val))
	}
	return b
}
