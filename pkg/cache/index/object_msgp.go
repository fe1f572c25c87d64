/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package index

import (
	"github.com/tinylib/msgp/msgp"
)

const objectFieldCount = 8

// MarshalMsg implements msgp.Marshaler
func (o *Object) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.Require(b, o.Msgsize())
	b = msgp.AppendMapHeader(b, objectFieldCount)
	b = msgp.AppendString(b, "key")
	b = msgp.AppendString(b, o.Key)
	b = msgp.AppendString(b, "category")
	b = msgp.AppendString(b, o.Category)
	b = msgp.AppendString(b, "expiration")
	b = msgp.AppendTime(b, o.Expiration)
	b = msgp.AppendString(b, "lastwrite")
	b = msgp.AppendTime(b, o.LastWrite)
	b = msgp.AppendString(b, "lastaccess")
	b = msgp.AppendTime(b, o.LastAccess)
	b = msgp.AppendString(b, "size")
	b = msgp.AppendInt64(b, o.Size)
	b = msgp.AppendString(b, "access_count")
	b = msgp.AppendUint64(b, o.AccessCount)
	b = msgp.AppendString(b, "value")
	b = msgp.AppendBytes(b, o.Value)
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (o *Object) UnmarshalMsg(bts []byte) ([]byte, error) {
	var field []byte
	fields, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}
	for fields > 0 {
		fields--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "key":
			o.Key, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Key")
			}
		case "category":
			o.Category, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Category")
			}
		case "expiration":
			o.Expiration, bts, err = msgp.ReadTimeBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Expiration")
			}
		case "lastwrite":
			o.LastWrite, bts, err = msgp.ReadTimeBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "LastWrite")
			}
		case "lastaccess":
			o.LastAccess, bts, err = msgp.ReadTimeBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "LastAccess")
			}
		case "size":
			o.Size, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "Size")
			}
		case "access_count":
			o.AccessCount, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "AccessCount")
			}
		case "value":
			o.Value, bts, err = msgp.ReadBytesBytes(bts, o.Value[:0])
			if err != nil {
				return bts, msgp.WrapError(err, "Value")
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return bts, msgp.WrapError(err)
			}
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (o *Object) Msgsize() int {
	return 1 + // map header for 8 fields
		4 + msgp.StringPrefixSize + len(o.Key) +
		9 + msgp.StringPrefixSize + len(o.Category) +
		11 + msgp.TimeSize +
		10 + msgp.TimeSize +
		11 + msgp.TimeSize +
		5 + msgp.Int64Size +
		13 + msgp.Uint64Size +
		6 + msgp.BytesPrefixSize + len(o.Value)
}
