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

import "sync"

// maxObjectMsgBufSize is the maximum serialized-object buffer capacity to allow
// back into the pool. Buffers that grew beyond this are discarded to prevent bloat.
const maxObjectMsgBufSize = 1 << 20 // 1 MB

// objectMsgBufPool pools []byte slices used as output buffers for msgp serialization.
// Stored as *[]byte to preserve the slice header (capacity) across pool round-trips.
var objectMsgBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// MarshalPooled serializes the Object into a pooled buffer. The caller must
// hand the buffer back with ReleaseBuffer once the bytes are no longer referenced.
func (o *Object) MarshalPooled() ([]byte, error) {
	bp := objectMsgBufPool.Get().(*[]byte)
	return o.MarshalMsg((*bp)[:0])
}

// ReleaseBuffer returns b to the pool. b must not be used after this call.
func ReleaseBuffer(b []byte) {
	if cap(b) > maxObjectMsgBufSize {
		return
	}
	objectMsgBufPool.Put(&b)
}
