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


package encoding

import (
	"bytes"
	"errors"
	"testing"

	"github.com/trickstercache/tiercache/pkg/encoding/providers"
)

func TestEncodeDecode(t *testing.T) {
	in := bytes.Repeat([]byte("tiercache compressed blob tier "), 256)
	for _, name := range providers.Providers() {
		t.Run(name, func(t *testing.T) {
			p := providers.ProviderID(name)
			enc, err := Encode(p, in)
			if err != nil {
				t.Fatal(err)
			}
			if len(enc) >= len(in) {
				t.Errorf("expected compressed size < %d got %d", len(in), len(enc))
			}
			dec, err := Decode(p, enc)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dec, in) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	in := []byte("plain")
	out, err := Encode(providers.Identity, in)
	if err != nil || string(out) != "plain" {
		t.Errorf("expected passthrough got %s %v", out, err)
	}
	out, err = Decode(providers.Identity, in)
	if err != nil || string(out) != "plain" {
		t.Errorf("expected passthrough got %s %v", out, err)
	}
}

func TestUnsupported(t *testing.T) {
	_, err := Encode(providers.Provider(9), []byte("x"))
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider got %v", err)
	}
	_, err = Decode(providers.Provider(9), []byte("x"))
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, p := range []providers.Provider{providers.GZip, providers.Zstandard, providers.Snappy} {
		if _, err := Decode(p, []byte("not compressed at all")); err == nil {
			t.Errorf("expected error decoding garbage with %s", p)
		}
	}
}
