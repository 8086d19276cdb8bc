// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redact masks configured sensitive fields before data reaches logs.
//
// The set of field names comes from a KeySource and is read on every call,
// so a reloaded configuration applies to the next payload filtered.
package redact

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Marker replaces every redacted value.
const Marker = "[FILTERED]"

// KeySource supplies the field names that must never be logged unmasked.
type KeySource interface {
	FilterParameters() []string
}

// Keys is a static KeySource.
type Keys []string

// FilterParameters implements KeySource.
func (k Keys) FilterParameters() []string {
	return k
}

// keySet is a lowercased lookup built once per Filter call.
type keySet map[string]struct{}

func newKeySet(source KeySource) keySet {
	if source == nil {
		return nil
	}
	params := source.FilterParameters()
	if len(params) == 0 {
		return nil
	}
	set := make(keySet, len(params))
	for _, p := range params {
		p = strings.TrimSpace(p)
		if p != "" {
			set[strings.ToLower(p)] = struct{}{}
		}
	}
	return set
}

func (s keySet) has(key string) bool {
	_, ok := s[strings.ToLower(key)]
	return ok
}

// Filter returns a copy of payload with sensitive values replaced by Marker.
//
// Mappings are walked recursively and keep their shape. A nested mapping is
// always recursed into, even under a sensitive key. Lists are walked element
// by element, but a list held by a sensitive key is replaced whole. Structs
// are normalized through their JSON form first. Any other value is returned
// unchanged. The input is never mutated.
func Filter(payload any, source KeySource) any {
	keys := newKeySet(source)
	if len(keys) == 0 {
		return payload
	}
	return keys.walk(normalize(payload))
}

// FilterMap is Filter for the common map case.
func FilterMap(payload map[string]any, source KeySource) map[string]any {
	if payload == nil {
		return nil
	}
	out, _ := Filter(payload, source).(map[string]any)
	return out
}

func (s keySet) walk(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = s.value(k, inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.walk(inner)
		}
		return out
	}
	switch n := normalize(v).(type) {
	case map[string]any, []any:
		return s.walk(n)
	}
	return v
}

func (s keySet) value(key string, v any) any {
	n := normalize(v)
	if m, ok := n.(map[string]any); ok {
		return s.walk(m)
	}
	if s.has(key) {
		return Marker
	}
	return s.walk(v)
}

// normalize converts structs and typed maps or slices into the generic
// map[string]any / []any form so they can be walked.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return v
	case map[string]any, []any:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Header returns a copy of h with sensitive header values replaced by Marker.
// Authorization and Cookie headers are always masked.
func Header(h http.Header, source KeySource) http.Header {
	if h == nil {
		return nil
	}
	keys := newKeySet(source)
	out := make(http.Header, len(h))
	for name, values := range h {
		if isCredentialHeader(name) || keys.has(name) {
			out[name] = []string{Marker}
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// HeaderMap is Header for caller-supplied request header maps.
func HeaderMap(h map[string]string, source KeySource) map[string]string {
	if h == nil {
		return nil
	}
	keys := newKeySet(source)
	out := make(map[string]string, len(h))
	for name, value := range h {
		if isCredentialHeader(name) || keys.has(name) {
			out[name] = Marker
			continue
		}
		out[name] = value
	}
	return out
}

func isCredentialHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "proxy-authorization", "cookie", "set-cookie", "x-api-key":
		return true
	}
	return false
}

// sensitiveParams are query parameter fragments masked regardless of the
// configured key set. Matched case-insensitively.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"secret",
	"credential",
	"signature",
}

// URL renders u with sensitive query parameters masked.
func URL(u *url.URL, source KeySource) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.String()
	}

	keys := newKeySet(source)
	q := u.Query()
	for param := range q {
		if keys.has(param) || isSensitiveParam(param) {
			q.Set(param, Marker)
		}
	}

	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
