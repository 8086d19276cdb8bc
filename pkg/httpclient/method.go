package httpclient

import (
	"net/http"
	"strings"
)

// Method is one of the HTTP verbs the client accepts.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// HasBody reports whether requests with m carry a JSON body. Only GET does not.
func (m Method) HasBody() bool {
	return m.Valid() && m != MethodGet
}

func (m Method) String() string {
	return string(m)
}

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", unsupportedMethod(s)
	}
	return m, nil
}
