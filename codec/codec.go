// Package codec (de)serializes cache values to bytes for storage.
//
// Values round-trip through the codec's wire format unchanged. Error
// values are special-cased: they serialize as an exception envelope
//
//	{kind: "exception", class_name, module_name, message}
//
// and are revived on decode through a compile-time constructor registry
// (RegisterError). An unregistered kind revives as *CachedError, which
// preserves the original type identity and message.
package codec

import (
	"reflect"
	"sync"
)

// Codec encodes/decodes values to []byte for storage. Encode accepts
// error values and stores them as exception envelopes.
type Codec interface {
	Encode(v any) ([]byte, error)

	// Decode returns the stored value. A stored exception decodes to
	// its revived error, returned as the value.
	Decode(b []byte) (any, error)

	// DecodeInto decodes the stored value into dst. If the entry is a
	// stored exception, cached holds the revived error and dst is left
	// untouched. err reports wire-format failures only.
	DecodeInto(b []byte, dst any) (cached error, err error)
}

const kindException = "exception"

// envelope is the wire shape of a stored exception.
type envelope struct {
	Kind    string `json:"kind" msgpack:"kind" cbor:"kind"`
	Class   string `json:"class_name,omitempty" msgpack:"class_name,omitempty" cbor:"class_name,omitempty"`
	Module  string `json:"module_name,omitempty" msgpack:"module_name,omitempty" cbor:"module_name,omitempty"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty" cbor:"message,omitempty"`
}

// CachedError stands in for an error whose concrete type is not
// registered in this process. Class and Module identify the original
// type; Error() preserves the original message.
type CachedError struct {
	Class   string
	Module  string
	Message string
}

func (e *CachedError) Error() string { return e.Message }

var (
	ctorMu sync.RWMutex
	ctors  = make(map[string]func(message string) error)
)

// RegisterError registers a constructor used to revive stored
// exceptions of the given identity. Module and class should match
// ErrorIdentity of the error's concrete type. Typically called from
// init of the package owning the error type.
func RegisterError(module, class string, ctor func(message string) error) {
	ctorMu.Lock()
	ctors[module+"."+class] = ctor
	ctorMu.Unlock()
}

// ErrorIdentity reports the module (package path) and class (type name)
// recorded for err in the exception envelope.
func ErrorIdentity(err error) (module, class string) {
	if ce, ok := err.(*CachedError); ok {
		return ce.Module, ce.Class
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "", ""
	}
	return t.PkgPath(), t.Name()
}

// Revive constructs an error value for a stored exception, using the
// registered constructor when one exists and *CachedError otherwise.
func Revive(module, class, message string) error {
	ctorMu.RLock()
	ctor, ok := ctors[module+"."+class]
	ctorMu.RUnlock()
	if ok {
		return ctor(message)
	}
	return &CachedError{Class: class, Module: module, Message: message}
}

func exceptionEnvelope(err error) envelope {
	module, class := ErrorIdentity(err)
	return envelope{
		Kind:    kindException,
		Class:   class,
		Module:  module,
		Message: err.Error(),
	}
}
