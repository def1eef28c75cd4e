package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs
// JSON. Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Encode(v any) ([]byte, error) {
	if err, ok := v.(error); ok {
		return msgpack.Marshal(exceptionEnvelope(err))
	}
	return msgpack.Marshal(v)
}

func (Msgpack) Decode(b []byte) (any, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err == nil && env.Kind == kindException {
		return Revive(env.Module, env.Class, env.Message), nil
	}
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (Msgpack) DecodeInto(b []byte, dst any) (error, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err == nil && env.Kind == kindException {
		return Revive(env.Module, env.Class, env.Message), nil
	}
	return nil, msgpack.Unmarshal(b, dst)
}
