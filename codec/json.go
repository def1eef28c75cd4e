package codec

import "encoding/json"

// JSON is the default codec. The zero value is ready to use.
//
// Note that dynamic Decode follows encoding/json conventions: numbers
// come back as float64 and objects as map[string]any. Use DecodeInto
// when the caller knows the concrete type.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Encode(v any) ([]byte, error) {
	if err, ok := v.(error); ok {
		return json.Marshal(exceptionEnvelope(err))
	}
	return json.Marshal(v)
}

func (JSON) Decode(b []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err == nil && env.Kind == kindException {
		return Revive(env.Module, env.Class, env.Message), nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (JSON) DecodeInto(b []byte, dst any) (error, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err == nil && env.Kind == kindException {
		return Revive(env.Module, env.Class, env.Message), nil
	}
	return nil, json.Unmarshal(b, dst)
}
