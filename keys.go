package depcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// CacheKeyer lets an argument supply its own cache-key representation,
// so logically-equal-but-distinct instances share a key.
type CacheKeyer interface {
	CacheKey() string
}

// identifier fields probed on struct arguments, in priority order.
var identifierFields = [...]string{"PK", "ID"}

// argCacheKey builds the key representation of a single argument:
// CacheKeyer wins, then a PK/ID identifier field qualified by the type
// name, then the default string form.
func argCacheKey(v any) string {
	if v == nil {
		return "<nil>"
	}
	if ck, ok := v.(CacheKeyer); ok {
		return ck.CacheKey()
	}
	if s, ok := identifierKey(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

func identifierKey(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	for _, name := range identifierFields {
		f := rv.FieldByName(name)
		if f.IsValid() && f.CanInterface() {
			return rv.Type().Name() + "::" + fmt.Sprint(f.Interface()), true
		}
	}
	return "", false
}

// qualifiedName resolves the package-qualified name of fn.
func qualifiedName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() == reflect.Func {
		if f := runtime.FuncForPC(v.Pointer()); f != nil {
			return f.Name()
		}
	}
	return fmt.Sprintf("%T", fn)
}

// deriveKey hashes the qualified name and argument representations into
// a fixed-length key that cannot escape the backend key namespace.
func deriveKey(qual string, argKeys []string) string {
	full := qual + "(" + strings.Join(argKeys, ",") + ")"
	sum := sha256.Sum256([]byte(full))
	return hex.EncodeToString(sum[:])
}
