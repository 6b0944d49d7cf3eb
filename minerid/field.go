package minerid

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// field is a typed view of one value in a coinbase document
type field struct {
	gjson.Result
}

func parseDocument(text []byte) (field, bool) {
	if !gjson.ValidBytes(text) {
		return field{}, false
	}
	return field{gjson.ParseBytes(text)}, true
}

// get returns a member of an object. Keys are literal, never paths.
func (f field) get(key string) field {
	if !f.IsObject() {
		return field{}
	}
	var out gjson.Result
	f.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return field{out}
}

// exists is true for any member present in the document, including null
func (f field) exists() bool { return f.Exists() }

// isNull is true for missing members and explicit nulls
func (f field) isNull() bool { return !f.Exists() || f.Type == gjson.Null }

func (f field) isString() bool { return f.Type == gjson.String }

func (f field) isNumber() bool { return f.Type == gjson.Number }

func (f field) isObject() bool { return f.IsObject() }

func (f field) isArray() bool { return f.IsArray() }

func (f field) str() string { return f.Str }

func (f field) elements() []field {
	arr := f.Array()
	out := make([]field, len(arr))
	for i := range arr {
		out[i] = field{arr[i]}
	}
	return out
}

// asInt32 reads an integral number. Fractions and exponents are rejected.
func (f field) asInt32() (int32, bool) {
	if !f.isNumber() {
		return 0, false
	}
	n, err := strconv.ParseInt(f.Raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

// asUint32 reads a non-negative integral number
func (f field) asUint32() (uint32, bool) {
	n, ok := f.asInt32()
	if !ok || n < 0 {
		return 0, false
	}
	return uint32(n), true
}
