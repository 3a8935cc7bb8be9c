package objgraph

import (
	"reflect"

	"github.com/BareMetalEngine/bm-core-sub001/internal/rtti"
)

// objectValue mirrors the same tiny helper internal/swriter,
// internal/sreader, and internal/textcodec each keep locally: a
// Class's WriteBinary/WriteText expects the addressable struct value
// behind an Object pointer, not the pointer itself.
func objectValue(obj rtti.Object) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}
