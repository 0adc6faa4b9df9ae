// Package ihash computes deterministic digests of Go values, used to
// fingerprint build inputs. Struct fields and map entries hash as a
// set, so field order never changes the digest.
package ihash

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"

	"golang.org/x/crypto/blake2b"
)

func Hash(v interface{}) ([]byte, error) {
	h, _ := blake2b.New256(nil)

	err := hashVal(reflect.ValueOf(v), h)
	if err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func hashVal(v reflect.Value, h io.Writer) error {
	t := reflect.TypeOf(0)

	// Unwrap any layers of pointers and interfaces.
	for {
		if v.Kind() == reflect.Interface {
			v = v.Elem()
			continue
		}

		if v.Kind() == reflect.Ptr {
			v = reflect.Indirect(v)
			continue
		}

		break
	}

	// If it is nil, treat it like a zero.
	if !v.IsValid() {
		v = reflect.Zero(t)
	}

	// binary.Write needs sized values, so widen to the largest.
	switch v.Kind() {
	case reflect.Int, reflect.Int16, reflect.Int32:
		v = reflect.ValueOf(int64(v.Int()))
	case reflect.Uint, reflect.Uint16, reflect.Uint32:
		v = reflect.ValueOf(uint64(v.Uint()))
	case reflect.Bool:
		var tmp int8
		if v.Bool() {
			tmp = 1
		}
		v = reflect.ValueOf(tmp)
	}

	k := v.Kind()

	if k >= reflect.Int && k <= reflect.Complex64 {
		return binary.Write(h, binary.LittleEndian, v.Interface())
	}

	switch k {
	case reflect.String:
		_, err := h.Write([]byte(v.String()))
		return err

	case reflect.Array, reflect.Slice:
		l := v.Len()
		for i := 0; i < l; i++ {
			err := hashVal(v.Index(i), h)
			if err != nil {
				return err
			}
		}

	case reflect.Map:
		// XOR the per-entry hashes so iteration order is moot.
		var agg []byte

		for _, mk := range v.MapKeys() {
			mv := v.MapIndex(mk)

			eh, _ := blake2b.New256(nil)

			err := hashVal(mk, eh)
			if err != nil {
				return err
			}

			err = hashVal(mv, eh)
			if err != nil {
				return err
			}

			agg = mix(agg, eh.Sum(nil))
		}

		h.Write(agg)

	case reflect.Struct:
		t := v.Type()

		name := t.Name()

		l := v.NumField()

		// A `_ struct{}` field can rename the struct for hashing via
		// its hash tag.
		for i := 0; i < l; i++ {
			field := t.Field(i)
			if field.Name == "_" {
				tag := field.Tag.Get("hash")
				if tag == "ignore" || tag == "-" {
					continue
				}

				name = tag
			}
		}

		err := hashVal(reflect.ValueOf(name), h)
		if err != nil {
			return err
		}

		// XOR the per-field hashes so declaration order is moot.
		var agg []byte

		for i := 0; i < l; i++ {
			innerV := v.Field(i)
			if !v.CanSet() && t.Field(i).Name == "_" {
				continue
			}

			fieldType := t.Field(i)
			if fieldType.PkgPath != "" {
				// Unexported
				continue
			}

			tag := fieldType.Tag.Get("hash")
			if tag == "ignore" || tag == "-" {
				continue
			}

			// Skip zero value fields entirely.
			if innerV.IsZero() {
				continue
			}

			eh, _ := blake2b.New256(nil)

			err := hashVal(reflect.ValueOf(fieldType.Name), eh)
			if err != nil {
				return err
			}

			err = hashVal(innerV, eh)
			if err != nil {
				return err
			}

			agg = mix(agg, eh.Sum(nil))
		}

		h.Write(agg)

	default:
		return fmt.Errorf("unknown kind to hash: %s", k)
	}

	return nil
}

func mix(agg, next []byte) []byte {
	if agg == nil {
		return next
	}

	for i, x := range next {
		agg[i] ^= x
	}

	return agg
}
