package task

import (
	"fmt"
	"reflect"
)

// deriveName names a unit registered without WithName.
//
// Stringers name themselves. Reference kinds get "<type>@<address>", so two
// distinct closures of the same type usually get distinct names; value kinds
// only get their type. Derived names are not guaranteed unique.
func deriveName(u Unit) string {
	if s, ok := u.(fmt.Stringer); ok {
		return s.String()
	}
	v := reflect.ValueOf(u)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Slice, reflect.UnsafePointer:
		return fmt.Sprintf("%T@%#x", u, v.Pointer())
	default:
		return fmt.Sprintf("%T", u)
	}
}
