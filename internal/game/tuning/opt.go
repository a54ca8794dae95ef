package tuning

import "fmt"

// Number constrains Opt to the scalar kinds used by override tables.
type Number interface {
	~int | ~float64
}

// Opt is an optional scalar. The zero value is unset.
type Opt[T Number] struct {
	val T
	set bool
}

// Some returns a set Opt holding v.
func Some[T Number](v T) Opt[T] {
	return Opt[T]{val: v, set: true}
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) {
	return o.val, o.set
}

// IsSet reports whether o holds a value.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Or returns the held value, or def when unset.
func (o Opt[T]) Or(def T) T {
	if o.set {
		return o.val
	}
	return def
}

// Over returns o when set, otherwise lower.
func (o Opt[T]) Over(lower Opt[T]) Opt[T] {
	if o.set {
		return o
	}
	return lower
}

// String renders the value or "unset".
func (o Opt[T]) String() string {
	if !o.set {
		return "unset"
	}
	return fmt.Sprint(o.val)
}

// F is shorthand for a set float option.
func F(v float64) Opt[float64] { return Some(v) }
