package state

// Binding is a read/write capability over a storage location. It references
// the location without owning it.
//
// The zero Binding reads the zero value and drops writes.
type Binding[T any] struct {
	get func() T
	set func(T)
}

// NewBinding creates a Binding from an accessor pair. A nil set makes the
// Binding read-only; writes are dropped.
func NewBinding[T any](get func() T, set func(T)) Binding[T] {
	return Binding[T]{get: get, set: set}
}

// Get reads the current value.
func (b Binding[T]) Get() T {
	if b.get == nil {
		var zero T
		return zero
	}
	return b.get()
}

// Set writes value through the Binding.
func (b Binding[T]) Set(value T) {
	if b.set != nil {
		b.set(value)
	}
}

// Constant returns a Binding that always reads value and silently ignores
// writes.
func Constant[T any](value T) Binding[T] {
	return Binding[T]{get: func() T { return value }}
}

// Map derives a Binding[U] from base. Reads apply get to the base value.
// Writes call set with the base value current at write time and the new
// value, then write the result back through base.
func Map[T, U any](base Binding[T], get func(T) U, set func(T, U) T) Binding[U] {
	return Binding[U]{
		get: func() U { return get(base.Get()) },
		set: func(v U) { base.Set(set(base.Get(), v)) },
	}
}

// Transform derives a Binding through a pair of conversion functions: to
// on read, from on write.
//
//	celsius := state.New(scope, 20.0).Binding()
//	fahrenheit := state.Transform(celsius,
//	    func(c float64) float64 { return c*9/5 + 32 },
//	    func(f float64) float64 { return (f - 32) * 5 / 9 })
func Transform[T, U any](base Binding[T], to func(T) U, from func(U) T) Binding[U] {
	return Map(base, to, func(_ T, v U) T { return from(v) })
}

// Project derives a Binding to a member of S. get reads the member; set
// mutates a copy of the current base value, which is then written back.
// Projections chain for nested members:
//
//	city := state.Project(
//	    state.Project(user, func(u User) Address { return u.Address },
//	        func(u *User, a Address) { u.Address = a }),
//	    func(a Address) string { return a.City },
//	    func(a *Address, c string) { a.City = c })
func Project[S, F any](base Binding[S], get func(S) F, set func(*S, F)) Binding[F] {
	return Map(base, get, func(s S, f F) S {
		set(&s, f)
		return s
	})
}
