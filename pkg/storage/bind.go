package storage

import (
	"encoding/json"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/state"
)

// Bind returns a binding backed by key. Reads decode the stored JSON value
// and fall back to initial when the key is absent or undecodable. Writes
// encode and persist the value, then invalidate sink.
//
// Storage failures are reported with errors.KindStorage and the write is
// dropped; the sink is not invalidated.
func Bind[T any](s *Store, key string, initial T, sink state.Invalidator) state.Binding[T] {
	get := func() T {
		data, err := s.Get(key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				report("storage.Get", key, err)
			}
			return initial
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			report("storage.Decode", key, err)
			return initial
		}
		return v
	}
	set := func(v T) {
		data, err := json.Marshal(v)
		if err != nil {
			report("storage.Encode", key, err)
			return
		}
		if err := s.Put(key, data); err != nil {
			report("storage.Put", key, err)
			return
		}
		if sink != nil {
			sink.Invalidate()
		}
	}
	return state.NewBinding(get, set)
}

func report(op, key string, err error) {
	errors.Report(&errors.Error{
		Op:   op,
		Kind: errors.KindStorage,
		Node: key,
		Err:  err,
	})
}
