package state

// AsyncState tracks the lifecycle of one remote-backed collection of T:
// the loaded items plus one busy flag per operation kind and the last
// operation error.
//
// AsyncState is immutable data: reducers and merge helpers copy the struct
// and replace the Data slice, never mutate it in place. Downstream
// change detection relies on that.
type AsyncState[T any] struct {
	// Data holds the loaded items. Meaningless until Loaded is true.
	Data []T `json:"data"`

	// Loaded distinguishes "empty collection" from "never loaded".
	Loaded bool `json:"loaded"`

	// Busy flags, one per operation kind.
	Loading  bool `json:"loading"`
	Adding   bool `json:"adding"`
	Updating bool `json:"updating"`
	Deleting bool `json:"deleting"`

	// Err is the last operation's failure message.
	// Empty means no error. Cleared on every new intent and on reset.
	Err string `json:"error,omitempty"`
}

// Busy reports whether any operation is in flight.
func (s AsyncState[T]) Busy() bool {
	return s.Loading || s.Adding || s.Updating || s.Deleting
}

// Append returns a copy of s with item appended to a fresh Data slice.
func Append[T any](s AsyncState[T], item T) AsyncState[T] {
	data := make([]T, 0, len(s.Data)+1)
	data = append(data, s.Data...)
	data = append(data, item)
	s.Data = data
	return s
}

// ReplaceFunc returns a copy of s where every item matched by match is
// replaced with item. Order is preserved.
func ReplaceFunc[T any](s AsyncState[T], item T, match func(T) bool) AsyncState[T] {
	data := make([]T, len(s.Data))
	for i, existing := range s.Data {
		if match(existing) {
			data[i] = item
		} else {
			data[i] = existing
		}
	}
	s.Data = data
	return s
}

// RemoveFunc returns a copy of s without the items matched by match.
func RemoveFunc[T any](s AsyncState[T], match func(T) bool) AsyncState[T] {
	data := make([]T, 0, len(s.Data))
	for _, existing := range s.Data {
		if !match(existing) {
			data = append(data, existing)
		}
	}
	s.Data = data
	return s
}
