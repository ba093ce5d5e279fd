package feedback

import "math/rand"

// Picker chooses an index in [0, n) for closing-message sampling.
type Picker interface {
	Pick(n int) int
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(n int) int

// Pick calls f.
func (f PickerFunc) Pick(n int) int { return f(n) }

// RandomPicker samples uniformly.
func RandomPicker() Picker {
	return PickerFunc(func(n int) int {
		if n <= 1 {
			return 0
		}
		return rand.Intn(n)
	})
}

// ScriptedPicker returns the given indexes in order, then repeats the last one.
// Indexes are clamped into range.
func ScriptedPicker(indexes ...int) Picker {
	i := 0
	return PickerFunc(func(n int) int {
		if n <= 0 || len(indexes) == 0 {
			return 0
		}
		idx := indexes[len(indexes)-1]
		if i < len(indexes) {
			idx = indexes[i]
			i++
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		return idx
	})
}
