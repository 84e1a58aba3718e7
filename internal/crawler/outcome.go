package crawler

// Outcome is the result of one unit of work: a list page, a detail item or a job.
// Exactly one of Value and Err is meaningful.
type Outcome[T any] struct {
	Unit  string
	Value T
	Err   error
}

// OK reports whether the unit succeeded
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Succeeded wraps a successful unit result
func Succeeded[T any](unit string, value T) Outcome[T] {
	return Outcome[T]{Unit: unit, Value: value}
}

// Failed wraps a typed failure
func Failed[T any](unit string, err error) Outcome[T] {
	return Outcome[T]{Unit: unit, Err: err}
}

// Failures returns the failed outcomes of a batch
func Failures[T any](outcomes []Outcome[T]) []Outcome[T] {
	var failed []Outcome[T]
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}
