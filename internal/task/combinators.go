package task

// Map transforms the success value of t.
func Map(t Task, fn func(any) any) Task {
	return AndThen{Inner: t, Next: Then(func(v any) Task {
		return Succeed{Value: fn(v)}
	})}
}

// MapError transforms the failure value of t.
func MapError(t Task, fn func(any) any) Task {
	return OnError{Inner: t, Next: Then(func(e any) Task {
		return Fail{Err: fn(e)}
	})}
}

// Sequence runs tasks left to right, succeeding with a []any of their values
// or failing with the first failure.
func Sequence(tasks ...Task) Task {
	var acc Task = Succeed{Value: []any{}}
	for _, t := range tasks {
		acc = AndThen{Inner: acc, Next: Then(func(prev any) Task {
			return Map(t, func(v any) any {
				values := prev.([]any)
				out := make([]any, len(values), len(values)+1)
				copy(out, values)
				return append(out, v)
			})
		})}
	}
	return acc
}

// Attempt converts t into a task that always succeeds, wrapping its outcome
// with onOk or onErr. It mirrors the host runtime's Task.attempt, whose
// results are dispatched back as messages.
func Attempt(t Task, onOk, onErr func(any) any) Task {
	return OnError{
		Inner: Map(t, onOk),
		Next: Then(func(e any) Task {
			return Succeed{Value: onErr(e)}
		}),
	}
}
