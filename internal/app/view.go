package app

type Status int

const (
	Loading Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return "error"
}

// View is what a screen renders: loading, a ready list, or an error message.
type View[T any] struct {
	Status Status
	Items  []T
	Err    error
}

func loadingView[T any]() View[T] {
	return View[T]{Status: Loading}
}

func readyView[T any](items []T) View[T] {
	if items == nil {
		items = []T{}
	}
	return View[T]{Status: Ready, Items: items}
}

func failedView[T any](err error) View[T] {
	return View[T]{Status: Failed, Err: err}
}
