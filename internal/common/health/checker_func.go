package health

// CheckerFunc adapts a plain function to a Checker.
type CheckerFunc func() error

func (f CheckerFunc) Check() error {
	return f()
}
