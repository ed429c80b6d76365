package health

// Checker is implemented by anything that can report whether it is able to serve.
type Checker interface {
	Check() error
}
