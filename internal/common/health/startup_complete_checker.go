package health

import (
	"errors"
	"sync/atomic"
)

// StartupCompleteChecker fails until MarkComplete is called.
type StartupCompleteChecker struct {
	complete atomic.Bool
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	return &StartupCompleteChecker{}
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.complete.Store(true)
}

func (c *StartupCompleteChecker) Check() error {
	if c.complete.Load() {
		return nil
	}
	return errors.New("application has not completed startup")
}
