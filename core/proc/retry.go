package proc

import "time"

// retryPolicy retries an operation a bounded number of times with a fixed
// delay. Errors matched by terminal stop the retries immediately; they are
// returned to the caller, which decides whether they matter. The sleep
// function is injectable so tests can run with a fake clock.
type retryPolicy struct {
	attempts int
	delay    time.Duration
	terminal func(error) bool
	sleep    func(time.Duration)
}

// do runs fn until it succeeds, hits a terminal error, or exhausts the
// attempt budget. The last error seen is returned.
func (p retryPolicy) do(fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for i := 0; i < p.attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.terminal != nil && p.terminal(err) {
			return err
		}
		if i < p.attempts-1 {
			sleep(p.delay)
		}
	}
	return err
}
