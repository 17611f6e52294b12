package lego

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrModelMustBeSet         = errors.New("model must be set")
	ErrReaderMustBeSet        = errors.New("reader must be set")
	ErrEvalSplitMustBeSet     = errors.New("eval split must be set")
	ErrCheckpointDirMustBeSet = errors.New("checkpoint dir must be set")
	ErrModelCannotVisualize   = errors.New("model does not implement Visualizer")
)

type errorChan struct {
	c    <-chan error
	name string
}

func newErrorChan(name string, c <-chan error) *errorChan {
	return &errorChan{
		c:    c,
		name: name,
	}
}

// mergeErrors merges multiple channels of errors.
// Based on https://blog.golang.org/pipelines.
func mergeErrors(cs ...*errorChan) <-chan error {
	var wg sync.WaitGroup

	// We must ensure that the output channel has the capacity to hold as many errors
	// as there are error channels. This will ensure that it never blocks, even
	// if waitForPhase returns early.
	out := make(chan error, len(cs))

	output := func(c *errorChan) {
		for n := range c.c {
			out <- errors.Wrap(n, c.name)
		}
		wg.Done()
	}

	wg.Add(len(cs))

	for _, c := range cs {
		if c == nil || c.c == nil {
			wg.Done()

			continue
		}

		go output(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// waitForPhase waits for results from all error channels.
// It returns early on the first error.
func waitForPhase(errs ...*errorChan) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}

	return nil
}
