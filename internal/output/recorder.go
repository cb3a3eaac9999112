package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("recorder closed")

// Recorder durably persists trial outcomes, one per Append.
type Recorder interface {
	Append(o model.TrialOutcome) error
	Close() error
}

type multiRecorder []Recorder

// Multi fans each outcome out to every recorder in order and stops at the first failure.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) Append(o model.TrialOutcome) error {
	for _, r := range m {
		if err := r.Append(o); err != nil {
			return err
		}
	}
	return nil
}

func (m multiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// createVersioned creates path for appending. An existing file is moved to the
// first free path.N so that a rerun never destroys earlier results.
func createVersioned(path string) (*os.File, string, error) {
	var rotated string
	if _, err := os.Stat(path); err == nil {
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s.%d", path, i)
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				rotated = candidate
				break
			}
		}
		if err := os.Rename(path, rotated); err != nil {
			return nil, "", fmt.Errorf("rotate %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", err
	}
	return f, rotated, nil
}
