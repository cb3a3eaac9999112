package sweep

import (
	"fmt"
	"time"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// Summary counts outcomes by status.
type Summary struct {
	Total            int
	OK               int
	ProcessErrors    int
	Timeouts         int
	UnexpectedErrors int
	Elapsed          time.Duration
}

// Failed is the number of trials that did not finish with StatusOK.
func (s Summary) Failed() int {
	return s.Total - s.OK
}

func (s Summary) String() string {
	return fmt.Sprintf("%d trials: %d ok, %d process errors, %d timeouts, %d unexpected errors in %s",
		s.Total, s.OK, s.ProcessErrors, s.Timeouts, s.UnexpectedErrors, s.Elapsed.Round(10*time.Millisecond))
}

// Summarize tallies outcomes.
func Summarize(outcomes []model.TrialOutcome, elapsed time.Duration) Summary {
	s := Summary{Total: len(outcomes), Elapsed: elapsed}
	for _, o := range outcomes {
		switch o.Status {
		case model.StatusOK:
			s.OK++
		case model.StatusProcessError:
			s.ProcessErrors++
		case model.StatusTimeout:
			s.Timeouts++
		default:
			s.UnexpectedErrors++
		}
	}
	return s
}
