// Package obslog centralizes the teacher's ad-hoc log.Printf convention
// into prefixed *log.Logger instances, one per component.
package obslog

import (
	"log"
	"os"
)

// New returns a standard logger prefixed with the component name, e.g.
// "[orchestrator] ".
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}
