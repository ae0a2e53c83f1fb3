// Package printer submits finished sheets to an external print command.
// The physical printer is a collaborator: this package only shells out.
package printer

import (
	"fmt"
	"os/exec"
	"strings"

	"photobooth/internal/debug"
)

// Printer submits print jobs for a finished sheet.
type Printer interface {
	// Submit queues enough jobs for the requested number of copies.
	// Copies are consumed two at a time: each 4x6 sheet carries two
	// identical strips, so one job yields two physical copies.
	Submit(sheetPath string, copies int) error
}

// CommandPrinter invokes a print command (typically lp) per job.
type CommandPrinter struct {
	command string
	target  string // extra arguments, e.g. "-d selphy"
}

// NewCommandPrinter builds a printer around the configured command and
// target arguments.
func NewCommandPrinter(command, target string) *CommandPrinter {
	return &CommandPrinter{command: command, target: target}
}

func (p *CommandPrinter) Submit(sheetPath string, copies int) error {
	jobs := copies / 2
	for i := 0; i < jobs; i++ {
		args := append(splitArgs(p.target), sheetPath)
		cmd := exec.Command(p.command, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("print job %d/%d: %w (%s)", i+1, jobs, err, out)
		}
		debug.PrintJob(i+1, jobs, sheetPath)
	}
	return nil
}

// splitArgs breaks the configured target string into argv entries.
func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// NopPrinter drops jobs, for booths running without printing enabled.
type NopPrinter struct{}

func (NopPrinter) Submit(sheetPath string, copies int) error {
	debug.Info("Printing disabled; would have printed %d copies of %s", copies, sheetPath)
	return nil
}
