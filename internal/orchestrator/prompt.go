package orchestrator

import (
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"

	"rig/internal/handoff"
)

// ErrInterrupted is returned when the user aborts a prompt with Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// Prompter asks yes/no questions.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
}

// SurveyPrompter asks on the terminal. When stdin is piped, as in "curl ... | bash", the
// questions are asked on the controlling terminal instead.
type SurveyPrompter struct {
	opts []survey.AskOpt
	tty  *os.File
}

// NewSurveyPrompter returns a prompter bound to the terminal.
func NewSurveyPrompter() *SurveyPrompter {
	p := &SurveyPrompter{}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		if tty, err := os.OpenFile(handoff.TTYPath, os.O_RDWR, 0); err == nil {
			p.tty = tty
			p.opts = append(p.opts, survey.WithStdio(tty, tty, os.Stderr))
		}
	}
	return p
}

func (p *SurveyPrompter) Confirm(question string, def bool) (bool, error) {
	answer := def
	prompt := &survey.Confirm{Message: question, Default: def}
	if err := survey.AskOne(prompt, &answer, p.opts...); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, ErrInterrupted
		}
		return false, err
	}
	return answer, nil
}

// Close releases the terminal device if one was opened.
func (p *SurveyPrompter) Close() error {
	if p.tty == nil {
		return nil
	}
	return p.tty.Close()
}
