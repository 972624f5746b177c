package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig/internal/catalog"
	"rig/internal/logger"
	"rig/internal/rigerr"
	"rig/internal/runner"
)

const testCatalog = `entries:
  - name: Bootstrap
    description: Initialize system
    required: true
    steps:
      - run: [apt, update]
        sudo: true
  - name: one
    description: Install one
    steps:
      - run: [install-one]
  - name: two
    description: Install two
    steps:
      - run: [install-two, first]
      - run: [install-two, second]
  - name: three
    description: Install three
    check:
      command: [three, --version]
    steps:
      - run: [install-three]
  - name: four
    description: Install four
    notice: four needs a restart
    steps:
      - run: [install-four]
`

type fakeRunner struct {
	ran    []string
	fail   map[string]bool
	panics map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, c runner.Command) (string, error) {
	cmd := strings.Join(c.Argv, " ")
	f.ran = append(f.ran, cmd)
	if f.panics[cmd] {
		panic("boom")
	}
	if f.fail[cmd] {
		return "", errors.New("exit status 100")
	}
	return "", nil
}

type fakePrompter struct {
	answers map[string]bool
	asked   []string
	err     error
}

func (p *fakePrompter) Confirm(question string, def bool) (bool, error) {
	p.asked = append(p.asked, question)
	if p.err != nil {
		return false, p.err
	}
	if a, ok := p.answers[question]; ok {
		return a, nil
	}
	return def, nil
}

type fakeProbe map[string]bool

func (p fakeProbe) Succeeds(_ context.Context, argv ...string) bool {
	return p[strings.Join(argv, " ")]
}
func (p fakeProbe) HasCommand(name string) bool { return p[name] }

func newTestOrchestrator(t *testing.T, r *fakeRunner, p *fakePrompter, probe fakeProbe) (*Orchestrator, *test.Hook) {
	t.Helper()
	c, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	fl := logger.Discard()
	hook := test.NewLocal(fl.Logger())
	return &Orchestrator{
		Catalog:  c,
		Runner:   r,
		Host:     catalog.Host{Probe: probe, Home: t.TempDir()},
		Prompter: p,
		Log:      fl,
		Out:      &bytes.Buffer{},
	}, hook
}

func yesToAll() *fakePrompter {
	return &fakePrompter{answers: map[string]bool{
		"Install one?": true, "Install two?": true, "Install three?": true, "Install four?": true,
	}}
}

func statuses(res Result) map[string]Status {
	m := map[string]Status{}
	for _, o := range res.Outcomes {
		m[o.Entry] = o.Status
	}
	return m
}

func TestRunAllSelected(t *testing.T) {
	r := &fakeRunner{}
	o, _ := newTestOrchestrator(t, r, yesToAll(), fakeProbe{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.BootstrapFailed)
	assert.Equal(t, []string{
		"apt update", "install-one", "install-two first", "install-two second", "install-three", "install-four",
	}, r.ran)

	succeeded, failed, skipped := res.Counts()
	assert.Equal(t, 5, succeeded)
	assert.Zero(t, failed)
	assert.Zero(t, skipped)
}

func TestFailedEntryDoesNotStopTheLoop(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"install-two first": true}}
	o, hook := newTestOrchestrator(t, r, yesToAll(), fakeProbe{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	st := statuses(res)
	assert.Equal(t, Succeeded, st["one"])
	assert.Equal(t, Failed, st["two"])
	assert.Equal(t, Succeeded, st["three"])
	assert.Equal(t, Succeeded, st["four"])
	assert.NotContains(t, r.ran, "install-two second", "remaining commands of a failed entry are skipped")

	for _, out := range res.Outcomes {
		if out.Entry == "two" {
			assert.Equal(t, rigerr.ToolInstallFailed, rigerr.KindOf(out.Err))
			assert.False(t, rigerr.KindOf(out.Err).Fatal())
		}
	}

	var failures int
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "two: failed") {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestPanickingEntryIsContained(t *testing.T) {
	r := &fakeRunner{panics: map[string]bool{"install-one": true}}
	o, _ := newTestOrchestrator(t, r, yesToAll(), fakeProbe{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	st := statuses(res)
	assert.Equal(t, Failed, st["one"])
	assert.Equal(t, Succeeded, st["two"])
}

func TestDeclinedAndInstalledEntriesAreSkipped(t *testing.T) {
	r := &fakeRunner{}
	p := &fakePrompter{answers: map[string]bool{"Install one?": true}}
	o, _ := newTestOrchestrator(t, r, p, fakeProbe{"three --version": true})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Install one?", "Install two?", "Install four?"}, p.asked)
	assert.Equal(t, []string{"apt update", "install-one"}, r.ran)

	st := statuses(res)
	assert.Equal(t, Skipped, st["two"])
	assert.Equal(t, Skipped, st["three"])
	assert.Equal(t, Skipped, st["four"])
	for _, out := range res.Outcomes {
		switch out.Entry {
		case "two", "four":
			assert.Equal(t, "declined", out.Reason)
		case "three":
			assert.Equal(t, "already installed", out.Reason)
		}
	}
}

func TestBootstrapFailureEndsRun(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"apt update": true}}
	p := yesToAll()
	o, _ := newTestOrchestrator(t, r, p, fakeProbe{})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.BootstrapFailed)
	assert.Empty(t, p.asked)
	assert.Len(t, res.Outcomes, 1)
	out := o.Out.(*bytes.Buffer).String()
	assert.Contains(t, out, "interactive terminal")
	assert.Contains(t, out, "Available tools include: one, two, three, four\n")
}

func TestWelcomeBannerPrintedFirst(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeRunner{}, yesToAll(), fakeProbe{})
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.Out.(*bytes.Buffer).String(), "rig - Opinionated system setup tool"))
}

func TestAvailableTools(t *testing.T) {
	assert.Equal(t, "a, b", availableTools([]string{"a", "b"}))
	assert.Equal(t, "a, b, c, d, e, and more", availableTools([]string{"a", "b", "c", "d", "e", "f"}))
}

func TestSummaryTruncatesOnRuneBoundary(t *testing.T) {
	msg := strings.Repeat("é", 60)
	got := truncate(msg, maxMsg)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", maxMsg)+"...", got)
	assert.Equal(t, "short", truncate("short", maxMsg))
}

func TestPromptFailureIsFatal(t *testing.T) {
	r := &fakeRunner{}
	p := &fakePrompter{err: ErrInterrupted}
	o, _ := newTestOrchestrator(t, r, p, fakeProbe{})

	res, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, rigerr.UnhandledCommandFailure, rigerr.KindOf(err))
	assert.True(t, IsInterrupted(err))
	assert.Len(t, res.Outcomes, 1)
}

func TestCancelledContextStopsBeforeNextEntry(t *testing.T) {
	r := &fakeRunner{}
	o, _ := newTestOrchestrator(t, r, yesToAll(), fakeProbe{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"apt update"}, r.ran)
}

func TestPrintSummary(t *testing.T) {
	res := Result{Outcomes: []Outcome{
		{Entry: "Bootstrap", Status: Succeeded},
		{Entry: "gh", Status: Failed, Err: errors.New(strings.Repeat("x", 80))},
		{Entry: "uv", Status: Skipped, Reason: "declined"},
	}}
	var buf bytes.Buffer
	PrintSummary(&buf, res, "/var/log/setup.log")

	out := buf.String()
	assert.Contains(t, out, "Successful: 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "Total: 3")
	assert.Contains(t, out, strings.Repeat("x", 50)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 51))
	assert.Contains(t, out, "/var/log/setup.log")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
