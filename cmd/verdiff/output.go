package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	apierrors "verdiff/internal/errors"
	"verdiff/internal/workflow"
)

// printer writes the user-facing status lines. Logs go to stderr or the
// log file; this is what a person running the tool reads.
type printer struct {
	w         io.Writer
	infoColor *color.Color
	okColor   *color.Color
	warnColor *color.Color
	failColor *color.Color
	dimColor  *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:         w,
		infoColor: color.New(color.FgCyan, color.Bold),
		okColor:   color.New(color.FgGreen),
		warnColor: color.New(color.FgYellow),
		failColor: color.New(color.FgRed, color.Bold),
		dimColor:  color.New(color.FgHiBlack),
	}
}

func (p *printer) step(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.infoColor.Sprint("==>"), fmt.Sprintf(format, args...))
}

func (p *printer) warn(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.warnColor.Sprint("!"), fmt.Sprintf(format, args...))
}

// failure prints err and, for application errors, its context.
func (p *printer) failure(err error) {
	fmt.Fprintf(p.w, "%s %s\n", p.failColor.Sprint("error:"), err.Error())

	var appErr *apierrors.AppError
	if !stderrors.As(err, &appErr) || len(appErr.Context) == 0 {
		return
	}
	keys := make([]string, 0, len(appErr.Context))
	for k := range appErr.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.w, "  %s %v\n", p.dimColor.Sprint(k+":"), appErr.Context[k])
	}
}

// result prints the stages, the summary and every written file.
func (p *printer) result(res *workflow.Result) {
	if res == nil {
		return
	}

	for _, s := range res.Stages {
		var mark string
		switch s.Status {
		case workflow.StageStatusCompleted:
			mark = p.okColor.Sprint("ok  ")
		case workflow.StageStatusSkipped:
			mark = p.warnColor.Sprint("skip")
		default:
			mark = p.failColor.Sprint("fail")
		}
		fmt.Fprintf(p.w, "  %s %-8s %s\n", mark, s.Name, p.dimColor.Sprint(s.Duration.Round(time.Millisecond)))
	}

	if res.Summary != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.infoColor.Sprint("==>"), strings.TrimSpace(res.Summary))
	}

	for _, f := range []struct{ label, path string }{
		{"prompt", res.PromptPath},
		{"result", res.ResultPath},
		{"report", res.ReportPath},
	} {
		if f.path != "" {
			fmt.Fprintf(p.w, "  %-7s %s\n", f.label, f.path)
		}
	}
	for _, path := range res.Exports {
		fmt.Fprintf(p.w, "  %-7s %s\n", "export", path)
	}
}
