package rlang

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/panjf2000/ants/v2"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/core/exchange/feather"
	"github.com/polyglotlab/sosr/pkg/core/exchange/rexpr"
	"github.com/polyglotlab/sosr/pkg/core/exchange/rrepr"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	"github.com/polyglotlab/sosr/pkg/core/rlang"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/utils"
)

//go:embed prelude.R
var prelude string

type rlangImpl struct {
	kernel kernel.Kernel
	frames *feather.Store
	pool   *ants.Pool
}

func New(k kernel.Kernel, frames *feather.Store, pool *ants.Pool) rlang.Service {
	return &rlangImpl{
		kernel: k,
		frames: frames,
		pool:   pool,
	}
}

func (r *rlangImpl) Init(ctx context.Context) error {
	if err := r.kernel.Execute(ctx, prelude); err != nil {
		logger.Errorf(ctx, "rlang init statements err: %+v", err)
		return err
	}
	return nil
}

func (r *rlangImpl) GetVars(ctx context.Context, vars map[string]any) (*rlang.GetVarsResult, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &rlang.GetVarsResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		value := vars[name]
		target := name
		warning := ""
		if strings.HasPrefix(name, "_") {
			target = "." + name[1:]
			warning = fmt.Sprintf("Variable %s is passed from SoS to kernel R as %s", name, target)
			res.Warnings = append(res.Warnings, warning)
		}

		wg.Add(1)
		job := func() {
			defer wg.Done()
			tr := r.getOne(ctx, name, target, value)
			tr.Warning = warning
			mu.Lock()
			res.Transfers = append(res.Transfers, tr)
			if tr.Error != "" {
				res.Warnings = append(res.Warnings, tr.Error)
			}
			mu.Unlock()
		}
		if r.pool != nil {
			if err := r.pool.Submit(job); err == nil {
				continue
			}
		}
		utils.SafelyRun(job)
	}
	wg.Wait()

	sort.Slice(res.Transfers, func(i, j int) bool {
		return res.Transfers[i].SourceName < res.Transfers[j].SourceName
	})
	return res, nil
}

func (r *rlangImpl) getOne(ctx context.Context, name, target string, value any) *rlang.TransferInfo {
	tr := &rlang.TransferInfo{SourceName: name, TargetName: target}

	enc := rexpr.New(r.frames)
	expr, err := enc.Encode(value)
	if err != nil {
		tr.Error = fmt.Sprintf("Failed to get variable %s to R: %v", name, err)
		return tr
	}
	if warns := enc.Warnings(); len(warns) > 0 {
		tr.Error = strings.Join(warns, "\n")
	}
	tr.ByteSize = int64(len(expr))

	if err := r.kernel.Execute(ctx, fmt.Sprintf("%s <- %s", target, expr)); err != nil {
		logger.Errorf(ctx, "rlang get var: %s err: %+v", name, err)
		tr.Error = fmt.Sprintf("Failed to get variable %s to R: %v", name, err)
	}
	return tr
}

func (r *rlangImpl) PutVars(ctx context.Context, names []string) (*rlang.PutVarsResult, error) {
	res := &rlang.PutVarsResult{Vars: map[string]any{}}

	// variables the kernel itself created for the host
	lsOut, err := r.kernel.Stdout(ctx, "cat(..py.repr(ls()))")
	if err != nil {
		return nil, err
	}
	allVars, err := rrepr.NewDecoder(r.frames).Decode(lsOut)
	if err != nil {
		return nil, code.DecodeReprErr.WithMsgf("cannot parse ls() reply: %v", err)
	}

	items := append([]string{}, names...)
	seen := make(map[string]bool, len(items))
	for _, n := range items {
		seen[n] = true
	}
	for _, v := range asStrings(allVars) {
		if strings.HasPrefix(v, "sos") && !seen[v] {
			items = append(items, v)
			seen[v] = true
		}
	}

	for _, item := range items {
		if strings.Contains(item, ".") {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("Variable %s is put to SoS as %s", item, strings.ReplaceAll(item, ".", "_")))
		}
	}

	if len(items) == 0 {
		return res, nil
	}

	entries := make([]string, len(items))
	for i, item := range items {
		entries[i] = fmt.Sprintf("%s=%s", item, item)
	}
	reprOut, err := r.kernel.Stdout(ctx,
		fmt.Sprintf("cat(..py.repr(list(%s)))", strings.Join(entries, ",")))
	if err != nil {
		return nil, err
	}
	if max := config.Exchange().MaxReprBytes; max > 0 && len(reprOut) > max {
		return nil, code.DecodeReprErr.WithMsgf("repr payload of %d bytes exceeds limit %d", len(reprOut), max)
	}

	decoded, err := rrepr.NewDecoder(r.frames).Decode(reprOut)
	if err != nil {
		logger.Errorf(ctx, "rlang put vars decode err: %+v repr: %s", err, reprOut)
		return nil, code.DecodeReprErr.WithMsgf("failed to evaluate %q: %v", reprOut, err)
	}
	vars, ok := decoded.(map[string]any)
	if !ok {
		return nil, code.DecodeReprErr.WithMsgf("expect named list reply, got %T", decoded)
	}
	for k, v := range vars {
		res.Vars[strings.ReplaceAll(k, ".", "_")] = v
	}

	classes := r.classesOf(ctx, entries)
	for _, item := range items {
		target := strings.ReplaceAll(item, ".", "_")
		tr := &rlang.TransferInfo{
			SourceName: item,
			TargetName: target,
			RClass:     classes[target],
		}
		if target != item {
			tr.Warning = fmt.Sprintf("Variable %s is put to SoS as %s", item, target)
		}
		res.Transfers = append(res.Transfers, tr)
	}
	return res, nil
}

// classesOf asks the kernel for the class of each transferred variable,
// best effort.
func (r *rlangImpl) classesOf(ctx context.Context, entries []string) map[string]string {
	out, err := r.kernel.Stdout(ctx,
		fmt.Sprintf("cat(..py.repr(lapply(list(%s), function(o) class(o)[1])))", strings.Join(entries, ",")))
	if err != nil {
		logger.Warnf(ctx, "rlang classes query err: %+v", err)
		return nil
	}
	decoded, err := rrepr.NewDecoder(r.frames).Decode(out)
	if err != nil {
		return nil
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil
	}
	classes := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			classes[strings.ReplaceAll(k, ".", "_")] = s
		}
	}
	return classes
}

func (r *rlangImpl) Expand(ctx context.Context, text string, sigil string) (*rlang.ExpandResult, error) {
	if sigil == "" {
		sigil = rlang.DefaultSigil
	}
	if strings.Contains(sigil, `"`) {
		return &rlang.ExpandResult{
			Text:     text,
			Warnings: []string{fmt.Sprintf("Unacceptable delimiter %s", sigil)},
		}, nil
	}

	parts := strings.Split(sigil, " ")
	if len(parts) != 2 {
		return nil, code.ExpandSigilErr.WithMsgf("sigil %q must be two space-separated delimiters", sigil)
	}
	l, rr := parts[0], parts[1]
	// a trailing-alpha delimiter such as `r needs its space kept
	if isAlphaEnd(l) {
		l += " "
	}
	if isAlphaStart(rr) {
		rr = " " + rr
	}

	escaped := strings.ReplaceAll(text, `"`, `\"`)
	out, err := r.kernel.Stdout(ctx,
		fmt.Sprintf(`..sos.expand("%s", c("%s", "%s"))`, escaped, l, rr))
	if err != nil {
		return &rlang.ExpandResult{
			Text:     text,
			Warnings: []string{fmt.Sprintf("Failed to expand %s with sigil %s: %v", text, sigil, err)},
		}, nil
	}
	return &rlang.ExpandResult{Text: out}, nil
}

func (r *rlangImpl) Preview(ctx context.Context, name string) (string, error) {
	escaped := strings.ReplaceAll(name, `"`, `\"`)
	return r.kernel.Stdout(ctx, fmt.Sprintf(`..sos.preview("%s")`, escaped))
}

func (r *rlangImpl) SessionInfo(ctx context.Context) (string, error) {
	return r.kernel.Stdout(ctx, `cat(paste(capture.output(sessionInfo()), collapse="\n"))`)
}

func (r *rlangImpl) ChangeDir(ctx context.Context, dir string) error {
	return r.kernel.Execute(ctx, fmt.Sprintf("setwd(%s)", rexpr.Quote(dir)))
}

func asStrings(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func isAlphaEnd(s string) bool {
	rs := []rune(s)
	return len(rs) > 0 && unicode.IsLetter(rs[len(rs)-1])
}

func isAlphaStart(s string) bool {
	rs := []rune(s)
	return len(rs) > 0 && unicode.IsLetter(rs[0])
}
