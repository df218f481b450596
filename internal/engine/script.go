package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

var errScriptTimeout = errors.New("script execution deadline exceeded")

// gojaRunner executes user scripts in a fresh goja VM per run. The VM sees
// only the provided bindings, nothing from the host process; a hard deadline
// interrupts runaway scripts.
type gojaRunner struct{}

// NewScriptRunner constructs the default sandboxed script runner.
func NewScriptRunner() ScriptRunner {
	return &gojaRunner{}
}

// Run evaluates code with the given bindings. The script's completion value
// is returned; goja numbers come back as int64 or float64, booleans as bool.
func (r *gojaRunner) Run(ctx context.Context, code string, bindings map[string]any, deadline time.Duration) (result any, err error) {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	for name, value := range bindings {
		if setErr := vm.Set(name, value); setErr != nil {
			return nil, fmt.Errorf("bind %s: %w", name, setErr)
		}
	}

	timer := time.AfterFunc(deadline, func() {
		vm.Interrupt(errScriptTimeout)
	})
	defer timer.Stop()
	if done := ctx.Done(); done != nil {
		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt(ctx.Err())
		})
		defer stop()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v", r)
		}
	}()

	value, runErr := vm.RunString(code)
	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			return nil, errScriptTimeout
		}
		return nil, runErr
	}
	return value.Export(), nil
}
