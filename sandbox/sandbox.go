// Package sandbox runs node scripts in JavaScript using goja.
//
// Each call gets its own goja.Runtime, so nothing a script defines survives into the
// next call. Values cross the boundary as JSON: the input record is parsed inside the
// runtime and the returned record is normalised back to encoding/json types.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/meikuraledutech/pipeline/engine"
)

// ErrTimeout is wrapped into the runtime error of a script that ran past its deadline.
var ErrTimeout = errors.New("sandbox: script timed out")

// JS implements engine.ScriptSandbox on goja.
type JS struct {
	timeout time.Duration
	strict  bool
}

// Option configures a JS sandbox.
type Option func(*JS)

// WithTimeout interrupts scripts that run longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(s *JS) { s.timeout = d }
}

// WithStrict compiles scripts in strict mode. Off by default: scripts run sloppy,
// so assigning to an undeclared variable creates a global.
func WithStrict(on bool) Option {
	return func(s *JS) { s.strict = on }
}

// New returns a JS sandbox.
func New(opts ...Option) *JS {
	s := &JS{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ engine.ScriptSandbox = (*JS)(nil)

// CompileAndRun compiles source in a fresh runtime, calls entry with input and returns
// the object it produced.
func (s *JS) CompileAndRun(source, entry string, input map[string]any) (map[string]any, error) {
	prog, err := goja.Compile("node.js", source, s.strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrScriptCompile, err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if s.timeout > 0 {
		timer := time.AfterFunc(s.timeout, func() { vm.Interrupt(ErrTimeout) })
		defer timer.Stop()
	}

	if _, err := vm.RunProgram(prog); err != nil {
		return nil, runtimeError(err)
	}

	fn, ok := goja.AssertFunction(vm.Get(entry))
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q is not a function", engine.ErrScriptRuntime, engine.ErrEntryFunctionMissing, entry)
	}

	arg, err := parseJSON(vm, input)
	if err != nil {
		return nil, err
	}

	res, err := fn(goja.Undefined(), arg)
	if err != nil {
		return nil, runtimeError(err)
	}
	return exportRecord(vm, res, entry)
}

// parseJSON builds a plain JS object from the input record.
func parseJSON(vm *goja.Runtime, input map[string]any) (goja.Value, error) {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", engine.ErrScriptRuntime, err)
	}
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("%w: JSON.parse unavailable", engine.ErrScriptRuntime)
	}
	v, err := parse(goja.Undefined(), vm.ToValue(string(data)))
	if err != nil {
		return nil, runtimeError(err)
	}
	return v, nil
}

// exportRecord converts the returned object with the runtime's JSON.stringify, so fields
// JSON cannot hold (functions, undefined) are dropped and NaN becomes null.
func exportRecord(vm *goja.Runtime, res goja.Value, entry string) (map[string]any, error) {
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, fmt.Errorf("%w: %s returned nothing", engine.ErrScriptRuntime, entry)
	}
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("%w: JSON.stringify unavailable", engine.ErrScriptRuntime)
	}
	text, err := stringify(goja.Undefined(), res)
	if err != nil {
		return nil, runtimeError(err)
	}
	if goja.IsUndefined(text) {
		return nil, fmt.Errorf("%w: %s must return an object, got %s", engine.ErrScriptRuntime, entry, res.ExportType())
	}

	var decoded any
	if err := json.Unmarshal([]byte(text.String()), &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode result of %s: %v", engine.ErrScriptRuntime, entry, err)
	}
	out, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must return an object, got %T", engine.ErrScriptRuntime, entry, decoded)
	}
	return out, nil
}

func runtimeError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %w", engine.ErrScriptRuntime, ErrTimeout)
	}
	return fmt.Errorf("%w: %v", engine.ErrScriptRuntime, err)
}
