package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/pipeline/engine"
)

func TestCompileAndRun_Double(t *testing.T) {
	src := `function handle(inputs) { return { out: inputs.input.data * 2 }; }`

	out, err := New().CompileAndRun(src, "handle", map[string]any{"input": map[string]any{"data": 5.0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"out": 10.0}, out)
}

func TestCompileAndRun_ValuesComeBackAsJSONTypes(t *testing.T) {
	src := `function handle() { return { n: 3, s: "x", list: [1, "a", true], obj: { k: null } }; }`

	out, err := New().CompileAndRun(src, "handle", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["n"])
	assert.Equal(t, "x", out["s"])
	assert.Equal(t, []any{1.0, "a", true}, out["list"])
	assert.Equal(t, map[string]any{"k": nil}, out["obj"])
}

func TestCompileAndRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    error
		message string
	}{
		{name: "syntax", src: `function handle( {`, want: engine.ErrScriptCompile},
		{name: "no entry", src: `var x = 1;`, want: engine.ErrEntryFunctionMissing, message: "handle"},
		{name: "entry not callable", src: `var handle = 4;`, want: engine.ErrEntryFunctionMissing},
		{name: "top level throw", src: `throw new Error("at load");`, want: engine.ErrScriptRuntime, message: "at load"},
		{name: "handler throws", src: `function handle() { throw new Error("kaput"); }`, want: engine.ErrScriptRuntime, message: "kaput"},
		{name: "returns number", src: `function handle() { return 1; }`, want: engine.ErrScriptRuntime, message: "must return an object"},
		{name: "returns nothing", src: `function handle() {}`, want: engine.ErrScriptRuntime, message: "returned nothing"},
		{name: "returns function", src: `function handle() { return function() {}; }`, want: engine.ErrScriptRuntime, message: "must return an object"},
		{name: "returns array", src: `function handle() { return [1]; }`, want: engine.ErrScriptRuntime, message: "must return an object"},
		{name: "cyclic result", src: `function handle() { var o = {}; o.self = o; return o; }`, want: engine.ErrScriptRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().CompileAndRun(tt.src, "handle", map[string]any{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestCompileAndRun_FieldsJSONCannotHoldAreDropped(t *testing.T) {
	src := `function handle() { return { out: 1, helper: function() {}, missing: undefined, nan: 0/0 }; }`

	out, err := New().CompileAndRun(src, "handle", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"out": 1.0, "nan": nil}, out)
}

func TestCompileAndRun_SloppyModeByDefault(t *testing.T) {
	src := `function handle(input) { x = input.data * 2; return { out: x }; }`

	out, err := New().CompileAndRun(src, "handle", map[string]any{"data": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out["out"])

	_, err = New(WithStrict(true)).CompileAndRun(src, "handle", map[string]any{"data": 5.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrScriptRuntime)
	assert.Contains(t, err.Error(), "x is not defined")
}

func TestCompileAndRun_RuntimesAreIsolated(t *testing.T) {
	s := New()
	_, err := s.CompileAndRun(`globalThis.leak = 1; function handle() { return {}; }`, "handle", nil)
	require.NoError(t, err)

	out, err := s.CompileAndRun(`function handle() { return { seen: typeof leak }; }`, "handle", nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined", out["seen"])
}

func TestCompileAndRun_InputIsCopied(t *testing.T) {
	input := map[string]any{"input": map[string]any{"data": 1.0}}
	_, err := New().CompileAndRun(`function handle(i) { i.input.data = 99; i.extra = true; return {}; }`, "handle", input)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"input": map[string]any{"data": 1.0}}, input)
}

func TestCompileAndRun_CustomEntry(t *testing.T) {
	out, err := New().CompileAndRun(`function main(i) { return { out: i.a + i.b }; }`, "main", map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["out"])
}

func TestCompileAndRun_Timeout(t *testing.T) {
	s := New(WithTimeout(50 * time.Millisecond))

	start := time.Now()
	_, err := s.CompileAndRun(`function handle() { while (true) {} }`, "handle", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, engine.ErrScriptRuntime)
	assert.Less(t, time.Since(start), 5*time.Second)
}
