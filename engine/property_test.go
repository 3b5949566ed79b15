package engine

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/meikuraledutech/pipeline"
)

// Well-formed graphs: a control chain of script nodes, each adding one to the value it
// receives from its predecessor, with constant nodes scattered in that only feed data.
func TestProperty_WellFormedChainsTerminate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(0, 12).Draw(t, "length")
		constants := rapid.IntRange(0, 4).Draw(t, "constants")
		dedupe := rapid.Bool().Draw(t, "dedupe")

		b := newGraph().internal("begin", pipeline.NodeBeginRequest)
		stub := newStub()
		prev, prevPort := "begin", "data"
		for i := 0; i < length; i++ {
			id := fmt.Sprintf("step%d", i)
			b.script(id, "out").control(prev, id).data(prev, prevPort, id, "in")
			stub.on(id, func(in map[string]any) (map[string]any, error) {
				n, _ := in["in"].(float64)
				return map[string]any{"out": n + 1}, nil
			})
			prev, prevPort = id, "out"
		}
		for i := 0; i < constants; i++ {
			b.internal(fmt.Sprintf("const%d", i), pipeline.NodeTrue)
		}
		b.internal("end", pipeline.NodeEndRequest).control(prev, "end").data(prev, prevPort, "end", "data")

		initial := float64(rapid.IntRange(-1000, 1000).Draw(t, "initial"))
		e := New(stub, WithDedupeFrontier(dedupe))
		bound, err := e.Bind(context.Background(), b.g, b)
		if err != nil {
			t.Fatalf("bind: %v", err)
		}

		s, err := Seed(bound, initial)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		s = InitialWave(s)
		for !s.IsComplete() {
			if len(s.Current()) == 0 {
				t.Fatalf("frontier emptied after %d waves", s.Waves())
			}
			s, err = e.DispatchWave(s)
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			s = e.AdvanceWave(s)
		}

		if s.Waves() != length+2 {
			t.Fatalf("expected %d waves, got %d", length+2, s.Waves())
		}
		got, err := DecodeResult[float64](s)
		if err != nil {
			t.Fatalf("result: %v", err)
		}
		if got != initial+float64(length) {
			t.Fatalf("expected %v, got %v", initial+float64(length), got)
		}
	})
}

// Constant nodes write their literal no matter what is wired into them.
func TestProperty_ConstantsIgnoreInputs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.SampledFrom([]string{pipeline.NodeTrue, pipeline.NodeFalse, pipeline.NodeEmpty}).Draw(t, "kind")
		payload := rapid.OneOf(
			rapid.Just[any](nil),
			rapid.Map(rapid.Bool(), func(v bool) any { return v }),
			rapid.Map(rapid.String(), func(v string) any { return v }),
		).Draw(t, "payload")

		b := newGraph().
			internal("begin", pipeline.NodeBeginRequest).
			internal("c", name).
			internal("end", pipeline.NodeEndRequest).
			control("begin", "end").
			data("begin", "data", "c", "in").
			data("c", "out", "end", "data")

		e := New(nil)
		raw, err := e.Run(context.Background(), b.g, b, payload)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		want := map[string]string{pipeline.NodeTrue: "true", pipeline.NodeFalse: "false", pipeline.NodeEmpty: "null"}[name]
		if string(raw) != want {
			t.Fatalf("expected %s, got %s", want, raw)
		}
	})
}
