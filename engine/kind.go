package engine

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// Kind is the closed set of node behaviours. It is resolved once, at bind time.
type Kind int

const (
	KindScript Kind = iota
	KindBeginRequest
	KindEndRequest
	KindBreaker
	KindTrue
	KindFalse
	KindEmpty
)

var kindNames = map[Kind]string{
	KindScript:       "Script",
	KindBeginRequest: pipeline.NodeBeginRequest,
	KindEndRequest:   pipeline.NodeEndRequest,
	KindBreaker:      pipeline.NodeBreaker,
	KindTrue:         pipeline.NodeTrue,
	KindFalse:        pipeline.NodeFalse,
	KindEmpty:        pipeline.NodeEmpty,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf maps a definition to its kind. Non-internal definitions are scripts.
func KindOf(def pipeline.NodeDefinition) (Kind, error) {
	if !def.IsInternal {
		return KindScript, nil
	}
	switch def.Name {
	case pipeline.NodeBeginRequest:
		return KindBeginRequest, nil
	case pipeline.NodeEndRequest:
		return KindEndRequest, nil
	case pipeline.NodeBreaker:
		return KindBreaker, nil
	case pipeline.NodeTrue:
		return KindTrue, nil
	case pipeline.NodeFalse:
		return KindFalse, nil
	case pipeline.NodeEmpty:
		return KindEmpty, nil
	}
	return KindScript, fmt.Errorf("%w: %q", ErrUnknownInternalNode, def.Name)
}
