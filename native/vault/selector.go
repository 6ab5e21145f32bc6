package vault

import (
	"fmt"
	"strings"
)

type selectorKind uint8

const (
	selectAll selectorKind = iota
	selectIndex
	selectID
)

// RequestSelector names the unstake requests an operation targets: all of
// them, one by slot index, or one by opaque id.
type RequestSelector struct {
	kind  selectorKind
	index int
	id    string
}

// AllRequests targets every outstanding request.
func AllRequests() RequestSelector { return RequestSelector{kind: selectAll} }

// RequestAt targets the request in slot index.
func RequestAt(index int) RequestSelector {
	return RequestSelector{kind: selectIndex, index: index}
}

// RequestWithID targets the request with the given id.
func RequestWithID(id string) RequestSelector {
	return RequestSelector{kind: selectID, id: strings.TrimSpace(id)}
}

// IsAll reports whether the selector targets every request.
func (s RequestSelector) IsAll() bool { return s.kind == selectAll }

func (s RequestSelector) String() string {
	switch s.kind {
	case selectIndex:
		return fmt.Sprintf("index:%d", s.index)
	case selectID:
		return "id:" + s.id
	default:
		return "all"
	}
}

// resolve maps a single-request selector to a slot index.
func (s RequestSelector) resolve(slots *RequestSlots) (int, error) {
	switch s.kind {
	case selectIndex:
		if _, ok := slots.At(s.index); !ok {
			return 0, ErrInvalidRequestIndex
		}
		return s.index, nil
	case selectID:
		idx := slots.IndexOf(s.id)
		if idx < 0 {
			return 0, ErrInvalidRequestIndex
		}
		return idx, nil
	default:
		return 0, ErrInvalidRequestIndex
	}
}
