// Package filter implements the gateway's ordered request-filter pipeline.
//
// 필터는 라우트에 우선순위와 함께 등록된다. 낮은 숫자가 먼저 실행되고,
// 같은 숫자는 등록 순서를 따른다. 앞선 필터의 pre 로직이 먼저, post 로직은
// 나중에 실행된다(중첩 구조). 요청마다 고루틴 하나가 체인을 통과하므로
// 다운스트림이 느려도 다른 요청을 막지 않는다.
//
// 필터는 비즈니스 에러를 절대 삼키지 않는다. 다운스트림 응답과 상태는
// 그대로 위 필터를 통과해 바깥 경계까지 전달된다.
package filter

import (
	"math"
	"sort"

	"github.com/gin-gonic/gin"
)

// Config describes one filter instance's tunables. Bound once at route
// registration and immutable afterwards.
//
// Defaults: {BaseMessage: "", PreEnabled: false, PostEnabled: false}.
type Config struct {
	// BaseMessage distinguishes filter instances that share a type.
	BaseMessage string
	PreEnabled  bool
	PostEnabled bool
}

// 우선순위 상수. 낮을수록 먼저 실행된다.
const (
	PrecedenceHighest = math.MinInt32
	PrecedenceLowest  = math.MaxInt32
)

type ordered struct {
	precedence int
	seq        int
	fn         gin.HandlerFunc
}

// Chain is a priority-ordered set of filters applied to one route. The zero
// chain is usable and acts as a pass-through.
type Chain struct {
	filters []ordered
}

func NewChain() *Chain {
	return &Chain{}
}

// Register adds a filter with the given precedence. Ties keep registration
// order. Returns the chain for call chaining.
func (c *Chain) Register(precedence int, fn gin.HandlerFunc) *Chain {
	c.filters = append(c.filters, ordered{
		precedence: precedence,
		seq:        len(c.filters),
		fn:         fn,
	})
	return c
}

// Handlers returns the filters in execution order, ready to attach to a gin
// route or group.
func (c *Chain) Handlers() []gin.HandlerFunc {
	sorted := make([]ordered, len(c.filters))
	copy(sorted, c.filters)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].precedence != sorted[j].precedence {
			return sorted[i].precedence < sorted[j].precedence
		}
		return sorted[i].seq < sorted[j].seq
	})

	handlers := make([]gin.HandlerFunc, len(sorted))
	for i, f := range sorted {
		handlers[i] = f.fn
	}
	return handlers
}

// Len reports how many filters are registered.
func (c *Chain) Len() int {
	return len(c.filters)
}
