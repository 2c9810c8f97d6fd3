package balancer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Uuq114/JanusRelay/internal/models"
)

const (
	StrategyRoundRobin = "round-robin"
	StrategyWeighted   = "weighted"
)

// Balancer picks the upstream for a single outbound call.
type Balancer interface {
	Next() *models.Upstream
	AddUpstream(upstream *models.Upstream)
	RemoveUpstream(name string)
	Len() int
}

// New builds a balancer for the named strategy. An empty strategy means round-robin.
func New(strategy string) (Balancer, error) {
	switch strategy {
	case "", StrategyRoundRobin:
		return NewRoundRobinBalancer(), nil
	case StrategyWeighted:
		return NewWeightedBalancer(), nil
	default:
		return nil, fmt.Errorf("unknown balancing strategy %q", strategy)
	}
}

// RoundRobinBalancer cycles through upstreams in insertion order.
type RoundRobinBalancer struct {
	upstreams []*models.Upstream
	index     uint64
	mu        sync.RWMutex
}

// WeightedBalancer hands out upstreams in proportion to their weight.
type WeightedBalancer struct {
	upstreams []*models.Upstream
	index     uint64
	mu        sync.RWMutex
}

func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{
		upstreams: make([]*models.Upstream, 0),
	}
}

func NewWeightedBalancer() *WeightedBalancer {
	return &WeightedBalancer{
		upstreams: make([]*models.Upstream, 0),
	}
}

func (rb *RoundRobinBalancer) Next() *models.Upstream {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.upstreams) == 0 {
		return nil
	}

	index := (atomic.AddUint64(&rb.index, 1) - 1) % uint64(len(rb.upstreams))
	return rb.upstreams[index]
}

func (wb *WeightedBalancer) Next() *models.Upstream {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	if len(wb.upstreams) == 0 {
		return nil
	}

	totalWeight := 0
	for _, upstream := range wb.upstreams {
		totalWeight += weightOf(upstream)
	}

	slot := (atomic.AddUint64(&wb.index, 1) - 1) % uint64(totalWeight)

	currentWeight := 0
	for _, upstream := range wb.upstreams {
		currentWeight += weightOf(upstream)
		if uint64(currentWeight) > slot {
			return upstream
		}
	}

	return wb.upstreams[0]
}

// weightOf treats a missing or negative weight as 1.
func weightOf(upstream *models.Upstream) int {
	if upstream.Weight <= 0 {
		return 1
	}
	return upstream.Weight
}

func (rb *RoundRobinBalancer) AddUpstream(upstream *models.Upstream) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.upstreams = append(rb.upstreams, upstream)
}

func (rb *RoundRobinBalancer) RemoveUpstream(name string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.upstreams = without(rb.upstreams, name)
}

func (rb *RoundRobinBalancer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.upstreams)
}

func (wb *WeightedBalancer) AddUpstream(upstream *models.Upstream) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.upstreams = append(wb.upstreams, upstream)
}

func (wb *WeightedBalancer) RemoveUpstream(name string) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.upstreams = without(wb.upstreams, name)
}

func (wb *WeightedBalancer) Len() int {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return len(wb.upstreams)
}

func without(upstreams []*models.Upstream, name string) []*models.Upstream {
	for i, upstream := range upstreams {
		if upstream.Name == name {
			return append(upstreams[:i], upstreams[i+1:]...)
		}
	}
	return upstreams
}
