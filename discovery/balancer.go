package discovery

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/ceyewan/beacon/registry"
)

// Strategy 负载均衡策略
type Strategy string

const (
	// StrategyRandom 等概率随机
	StrategyRandom Strategy = "random"
	// StrategyWeightRandom 按权重随机，权重全为 0 时退化为等概率
	StrategyWeightRandom Strategy = "weight_random"
	// StrategyRoundRobin 轮询
	StrategyRoundRobin Strategy = "round_robin"
)

// balancer 从实例列表中选取一个实例。
// ChooseOne 的每次调用都会经过这里，实现必须是并发安全的。
type balancer interface {
	pick(instances []*registry.ServiceInstance) *registry.ServiceInstance
}

type randomBalancer struct{}

func (randomBalancer) pick(instances []*registry.ServiceInstance) *registry.ServiceInstance {
	return instances[rand.IntN(len(instances))]
}

type weightRandomBalancer struct{}

func (weightRandomBalancer) pick(instances []*registry.ServiceInstance) *registry.ServiceInstance {
	total := 0.0
	for _, inst := range instances {
		if inst.Weight > 0 {
			total += inst.Weight
		}
	}
	// 权重全为 0：退化为等概率随机
	if total <= 0 {
		return instances[rand.IntN(len(instances))]
	}

	r := rand.Float64() * total
	for _, inst := range instances {
		if inst.Weight <= 0 {
			continue
		}
		r -= inst.Weight
		if r < 0 {
			return inst
		}
	}
	return instances[len(instances)-1]
}

// roundRobinBalancer 无锁轮询，原子计数器保证并发安全
type roundRobinBalancer struct {
	counter atomic.Int64
}

func (b *roundRobinBalancer) pick(instances []*registry.ServiceInstance) *registry.ServiceInstance {
	index := b.counter.Add(1) % int64(len(instances))
	return instances[index]
}
