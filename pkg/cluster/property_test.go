package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid/memgrid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
	"github.com/dd0wney/cluso-clustermgr/pkg/workers"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRegistryInvariants checks the set semantics of the subscription registry
func TestRegistryInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	fabric := memgrid.NewFabric()
	defer fabric.Shutdown()
	node, err := fabric.StartNode(context.Background())
	if err != nil {
		t.Fatalf("start node: %v", err)
	}
	pool, err := workers.NewPool("property", 2)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	newRegistry := func(name string) *SubscriptionRegistry {
		cache, err := node.Cache(name)
		if err != nil {
			t.Fatalf("cache: %v", err)
		}
		if err := cache.Clear(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		r, err := newSubscriptionRegistry(cache, pool, nil, func() bool { return true }, logging.NewNopLogger(), metrics.NewRegistry())
		if err != nil {
			t.Fatalf("registry: %v", err)
		}
		return r
	}

	// Property 1: putting the same registration n times stores it once
	properties.Property("put is idempotent", prop.ForAll(
		func(address, nodeID, endpoint string, local bool, times int) bool {
			r := newRegistry("idempotent")
			info := RegistrationInfo{NodeID: nodeID, EndpointID: endpoint, LocalOnly: local}
			for i := 0; i < times; i++ {
				if err := r.Put(address, info); err != nil {
					return false
				}
			}
			infos, err := r.Get(address)
			return err == nil && len(infos) == 1 && infos[0] == info
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
		gen.IntRange(1, 5),
	))

	// Property 2: removing an absent registration succeeds and changes nothing
	properties.Property("remove of absent entry is a no-op", prop.ForAll(
		func(address, nodeID string) bool {
			r := newRegistry("absent")
			keep := RegistrationInfo{NodeID: "keep", EndpointID: "k"}
			if err := r.Put(address, keep); err != nil {
				return false
			}
			if err := r.Remove(address, RegistrationInfo{NodeID: nodeID + "-absent"}); err != nil {
				return false
			}
			infos, err := r.Get(address)
			return err == nil && len(infos) == 1 && infos[0] == keep
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// Property 3: Get(a) never returns registrations of another address
	properties.Property("get is restricted to the address", prop.ForAll(
		func(addresses []string) bool {
			r := newRegistry("restricted")
			for i, addr := range addresses {
				if err := r.Put(addr, RegistrationInfo{NodeID: addr, EndpointID: string(rune('a' + i%26))}); err != nil {
					return false
				}
			}
			for _, addr := range addresses {
				infos, err := r.Get(addr)
				if err != nil || len(infos) == 0 {
					return false
				}
				for _, info := range infos {
					if info.NodeID != addr {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestCounterAtomicity checks that concurrent updates from several nodes never
// lose a delta
func TestCounterAtomicity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	f := newFabric(t)
	coordinators := []*Coordinator{
		joinedCoordinator(t, f),
		joinedCoordinator(t, f),
		joinedCoordinator(t, f),
	}

	run := 0
	properties.Property("final value equals the sum of deltas", prop.ForAll(
		func(deltas []int64) bool {
			run++
			name := fmt.Sprintf("atomicity-%d", run)

			counters := make([]*Counter, len(coordinators))
			for i, c := range coordinators {
				counter, err := c.Counter(name).Await(context.Background())
				if err != nil {
					return false
				}
				counters[i] = counter
			}

			var want int64
			var wg sync.WaitGroup
			for i, delta := range deltas {
				want += delta
				counter := counters[i%len(counters)]
				wg.Add(1)
				go func() {
					defer wg.Done()
					var err error
					switch delta {
					case 1:
						_, err = counter.IncrementAndGet().Await(context.Background())
					case -1:
						_, err = counter.DecrementAndGet().Await(context.Background())
					default:
						_, err = counter.AddAndGet(delta).Await(context.Background())
					}
					if err != nil {
						t.Errorf("counter update: %v", err)
					}
				}()
			}
			wg.Wait()

			got, err := counters[0].Get().Await(context.Background())
			if err != nil {
				return false
			}
			before := got
			swapped, err := counters[1].CompareAndSet(before, before+7).Await(context.Background())
			if err != nil || !swapped {
				return false
			}
			after, err := counters[2].Get().Await(context.Background())
			return err == nil && before == want && after == want+7
		},
		gen.SliceOf(gen.Int64Range(-3, 3)),
	))

	properties.TestingRun(t)
}
