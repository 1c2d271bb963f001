// heapstat runs an allocation churn workload against the ripley allocator
// and reports object statistics.
//
// Usage:
//
//	heapstat [-config heap.toml] [-iterations N] [-out stats.cbor]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ripleyvm/ripley/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML heap configuration")
	iterations := flag.Int("iterations", 100000, "number of allocate/free rounds")
	outPath := flag.String("out", "", "write a CBOR stats snapshot to this file")
	flag.Parse()

	cfg := vm.DefaultHeapConfig()
	if *configPath != "" {
		loaded, err := vm.LoadHeapConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ip, err := vm.NewInterp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer ip.Finalize()

	ts := vm.NewThreadState(ip)
	defer ts.Close()

	if err := churn(ip, ts, *iterations); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	snap := ip.Stats().Snapshot(ip.ID.String())
	fmt.Printf("interp          %s\n", snap.InterpID)
	fmt.Printf("allocations     %d\n", snap.Allocations)
	fmt.Printf("frees           %d\n", snap.Frees)
	fmt.Printf("to freelist     %d\n", snap.ToFreelist)
	fmt.Printf("from freelist   %d\n", snap.FromFreelist)
	fmt.Printf("raw allocs      %d\n", snap.RawAllocs)
	fmt.Printf("raw frees       %d\n", snap.RawFrees)
	fmt.Printf("oom failures    %d\n", snap.OOMFailures)

	if *outPath != "" {
		data, err := vm.MarshalStatsSnapshot(snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("snapshot        %s (%d bytes)\n", *outPath, len(data))
	}
}

// churn allocates and frees objects across a spread of sizes so the
// size-class freelists, one dedicated typed list, and the backing heap
// all see traffic.
func churn(ip *vm.Interp, ts *vm.ThreadState, rounds int) error {
	sizes := []uintptr{
		vm.HeaderSize,
		vm.HeaderSize + 16,
		vm.HeaderSize + 48,
		vm.HeaderSize + 240,
		vm.HeaderSize + 4096, // oversized: always served by the backing heap
	}
	types := make([]*vm.TypeInfo, len(sizes))
	for i, size := range sizes {
		types[i] = ip.RegisterType(&vm.TypeInfo{
			Name:      fmt.Sprintf("Churn%d", size),
			Kind:      vm.KindObject,
			BasicSize: size,
		})
	}
	floatType := ip.RegisterType(&vm.TypeInfo{
		Name:      "Float",
		Kind:      vm.KindFloat,
		BasicSize: vm.HeaderSize + 8,
	})

	floatList := ts.Freelists().Floats()
	var held []*vm.Object
	for i := 0; i < rounds; i++ {
		tp := types[i%len(types)]
		obj, err := ts.AllocObject(tp, tp.BasicSize)
		if err != nil {
			return err
		}
		held = append(held, obj)

		// Keep a small working set, recycling the rest.
		if len(held) > 8 {
			victim := held[0]
			held = held[1:]
			ts.FreeObject(victim, victim.Type().BasicSize)
		}

		// Exercise the dedicated float list every few rounds.
		if i%4 == 0 {
			f := ts.PopObjectFrom(floatList, floatType)
			if f == nil {
				f, err = ts.AllocObject(floatType, floatType.BasicSize)
				if err != nil {
					return err
				}
			}
			ts.FreeObjectTo(floatList, f, ip.Heap().Free)
		}

		// Stack-slot traffic over the allocation.
		ref := vm.RefFromObjectNew(obj)
		dup := ref.Dup()
		dup.Close()
		ref.Close()
	}
	for _, obj := range held {
		ts.FreeObject(obj, obj.Type().BasicSize)
	}
	return nil
}
