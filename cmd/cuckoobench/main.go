// The cuckoobench command drives a weighted mix of insert, lookup,
// and remove operations against either a cuckoomap.Map or a plain Go
// map used as a correctness/speed reference, and reports throughput.
// In cuckoo mode the final layer count is set on a Prometheus gauge.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/aristanetworks/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cuckoomap"
)

var (
	opsDone = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cuckoobench_operations_total",
		Help: "Number of operations performed against the map under test.",
	})
	layerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cuckoobench_layers",
		Help: "Current number of cascade layers (cuckoo mode only).",
	})
)

func init() {
	prometheus.MustRegister(opsDone, layerCount)
}

// uint64Traits treats uint64 keys as their own 8-byte little-endian
// image, with 0 reserved as the empty state (spec §4.1, fixed-layout
// key requirement).
var uint64Traits = cuckoomap.KeyTraits[uint64]{
	Bytes: func(k uint64) []byte {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(k >> (8 * i))
		}
		return b
	},
	Equal: func(a, b uint64) bool { return a == b },
	Empty: func(k uint64) bool { return k == 0 },
}

func main() {
	mode := flag.String("mode", "cuckoo", "map under test: cuckoo or reference")
	ops := flag.Int("ops", 1_000_000, "number of operations to perform")
	initialSize := flag.Int("initial-size", cuckoomap.DefaultInitialBuckets, "initial layer-0 bucket count")
	maxSize := flag.Int("max-size", 1<<20, "maximum distinct key value; keys are drawn from [1, max-size]")
	workingSet := flag.Int("working-set", 4096, "number of recently-touched keys kept in the generator's working set")
	pInsert := flag.Float64("p-insert", 0.4, "probability an operation is an insert")
	pLookup := flag.Float64("p-lookup", 0.5, "probability an operation is a lookup")
	pRemove := flag.Float64("p-remove", 0.1, "probability an operation is a remove")
	pWorkingSet := flag.Float64("p-working-set", 0.7, "probability a lookup/remove key is drawn from the working set rather than uniformly")
	seed := flag.Int64("seed", 1, "PRNG seed")
	listenAddr := flag.String("listenaddr", "", "if set, expose Prometheus metrics on this address instead of exiting after the run")

	flag.Parse()

	if *listenAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			glog.Fatal(http.ListenAndServe(*listenAddr, nil))
		}()
	}

	total := *pInsert + *pLookup + *pRemove
	if total < 0.9999 || total > 1.0001 {
		glog.Fatalf("p-insert + p-lookup + p-remove must sum to 1, got %v", total)
	}

	rng := rand.New(rand.NewSource(*seed))
	gen := &workload{
		rng:         rng,
		maxSize:     uint64(*maxSize),
		workingSet:  make([]uint64, 0, *workingSet),
		pInsert:     *pInsert,
		pLookup:     *pInsert + *pLookup,
		pWorkingSet: *pWorkingSet,
	}

	start := time.Now()

	var runErr error
	switch strings.ToLower(*mode) {
	case "cuckoo":
		m := cuckoomap.New[uint64, uint64](*initialSize, uint64Traits)
		runErr = runCuckoo(m, gen, *ops)
		layerCount.Set(float64(m.NumLayers()))
	case "reference":
		ref := make(map[uint64]uint64, *initialSize)
		runErr = runReference(ref, gen, *ops)
	default:
		glog.Fatalf("unknown -mode %q: want cuckoo or reference", *mode)
	}
	if runErr != nil {
		glog.Fatal(runErr)
	}

	elapsed := time.Since(start)
	fmt.Printf("mode=%s ops=%d elapsed=%s ops/sec=%.0f\n",
		*mode, *ops, elapsed, float64(*ops)/elapsed.Seconds())

	if *listenAddr != "" {
		select {}
	}
}

// opKind is the weighted choice made per iteration.
type opKind int

const (
	opInsert opKind = iota
	opLookup
	opRemove
)

// workload is the PRNG-driven operation and key generator described in
// spec.md §6's "Test harness interface": a mode-agnostic mix of
// insert/lookup/remove weighted by probability, with lookups and
// removes biased toward a recently-inserted working set rather than
// drawn uniformly, so the benchmark exercises hot-path promotion as
// well as cold misses.
type workload struct {
	rng         *rand.Rand
	maxSize     uint64
	workingSet  []uint64
	pInsert     float64
	pLookup     float64 // cumulative: pInsert + pLookup
	pWorkingSet float64
}

func (w *workload) next() (opKind, uint64) {
	r := w.rng.Float64()
	switch {
	case r < w.pInsert:
		k := 1 + w.rng.Uint64()%w.maxSize
		w.remember(k)
		return opInsert, k
	case r < w.pLookup:
		return opLookup, w.pickKey()
	default:
		return opRemove, w.pickKey()
	}
}

func (w *workload) remember(k uint64) {
	if cap(w.workingSet) == 0 {
		return
	}
	if len(w.workingSet) < cap(w.workingSet) {
		w.workingSet = append(w.workingSet, k)
		return
	}
	w.workingSet[w.rng.Intn(len(w.workingSet))] = k
}

func (w *workload) pickKey() uint64 {
	if len(w.workingSet) > 0 && w.rng.Float64() < w.pWorkingSet {
		return w.workingSet[w.rng.Intn(len(w.workingSet))]
	}
	return 1 + w.rng.Uint64()%w.maxSize
}

func runCuckoo(m *cuckoomap.Map[uint64, uint64], gen *workload, ops int) error {
	for i := 0; i < ops; i++ {
		kind, k := gen.next()
		switch kind {
		case opInsert:
			m.Insert(k, k)
		case opLookup:
			f := m.Lookup(k)
			f.Release()
		case opRemove:
			m.Remove(k)
		}
		opsDone.Inc()
	}
	return nil
}

func runReference(ref map[uint64]uint64, gen *workload, ops int) error {
	for i := 0; i < ops; i++ {
		kind, k := gen.next()
		switch kind {
		case opInsert:
			ref[k] = k
		case opLookup:
			_ = ref[k]
		case opRemove:
			delete(ref, k)
		}
		opsDone.Inc()
	}
	return nil
}
