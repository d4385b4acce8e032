// Package perf keeps a bounded in-process record of request, query and
// upstream timings for the readiness endpoint.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the capacity used when NewCollector is given none.
const DefaultRingSize = 10000

// EntryKind distinguishes request, query and upstream entries.
type EntryKind uint8

const (
	KindRequest  EntryKind = iota // inbound HTTP request
	KindQuery                     // SQLite statement
	KindUpstream                  // call to the external scheduling/auth API
)

// Entry is one timing record.
type Entry struct {
	Kind       EntryKind
	Path       string // route label, query label, or "GET /schedule/availability"
	StatusCode int    // 0 for queries and transport failures
	DurationMs float64
	Timestamp  time.Time
}

// Collector holds the most recent entries in a fixed ring.
// Record never allocates; all aggregation is deferred to Snapshot.
type Collector struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	full  bool
	total atomic.Int64
}

// NewCollector creates a collector holding up to size entries.
// PRE: none; size <= 0 selects DefaultRingSize
// POST: Returns an empty collector
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{ring: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry once the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.full = true
	}
	c.mu.Unlock()
	c.total.Add(1)
}

// TotalRecorded returns how many entries were ever recorded, including overwritten ones.
func (c *Collector) TotalRecorded() int64 {
	return c.total.Load()
}

// since copies out the retained entries at or after t.
func (c *Collector) since(t time.Time) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.next
	if c.full {
		n = len(c.ring)
	}
	out := make([]Entry, 0, n)
	for _, e := range c.ring[:n] {
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot is the aggregated view served by /readyz.
type Snapshot struct {
	TotalRecorded   int64      `json:"total_recorded"`
	RequestP50Ms    float64    `json:"request_p50_ms"`
	RequestP95Ms    float64    `json:"request_p95_ms"`
	RequestP99Ms    float64    `json:"request_p99_ms"`
	ServerErrors    int        `json:"server_errors"`   // inbound requests answered 5xx
	UpstreamErrors  int        `json:"upstream_errors"` // API calls that failed or answered 5xx
	SlowestPaths    []PathStat `json:"slowest_paths"`
	SlowestQueries  []PathStat `json:"slowest_queries"`
	SlowestUpstream []PathStat `json:"slowest_upstream"`
}

// PathStat aggregates the entries sharing one label.
type PathStat struct {
	Path    string  `json:"path"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"-"`
}

type group map[string]*PathStat

func (g group) add(e Entry) {
	s := g[e.Path]
	if s == nil {
		s = &PathStat{Path: e.Path}
		g[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	s.MaxMs = max(s.MaxMs, e.DurationMs)
}

// top returns the n labels with the highest average, ties broken by label.
func (g group) top(n int) []PathStat {
	list := make([]PathStat, 0, len(g))
	for _, s := range g {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// Snapshot aggregates the entries recorded at or after since.
// It sorts, so keep it off hot paths.
// PRE: topN >= 0
// POST: each Slowest list holds at most topN labels, slowest average first
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	requests, queries, upstream := group{}, group{}, group{}
	var durations []float64
	snap := Snapshot{TotalRecorded: c.TotalRecorded()}

	for _, e := range c.since(since) {
		switch e.Kind {
		case KindRequest:
			requests.add(e)
			durations = append(durations, e.DurationMs)
			if e.StatusCode >= 500 {
				snap.ServerErrors++
			}
		case KindQuery:
			queries.add(e)
		case KindUpstream:
			upstream.add(e)
			// 4xx from the API is an answer, not an outage
			if e.StatusCode == 0 || e.StatusCode >= 500 {
				snap.UpstreamErrors++
			}
		}
	}

	snap.SlowestPaths = requests.top(topN)
	snap.SlowestQueries = queries.top(topN)
	snap.SlowestUpstream = upstream.top(topN)

	if len(durations) > 0 {
		slices.Sort(durations)
		snap.RequestP50Ms = nearestRank(durations, 50)
		snap.RequestP95Ms = nearestRank(durations, 95)
		snap.RequestP99Ms = nearestRank(durations, 99)
	}
	return snap
}

// nearestRank returns the p-th percentile of a sorted, non-empty slice.
func nearestRank(sorted []float64, p float64) float64 {
	i := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(i, len(sorted)-1))]
}
