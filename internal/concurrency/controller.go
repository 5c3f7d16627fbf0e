// Package concurrency implements BongoDB's Concurrency Controller: the
// process-wide arbiter that guards the catalog and each live table with a
// two-level locking discipline (§4.3, §5).
//
// What: one catalog-wide sync.RWMutex plus one sync.RWMutex per table.
// How: table-scoped statements take the catalog lock shared just long
// enough to resolve the table name, then take the table's own lock and
// drop the catalog lock; catalog-scoped statements (CREATE/DROP/FLUSH)
// hold the catalog lock exclusive for the whole statement. This mirrors
// the lock-ordering discipline (catalog acquired before table) used for
// per-table locking elsewhere in the example corpus.
// Why: Go's sync.RWMutex already gives writers priority over new readers
// once a writer is queued, so the fairness requirement of §4.3 falls out
// of correct lock usage without a custom fair-lock implementation.
package concurrency

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bongodb",
		Subsystem: "locks",
		Name:      "wait_seconds",
		Help:      "Time spent waiting to acquire a catalog or table lock.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"lock", "mode"})

	locksHeld = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bongodb",
		Subsystem: "locks",
		Name:      "held",
		Help:      "Number of currently held catalog or table locks, by mode.",
	}, []string{"lock", "mode"})
)

func init() {
	prometheus.MustRegister(lockWaitSeconds, locksHeld)
}

// Controller arbitrates access to the catalog and its tables. It holds no
// domain state itself (no table contents, no schemas) — only the locks.
type Controller struct {
	catalogMu sync.RWMutex

	tableMu sync.Mutex // guards the tables map below, not the tables themselves
	tables  map[string]*sync.RWMutex
}

// New creates an empty Controller. Table locks are created lazily on
// first reference via TableLock.
func New() *Controller {
	return &Controller{tables: make(map[string]*sync.RWMutex)}
}

// TableLock returns the RWMutex for name, creating it if this is the
// first time the table has been referenced. The Controller never removes
// a table's lock even after DROP TABLE, since a lock cannot be safely
// deleted while another goroutine might still be blocked on it; a dropped
// table's lock stays in the map and is reused if a table of the same name
// is created again.
func (c *Controller) TableLock(name string) *sync.RWMutex {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	l, ok := c.tables[name]
	if !ok {
		l = &sync.RWMutex{}
		c.tables[name] = l
	}
	return l
}

// CatalogShared acquires the catalog lock in shared mode and returns a
// release function. Used by table-scoped statements to briefly resolve
// the table reference (§4.3 acquisition protocol).
func (c *Controller) CatalogShared() func() {
	start := time.Now()
	c.catalogMu.RLock()
	lockWaitSeconds.WithLabelValues("catalog", "shared").Observe(time.Since(start).Seconds())
	locksHeld.WithLabelValues("catalog", "shared").Inc()
	return func() {
		locksHeld.WithLabelValues("catalog", "shared").Dec()
		c.catalogMu.RUnlock()
	}
}

// CatalogExclusive acquires the catalog lock in exclusive mode, held for
// the duration of a CREATE TABLE / DROP TABLE / FLUSH statement.
func (c *Controller) CatalogExclusive() func() {
	start := time.Now()
	c.catalogMu.Lock()
	lockWaitSeconds.WithLabelValues("catalog", "exclusive").Observe(time.Since(start).Seconds())
	locksHeld.WithLabelValues("catalog", "exclusive").Inc()
	return func() {
		locksHeld.WithLabelValues("catalog", "exclusive").Dec()
		c.catalogMu.Unlock()
	}
}

// TableShared acquires name's table lock in shared mode (SELECT).
func (c *Controller) TableShared(name string) func() {
	l := c.TableLock(name)
	start := time.Now()
	l.RLock()
	lockWaitSeconds.WithLabelValues("table", "shared").Observe(time.Since(start).Seconds())
	locksHeld.WithLabelValues("table", "shared").Inc()
	return func() {
		locksHeld.WithLabelValues("table", "shared").Dec()
		l.RUnlock()
	}
}

// TableExclusive acquires name's table lock in exclusive mode
// (INSERT/UPDATE/DELETE).
func (c *Controller) TableExclusive(name string) func() {
	l := c.TableLock(name)
	start := time.Now()
	l.Lock()
	lockWaitSeconds.WithLabelValues("table", "exclusive").Observe(time.Since(start).Seconds())
	locksHeld.WithLabelValues("table", "exclusive").Inc()
	return func() {
		locksHeld.WithLabelValues("table", "exclusive").Dec()
		l.Unlock()
	}
}

// AcquireTableScoped implements the full acquisition protocol for a
// table-scoped statement (§4.3): take the catalog lock shared, resolve
// the table (via resolve), take the table's own lock in the requested
// mode, then release the catalog lock before returning. The returned
// release function only needs to release the table lock.
func (c *Controller) AcquireTableScoped(name string, write bool, resolve func() error) (func(), error) {
	releaseCatalog := c.CatalogShared()
	defer releaseCatalog()

	if err := resolve(); err != nil {
		return nil, err
	}
	if write {
		return c.TableExclusive(name), nil
	}
	return c.TableShared(name), nil
}
