package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// metaColumn / metaTable / metaFile are the JSON shapes of meta.json, the
// catalog-wide schema manifest (§6 "On-disk layout"). Kept distinct from
// ColumnDef/Schema so the wire format can evolve independently of the
// in-memory types, matching the teacher's own manifest/manifestTM split.
type metaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type metaTable struct {
	Name    string       `json:"name"`
	Columns []metaColumn `json:"columns"`
}

type metaFile struct {
	Tables []metaTable `json:"tables"`
}

// Catalog is the process-wide map from table name to live Table, plus the
// on-disk root directory the catalog persists to and loads from. All
// mutation of the map itself (Create/Drop) is expected to happen under the
// concurrency controller's catalog-exclusive lock; Catalog itself only
// guards its own map for safety against accidental concurrent misuse.
type Catalog struct {
	mu   sync.RWMutex
	dir  string
	lock *flock.Flock
	tbls map[string]*Table
}

// OpenOrCreate opens the catalog rooted at dir, taking an advisory file
// lock on <dir>/LOCK to prevent two server processes from sharing one data
// directory. If meta.json does not exist and createIfMissing is false, it
// returns an error; otherwise an empty catalog is created.
func OpenOrCreate(dir string, createIfMissing bool) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}
	lk := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "lock data directory")
	}
	if !locked {
		return nil, errors.Errorf("data directory %q is already locked by another bongodb process", dir)
	}

	c := &Catalog{dir: dir, lock: lk, tbls: make(map[string]*Table)}

	metaPath := filepath.Join(dir, "meta.json")
	if _, err := os.Stat(metaPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "stat meta.json")
		}
		if !createIfMissing {
			lk.Unlock()
			return nil, errors.Errorf("no database at %q (create_db is false)", dir)
		}
		return c, nil
	}
	if err := c.LoadAll(); err != nil {
		lk.Unlock()
		return nil, err
	}
	return c, nil
}

// Close releases the advisory directory lock. It does not flush.
func (c *Catalog) Close() error {
	return c.lock.Unlock()
}

// Get returns the named table, or ok=false if it does not exist.
func (c *Catalog) Get(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tbls[name]
	return t, ok
}

// Names returns all table names in sorted order (used by SHOW TABLES and
// the server's startup diagnostics).
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tbls))
	for n := range c.tbls {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Create registers a new empty table under name with the given schema. It
// is an error if a table by that name already exists (§4.2 CREATE TABLE).
func (c *Catalog) Create(name string, schema Schema) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tbls[name]; exists {
		return nil, errors.Errorf("schema error: table %q already exists", name)
	}
	t := NewTable(name, schema)
	c.tbls[name] = t
	return t, nil
}

// Drop removes a table from the catalog's in-memory map. Its on-disk file,
// if any, is left in place until the next FLUSH removes stale files (§4.2
// DROP TABLE, Open Question: file deletion deferred to next FLUSH).
func (c *Catalog) Drop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tbls[name]; !exists {
		return errors.Errorf("schema error: table %q does not exist", name)
	}
	delete(c.tbls, name)
	return nil
}

// tableFilePath returns the on-disk path for a table's slot file.
func (c *Catalog) tableFilePath(name string) string {
	return filepath.Join(c.dir, name+".bongo")
}

// FlushAll persists every dirty table's slot file and rewrites meta.json to
// reflect the current set of tables, using an atomic temp-file-plus-rename
// write for each file so a crash mid-flush never leaves a half-written
// file in place (§6). It then deletes any .bongo file in the data
// directory whose table is no longer in the catalog.
func (c *Catalog) FlushAll() error {
	c.mu.RLock()
	names := make([]string, 0, len(c.tbls))
	tables := make([]*Table, 0, len(c.tbls))
	for n, t := range c.tbls {
		names = append(names, n)
		tables = append(tables, t)
	}
	c.mu.RUnlock()

	for _, t := range tables {
		if !t.Dirty() {
			continue
		}
		if err := writeFileAtomic(c.tableFilePath(t.Name), t.Flush); err != nil {
			return errors.Wrapf(err, "flush table %q", t.Name)
		}
	}

	sort.Strings(names)
	mf := metaFile{Tables: make([]metaTable, 0, len(names))}
	c.mu.RLock()
	for _, n := range names {
		t := c.tbls[n]
		cols := make([]metaColumn, len(t.Schema.Cols))
		for i, col := range t.Schema.Cols {
			cols[i] = metaColumn{Name: col.Name, Type: col.TypeString()}
		}
		mf.Tables = append(mf.Tables, metaTable{Name: n, Columns: cols})
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal meta.json")
	}
	if err := writeFileAtomic(filepath.Join(c.dir, "meta.json"), func(w writerCloserLess) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return errors.Wrap(err, "write meta.json")
	}

	// Remove the slot files of tables dropped since the last flush.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Wrap(err, "list data directory")
	}
	for _, e := range entries {
		base, isTableFile := strings.CutSuffix(e.Name(), ".bongo")
		if i := sort.SearchStrings(names, base); !isTableFile || e.IsDir() || (i < len(names) && names[i] == base) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove dropped table file %q", e.Name())
		}
	}
	return nil
}

// writerCloserLess is the minimal io.Writer contract writeFileAtomic hands
// its write function — named to avoid importing io just for one method set.
type writerCloserLess interface {
	Write(p []byte) (int, error)
}

// writeFileAtomic writes via write(tmpFile) to a temporary file alongside
// path, then renames it into place, so readers never observe a partially
// written file (grounded on the teacher's own table-file writer).
func writeFileAtomic(path string, write func(w writerCloserLess) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "sync temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename temp file into place")
	}
	return nil
}

// LoadAll reads meta.json and every referenced table's slot file, replacing
// the catalog's in-memory contents (§6). Tables whose slot file is absent
// are created empty (the table was created but never flushed before a
// prior clean shutdown is not expected, but an absent file is tolerated).
func (c *Catalog) LoadAll() error {
	metaPath := filepath.Join(c.dir, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return errors.Wrap(err, "read meta.json")
	}
	var mf metaFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return errors.Wrap(err, "parse meta.json")
	}

	tbls := make(map[string]*Table, len(mf.Tables))
	for _, mt := range mf.Tables {
		cols := make([]ColumnDef, len(mt.Columns))
		for i, mc := range mt.Columns {
			typ, size, err := ParseTypeString(mc.Type)
			if err != nil {
				return errors.Wrapf(err, "table %q column %q", mt.Name, mc.Name)
			}
			cols[i] = ColumnDef{Name: mc.Name, Type: typ, Size: size}
		}
		schema := Schema{Cols: cols}
		t := NewTable(mt.Name, schema)

		fpath := c.tableFilePath(mt.Name)
		if f, err := os.Open(fpath); err == nil {
			loadErr := t.Load(f)
			f.Close()
			if loadErr != nil {
				return errors.Wrapf(loadErr, "load table %q", mt.Name)
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "open table file %q", fpath)
		}
		tbls[mt.Name] = t
	}

	c.mu.Lock()
	c.tbls = tbls
	c.mu.Unlock()
	return nil
}
