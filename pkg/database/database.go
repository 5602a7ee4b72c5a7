// Package database ties named B+tree indexes to their backing files.
package database

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"stegodb/pkg/btree"
	"stegodb/pkg/config"
	"stegodb/pkg/pager"
)

// Database manages the set of indexes stored under one data folder.
type Database struct {
	basepath string
	cfg      *config.Config
	indexes  map[string]*Index
	mtx      sync.Mutex
}

// Open opens a database rooted at the given data folder, creating the folder
// if needed. A nil cfg uses the defaults.
func Open(folder string, cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	if err := os.MkdirAll(folder, 0775); err != nil {
		return nil, err
	}
	return &Database{
		basepath: folder,
		cfg:      cfg,
		indexes:  make(map[string]*Index),
	}, nil
}

// Close closes every index in the database.
func (db *Database) Close() (err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	for _, index := range db.indexes {
		curErr := index.Close()
		if err == nil {
			err = curErr
		}
	}
	db.indexes = make(map[string]*Index)
	return err
}

var indexNamePattern = regexp.MustCompile(`\W`)

// openIndex opens the pager file backing name and the tree registered in its
// header page.
func (db *Database) openIndex(name string) (*Index, error) {
	path := filepath.Join(db.basepath, name)
	pgr, err := pager.New(path, db.cfg.MaxPagesInBuffer)
	if err != nil {
		return nil, err
	}
	tree, err := btree.Open(name, pgr, btree.CompareIntKeys, db.cfg.LeafMaxSize, db.cfg.InternalMaxSize)
	if err != nil {
		pgr.Close()
		return nil, err
	}
	index := &Index{tree: tree, pager: pgr}
	db.indexes[name] = index
	return index, nil
}

// CreateIndex creates a new named index. Errors if it already exists.
func (db *Database) CreateIndex(name string) (*Index, error) {
	if indexNamePattern.MatchString(name) {
		return nil, errors.New("index name must be alphanumeric")
	}
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if _, ok := db.indexes[name]; ok {
		return nil, errors.New("index already exists")
	}
	if _, err := os.Stat(filepath.Join(db.basepath, name)); err == nil {
		return nil, errors.New("index already exists")
	}
	return db.openIndex(name)
}

// GetIndex returns an open index by name, loading it from disk if needed.
func (db *Database) GetIndex(name string) (*Index, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if index, ok := db.indexes[name]; ok {
		return index, nil
	}
	if _, err := os.Stat(filepath.Join(db.basepath, name)); err != nil {
		return nil, errors.New("index not found")
	}
	return db.openIndex(name)
}
