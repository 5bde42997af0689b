// Package persist binds BinaryMarshaler state to crash-safe file storage.
package persist

import (
	"encoding"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/temoto/extremofile"
)

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type Storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds target Load/Store to storage. Disabled Persist is no-op.
type Persist struct {
	sync.Mutex
	log     *log2.Log
	tag     string
	target  Stater
	storage Storage
}

func (self *Persist) Init(tag string, target Stater, root string, enabled bool, log *log2.Log) error {
	self.tag = tag
	self.log = log
	if !enabled {
		self.log.Debugf("persist %s disabled", self.tag)
		return nil
	}
	if root == "" {
		return errors.Errorf("persist %s enabled but root=empty", self.tag)
	}
	storage := extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return self.InitStorage(tag, target, storage, log)
}

// InitStorage is Init with explicit storage, e.g. in-memory for tests.
func (self *Persist) InitStorage(tag string, target Stater, storage Storage, log *log2.Log) error {
	if target == nil {
		panic("code error persist target nil")
	}
	self.tag = tag
	self.log = log
	self.target = target
	self.storage = storage
	return nil
}

func (self *Persist) Enabled() bool { return self.storage != nil }

func (self *Persist) Load() error {
	if self.tag == "" {
		panic("code error persist must call .Init() first")
	}
	if self.storage == nil {
		return nil
	}
	self.Lock()
	defer self.Unlock()
	tbegin := time.Now()
	b, err := self.storage.Read()
	self.log.Debugf("persist %s storage.read duration=%v", self.tag, time.Since(tbegin))
	if b != nil {
		if err != nil {
			self.log.Errorf("persist %s ignore non-critical storage err=%v", self.tag, err)
		}
		err = self.target.UnmarshalBinary(b)
	} else if err != nil && !extremofile.IsCritical(err) {
		// first run, nothing stored yet
		self.log.Debugf("persist %s empty err=%v", self.tag, err)
		err = nil
	}
	return errors.Annotatef(err, "persist %s Load", self.tag)
}

func (self *Persist) Store() error {
	if self.tag == "" {
		panic("code error persist must call .Init() first")
	}
	if self.storage == nil {
		return nil
	}
	self.Lock()
	defer self.Unlock()
	b, err := self.target.MarshalBinary()
	if err == nil {
		tbegin := time.Now()
		_, err = self.storage.Write(b)
		self.log.Debugf("persist %s storage.write duration=%v", self.tag, time.Since(tbegin))
	}
	return errors.Annotatef(err, "persist %s Store", self.tag)
}

// MemStorage keeps last written value in memory.
type MemStorage struct {
	mu sync.Mutex
	b  []byte
}

func (self *MemStorage) Read() ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.b == nil {
		return nil, nil
	}
	return append([]byte(nil), self.b...), nil
}

func (self *MemStorage) Write(b []byte) (int, error) {
	self.mu.Lock()
	self.b = append([]byte(nil), b...)
	self.mu.Unlock()
	return len(b), nil
}
