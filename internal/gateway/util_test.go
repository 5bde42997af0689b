package gateway

import (
	"bytes"
	"sync"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (self *syncBuffer) Write(b []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.buf.Write(b)
}

func (self *syncBuffer) Lines() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return bytes.Count(self.buf.Bytes(), []byte{'\n'})
}
