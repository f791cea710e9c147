package render

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/KaramelBytes/crashscope/internal/dataset"
	"github.com/KaramelBytes/crashscope/internal/utils"
)

// Destination receives encoded chart images. Put returns where the image
// ended up (a path, a key, a display name).
type Destination interface {
	Put(name, format string, data []byte) (string, error)
}

// DirDestination writes images to files in Dir.
type DirDestination struct {
	Dir string
}

// Put writes Dir/name.format atomically.
func (d DirDestination) Put(name, format string, data []byte) (string, error) {
	path := filepath.Join(d.Dir, name+"."+format)
	if err := utils.SafeWriteFile(path, data); err != nil {
		return "", &dataset.IOError{Path: path, Err: err}
	}
	return path, nil
}

// Image is one chart held by a BufferDestination.
type Image struct {
	Name   string
	Format string
	Data   []byte
}

// BufferDestination keeps images in memory in the order they were put.
type BufferDestination struct {
	mu     sync.Mutex
	images []Image
}

// Put stores a copy of data.
func (b *BufferDestination) Put(name, format string, data []byte) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.images = append(b.images, Image{Name: name, Format: format, Data: cp})
	return fmt.Sprintf("memory:%s.%s", name, format), nil
}

// Images returns the stored images.
func (b *BufferDestination) Images() []Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Image, len(b.images))
	copy(out, b.images)
	return out
}

// Get returns the image with the given name.
func (b *BufferDestination) Get(name string) (Image, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, im := range b.images {
		if im.Name == name {
			return im, true
		}
	}
	return Image{}, false
}

// FuncDestination adapts a function, typically one that displays the image.
type FuncDestination func(name, format string, data []byte) (string, error)

// Put calls f.
func (f FuncDestination) Put(name, format string, data []byte) (string, error) {
	return f(name, format, data)
}
