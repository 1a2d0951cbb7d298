package frames

import (
	"fmt"
	"sort"
)

// Filename is the archive entry name of frame index: prefix_00042.png.
func Filename(prefix string, index int) string {
	return fmt.Sprintf("%s_%05d.png", prefix, index)
}

// Frame is one captured image. Data is dropped by Release once the archive
// has consumed it; Index and Filename stay for logging.
type Frame struct {
	Index    int
	Filename string
	Data     []byte
}

func New(prefix string, index int, data []byte) *Frame {
	return &Frame{
		Index:    index,
		Filename: Filename(prefix, index),
		Data:     data,
	}
}

func (f *Frame) Release() { f.Data = nil }

func (f *Frame) Released() bool { return f.Data == nil }

// Store accumulates the frames of one capture run. It is only touched by the
// capture loop, so it carries no locking.
type Store struct {
	frames []*Frame
	bytes  int
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Add(f *Frame) {
	s.frames = append(s.frames, f)
	s.bytes += len(f.Data)
}

// Finalize sorts the frames by index and returns them. Insertion order is
// not trusted.
func (s *Store) Finalize() []*Frame {
	sort.SliceStable(s.frames, func(i, j int) bool {
		return s.frames[i].Index < s.frames[j].Index
	})
	out := make([]*Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *Store) Len() int { return len(s.frames) }

// Bytes is the payload size added so far, ignoring releases.
func (s *Store) Bytes() int { return s.bytes }

func (s *Store) Clear() {
	s.frames = nil
	s.bytes = 0
}
