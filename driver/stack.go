package driver

import "github.com/nihei9/fsmgen/fsm"

// Frame is a pending alternative: the state to resume, the input position to
// resume at and the tests that must pass first.
type Frame struct {
	State int
	P     int
	Pop   []*fsm.Action
}

// Stack is the bounded backtracking stack.
type Stack struct {
	frames []Frame
	cap    int
}

func NewStack(capacity int) *Stack {
	if capacity < 0 {
		capacity = 0
	}
	return &Stack{
		frames: make([]Frame, 0, capacity),
		cap:    capacity,
	}
}

// Fits reports whether n more frames fit.
func (s *Stack) Fits(n int) bool {
	return len(s.frames)+n <= s.cap
}

// Push returns false and leaves the stack unchanged when it is full.
func (s *Stack) Push(f Frame) bool {
	if !s.Fits(1) {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

func (s *Stack) Pop() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, true
}

func (s *Stack) Len() int {
	return len(s.frames)
}

func (s *Stack) Cap() int {
	return s.cap
}
