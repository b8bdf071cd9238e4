package taskstatus

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// StackTrace is a captured call stack, optionally linked to the stack it descends from.
//
// When stack capture is enabled (see [DiagnosticsConfig]), each task remembers where it was
// spawned, linked to its parent's spawn trace, and each status record remembers where it was
// registered, linked to its task's spawn trace. Invariant panics carry the offending record's
// trace.
type StackTrace struct {
	Frames []StackFrame
	Parent *StackTrace
}

type StackFrame struct {
	Function string
	File     string
	Line     int
}

var captureStacks atomic.Bool

// GetStackTrace returns the caller's stack, dropping skip additional frames, linked to parent.
func GetStackTrace(parent *StackTrace, skip uint) StackTrace {
	return StackTrace{Frames: getFrames(skip + 1), Parent: parent}
}

// captureTrace is GetStackTrace gated on the diagnostics setting.
func captureTrace(parent *StackTrace, skip uint) *StackTrace {
	if !captureStacks.Load() {
		return nil
	}
	st := GetStackTrace(parent, skip+1)
	return &st
}

// String formats the trace like a goroutine dump, one trace after another from the innermost to
// the root, separated by a line naming the hop.
func (st StackTrace) String() string {
	var sb strings.Builder

	for cur := &st; cur != nil; cur = cur.Parent {
		if cur != &st {
			sb.WriteString("from:\n")
		}
		if len(cur.Frames) == 0 {
			sb.WriteString("<empty stack>\n")
			continue
		}
		for _, f := range cur.Frames {
			f.writeTo(&sb)
		}
	}

	return sb.String()
}

func (f StackFrame) writeTo(sb *strings.Builder) {
	if f.Function == "" {
		sb.WriteString("<unknown function>")
	} else {
		sb.WriteString(f.Function)
		sb.WriteString("(...)")
	}
	sb.WriteString("\n\t")
	if f.File == "" {
		sb.WriteString("<unknown file>")
	} else {
		sb.WriteString(f.File)
		if f.Line != 0 {
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(f.Line))
		}
	}
	sb.WriteByte('\n')
}

var pcBufPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, 64)
		return &buf
	},
}

func getFrames(skip uint) []StackFrame {
	pcBuf := pcBufPool.Get().(*[]uintptr)
	defer func() {
		if len(*pcBuf) <= 1024 {
			pcBufPool.Put(pcBuf)
		}
	}()

	// runtime.Callers(0) includes itself and getFrames; grow until everything fits.
	var pc []uintptr
	for {
		n := runtime.Callers(0, *pcBuf)
		if n < len(*pcBuf) {
			pc = (*pcBuf)[:n]
			break
		}
		*pcBuf = make([]uintptr, 2*len(*pcBuf))
	}

	skip += 2
	var frames []StackFrame
	iter := runtime.CallersFrames(pc)
	for more := true; more; {
		var frame runtime.Frame
		frame, more = iter.Next()
		if skip > 0 {
			skip--
			continue
		}
		frames = append(frames, StackFrame{Function: frame.Function, File: frame.File, Line: frame.Line})
	}
	return frames
}
