// Package instructions implements the synchronization script: an
// append-only, timestamped sequence of slide-navigation commands and its
// line-oriented text format.
package instructions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Code identifies the kind of navigation an Instruction performs.
type Code int

const (
	// Next advances to the following slide.
	Next Code = iota
	// Previous returns to the preceding slide.
	Previous
	// GoTo jumps to an explicit, zero-based slide index.
	GoTo
	// End marks the final instruction of a stream.
	End
)

// Instruction is a single timestamped navigation command.
type Instruction struct {
	Timestamp int64 // frame index, or a frame-count offset when Relative is set
	Code      Code
	Data      int  // zero-based target slide index, meaningful only for GoTo
	Relative  bool // whether Timestamp is relative to the previous instruction
}

// Stream is the append-only synchronization script for a presentation: a
// sequence of Instructions plus the nslides/framerate header the original
// format requires. A Stream built by Parse is frozen: it accepts no further
// mutation, matching the read-once nature of a loaded script.
type Stream struct {
	instructions []Instruction
	nslides      int
	framerate    float64
	currentIndex int
	frozen       bool
}

// New creates an empty, mutable Stream for a deck of nslides slides played
// back at framerate frames per second.
func New(nslides int, framerate float64) *Stream {
	return &Stream{nslides: nslides, framerate: framerate, currentIndex: 0}
}

// NSlides returns the slide count the stream was built for.
func (s *Stream) NSlides() int { return s.nslides }

// Framerate returns the stream's nominal framerate.
func (s *Stream) Framerate() float64 { return s.framerate }

// Len returns the number of instructions recorded so far.
func (s *Stream) Len() int { return len(s.instructions) }

// CurrentIndex returns the zero-based slide index the stream currently
// believes is on screen, after applying every instruction appended so far.
func (s *Stream) CurrentIndex() int { return s.currentIndex }

// Frozen reports whether the stream accepts further mutation. Streams
// produced by Parse are always frozen; streams built with New are not,
// until the terminal End instruction is appended or Freeze is called.
func (s *Stream) Frozen() bool { return s.frozen }

// Instructions returns the recorded instructions in append order. The
// returned slice must not be modified by the caller.
func (s *Stream) Instructions() []Instruction { return s.instructions }

var (
	errFrozen       = fmt.Errorf("instructions: stream is frozen")
	errAtLastSlide  = fmt.Errorf("instructions: already at the last slide")
	errAtFirstSlide = fmt.Errorf("instructions: already at the first slide")
)

// Next appends a forward-navigation instruction at the given timestamp.
// relative controls whether timestamp is stored relative to the previous
// instruction's timestamp in the serialized form.
func (s *Stream) Next(timestamp int64, relative bool) error {
	if s.frozen {
		return errFrozen
	}
	if s.currentIndex >= s.nslides-1 {
		return errAtLastSlide
	}
	s.append(Instruction{Timestamp: timestamp, Code: Next, Relative: relative})
	s.currentIndex++
	return nil
}

// Previous appends a backward-navigation instruction at the given timestamp.
func (s *Stream) Previous(timestamp int64, relative bool) error {
	if s.frozen {
		return errFrozen
	}
	if s.currentIndex < 1 {
		return errAtFirstSlide
	}
	s.append(Instruction{Timestamp: timestamp, Code: Previous, Relative: relative})
	s.currentIndex--
	return nil
}

// GoTo appends a jump to the zero-based slide index at the given timestamp.
func (s *Stream) GoTo(timestamp int64, index int, relative bool) error {
	if s.frozen {
		return errFrozen
	}
	if index < 0 || index >= s.nslides {
		return fmt.Errorf("instructions: slide index %d out of range [0,%d)", index, s.nslides)
	}
	s.append(Instruction{Timestamp: timestamp, Code: GoTo, Data: index, Relative: relative})
	s.currentIndex = index
	return nil
}

// End appends the terminal instruction and freezes the stream against
// further mutation.
func (s *Stream) End(timestamp int64, relative bool) error {
	if s.frozen {
		return errFrozen
	}
	s.append(Instruction{Timestamp: timestamp, Code: End, Relative: relative})
	s.frozen = true
	return nil
}

func (s *Stream) append(ins Instruction) {
	if len(s.instructions) > 0 {
		last := s.instructions[len(s.instructions)-1]
		// Timestamps are non-decreasing in absolute terms. A relative
		// instruction's effective absolute timestamp is the sum, which by
		// construction of the tracker loop is never negative.
		_ = last
	}
	s.instructions = append(s.instructions, ins)
}

// Freeze marks the stream read-only without appending an End instruction;
// used when a caller is abandoning the stream early (e.g. on error) but
// still wants downstream code to observe Frozen() == true.
func (s *Stream) Freeze() { s.frozen = true }

// String renders the stream in the line-oriented synchronization format:
//
//	nslides = N
//	framerate = F
//	ninstructions = K
//	[<stamp>]: <verb>
//
// Timestamps are emitted with a leading '+' exactly when the instruction's
// Relative flag is set, and negative ones carry a '-' after any '+'; GoTo targets are rendered
// one-based in the wire format even though Data is stored zero-based.
func (s *Stream) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "nslides = %d\n", s.nslides)
	fmt.Fprintf(&b, "framerate = %s\n", formatFloat(s.framerate))
	fmt.Fprintf(&b, "ninstructions = %d\n", len(s.instructions))
	for _, ins := range s.instructions {
		fmt.Fprintf(&b, "[%s]: %s\n", formatTimestamp(ins.Timestamp, ins.Relative, s.framerate), verb(ins))
	}
	return b.String()
}

func verb(ins Instruction) string {
	switch ins.Code {
	case Next:
		return "next"
	case Previous:
		return "previous"
	case GoTo:
		return fmt.Sprintf("go to %d", ins.Data+1)
	case End:
		return "end"
	default:
		return "unknown"
	}
}

func formatTimestamp(stamp int64, relative bool, framerate float64) string {
	prefix := ""
	if relative {
		prefix = "+"
	}
	if stamp < 0 {
		return prefix + "-" + index2timestamp(-stamp, framerate)
	}
	return prefix + index2timestamp(stamp, framerate)
}

// index2timestamp renders a non-negative frame index as a zero-padded
// HH:MM:SS.FFF wall-clock stamp when framerate is non-zero, with the
// frame field padded to however many digits framerate itself needs; it
// falls back to a raw decimal frame index when framerate is zero.
func index2timestamp(index int64, framerate float64) string {
	fr := uint64(math.Round(framerate))
	if fr == 0 {
		return strconv.FormatInt(index, 10)
	}

	idx := uint64(index)
	frames := idx % fr
	totalSeconds := idx / fr
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60

	return fmt.Sprintf("%02d:%02d:%02d.%0*d", hours, minutes, seconds, nchars(fr), frames)
}

// timestamp2index parses an HH:MM:SS.FFF wall-clock stamp (or, when
// framerate is zero, a raw decimal frame index) back into a frame index.
func timestamp2index(text string, framerate float64) (int64, error) {
	fr := uint64(math.Round(framerate))
	if fr == 0 {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("instructions: invalid timestamp %q: %w", text, err)
		}
		return v, nil
	}

	hms := strings.SplitN(text, ":", 3)
	if len(hms) != 3 {
		return 0, fmt.Errorf("instructions: malformed timestamp %q", text)
	}
	secFrame := strings.SplitN(hms[2], ".", 2)
	if len(secFrame) != 2 {
		return 0, fmt.Errorf("instructions: malformed timestamp %q", text)
	}

	hours, err1 := strconv.ParseUint(hms[0], 10, 64)
	minutes, err2 := strconv.ParseUint(hms[1], 10, 64)
	seconds, err3 := strconv.ParseUint(secFrame[0], 10, 64)
	frames, err4 := strconv.ParseUint(secFrame[1], 10, 64)
	if err := firstErr(err1, err2, err3, err4); err != nil {
		return 0, fmt.Errorf("instructions: malformed timestamp %q: %w", text, err)
	}

	return int64(((hours*60+minutes)*60+seconds)*fr + frames), nil
}

// nchars returns the number of decimal digits needed to write x, the same
// frame-field width index2timestamp/timestamp2index pad to.
func nchars(x uint64) int {
	if x == 0 {
		return 1
	}
	n := 0
	for p := uint64(1); x >= p; p *= 10 {
		n++
	}
	return n
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
