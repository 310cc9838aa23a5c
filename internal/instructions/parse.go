package instructions

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a synchronization script in the line-oriented wire format
// (see Stream.String) and returns a frozen Stream. Parsing is strict: any
// malformed header or instruction line is reported immediately and no
// partial Stream is returned.
func Parse(text string) (*Stream, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	nslides, err := parseHeaderInt(scanner, "nslides")
	if err != nil {
		return nil, err
	}
	framerate, err := parseHeaderFloat(scanner, "framerate")
	if err != nil {
		return nil, err
	}
	ninstructions, err := parseHeaderInt(scanner, "ninstructions")
	if err != nil {
		return nil, err
	}

	s := New(nslides, framerate)
	s.currentIndex = 0

	for i := 0; i < ninstructions; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("instructions: expected %d instructions, found %d", ninstructions, i)
		}
		ins, err := parseInstructionLine(scanner.Text(), framerate)
		if err != nil {
			return nil, fmt.Errorf("instructions: line %d: %w", i+1, err)
		}
		if err := validateTransition(s, ins); err != nil {
			return nil, fmt.Errorf("instructions: line %d: %w", i+1, err)
		}
		s.instructions = append(s.instructions, ins)
		applyTransition(s, ins)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("instructions: %w", err)
	}

	s.frozen = true
	return s, nil
}

func validateTransition(s *Stream, ins Instruction) error {
	switch ins.Code {
	case Next:
		if s.currentIndex >= s.nslides-1 {
			return errAtLastSlide
		}
	case Previous:
		if s.currentIndex < 1 {
			return errAtFirstSlide
		}
	case GoTo:
		if ins.Data < 0 || ins.Data >= s.nslides {
			return fmt.Errorf("slide index %d out of range [0,%d)", ins.Data, s.nslides)
		}
	case End:
		// No transition constraint.
	}
	return nil
}

func applyTransition(s *Stream, ins Instruction) {
	switch ins.Code {
	case Next:
		s.currentIndex++
	case Previous:
		s.currentIndex--
	case GoTo:
		s.currentIndex = ins.Data
	case End:
		// No-op.
	}
}

func parseHeaderInt(scanner *bufio.Scanner, key string) (int, error) {
	line, err := nextHeaderLine(scanner, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("instructions: %s: invalid integer %q: %w", key, line, err)
	}
	return v, nil
}

func parseHeaderFloat(scanner *bufio.Scanner, key string) (float64, error) {
	line, err := nextHeaderLine(scanner, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("instructions: %s: invalid float %q: %w", key, line, err)
	}
	return v, nil
}

func nextHeaderLine(scanner *bufio.Scanner, key string) (string, error) {
	if !scanner.Scan() {
		return "", fmt.Errorf("instructions: missing header %q", key)
	}
	line := strings.TrimSpace(scanner.Text())
	prefix := key + " = "
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("instructions: expected header %q, got %q", key, line)
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
}

// parseInstructionLine parses one "[<stamp>]: <verb>" line. stampText is
// whitespace-lenient and, per the wire format's stamp grammar, may carry a
// leading '+' (relative) or '-' (negative) sign ahead of the magnitude,
// which is otherwise an index2timestamp-formatted stamp (or a raw decimal
// frame index when framerate is zero).
func parseInstructionLine(line string, framerate float64) (Instruction, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return Instruction{}, fmt.Errorf("missing '[' prefix: %q", line)
	}
	closeIdx := strings.Index(line, "]")
	if closeIdx < 0 {
		return Instruction{}, fmt.Errorf("missing ']' terminator: %q", line)
	}
	stampText := strings.TrimSpace(line[1:closeIdx])
	rest := strings.TrimSpace(line[closeIdx+1:])
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)

	relative := strings.HasPrefix(stampText, "+")
	stampText = strings.TrimPrefix(stampText, "+")
	negative := strings.HasPrefix(stampText, "-")
	stampText = strings.TrimSpace(strings.TrimPrefix(stampText, "-"))

	magnitude, err := timestamp2index(stampText, framerate)
	if err != nil {
		return Instruction{}, fmt.Errorf("invalid timestamp %q: %w", stampText, err)
	}
	stamp := magnitude
	if negative {
		stamp = -magnitude
	}

	switch {
	case rest == "next":
		return Instruction{Timestamp: stamp, Code: Next, Relative: relative}, nil
	case rest == "previous":
		return Instruction{Timestamp: stamp, Code: Previous, Relative: relative}, nil
	case rest == "end":
		return Instruction{Timestamp: stamp, Code: End, Relative: relative}, nil
	case strings.HasPrefix(rest, "go to"):
		targetText := strings.TrimSpace(strings.TrimPrefix(rest, "go to"))
		oneBased, err := strconv.Atoi(targetText)
		if err != nil {
			return Instruction{}, fmt.Errorf("invalid go-to target %q: %w", targetText, err)
		}
		return Instruction{Timestamp: stamp, Code: GoTo, Data: oneBased - 1, Relative: relative}, nil
	default:
		return Instruction{}, fmt.Errorf("unrecognized verb %q", rest)
	}
}
