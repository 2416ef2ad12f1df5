package d3plot

import (
	"fmt"
	"math"

	"github.com/kood3plot/kood3plot/wordfile"
)

// stateEndMarker terminates the state stream within a file when it appears at
// the head of a state slot.
const (
	stateEndMarker    = -999999.0
	stateEndTolerance = 1e-6
)

// State is one decoded time step: a time, the global scalars, the per-node
// arrays present per the control flags, and the four per-element variable
// arrays. Nodal vector arrays are interleaved x, y, z.
type State struct {
	Time       float64
	GlobalVars []float64

	NodeTemperatures  []float64
	NodeDisplacements []float64
	NodeVelocities    []float64
	NodeAccelerations []float64

	SolidData      []float64
	ThickShellData []float64
	BeamData       []float64
	ShellData      []float64
}

// isEndMarker reports whether a slot's time word is the end-of-states sentinel.
func isEndMarker(time float64) bool {
	return math.Abs(time-stateEndMarker) < stateEndTolerance
}

// stateScanner walks the state slots of one file. The base file starts after
// the arbitrary-ID section; continuation files start at word 0.
type stateScanner struct {
	r          *wordfile.Reader
	ch         *ControlHeader
	offset     int64
	sizeWords  int64
	stateWords int64
}

func newStateScanner(r *wordfile.Reader, ch *ControlHeader, startWord int64) *stateScanner {
	return &stateScanner{
		r:          r,
		ch:         ch,
		offset:     startWord,
		sizeWords:  r.SizeWords(),
		stateWords: ch.StateWordCount(),
	}
}

// next decodes the state slot at the current offset. It returns ok=false when
// the stream ends: offset at or past end of file, the end marker at the slot
// head, or a slot that would overrun the file. The end marker is checked
// before anything else in the slot is read, and a continuation file whose
// head does not parse as a valid slot simply ends the stream.
func (s *stateScanner) next() (State, bool, error) {
	if s.offset >= s.sizeWords {
		return State{}, false, nil
	}

	time, err := s.r.ReadFloat64(s.offset)
	if err != nil {
		return State{}, false, fmt.Errorf("state decoder: %w", err)
	}

	if isEndMarker(time) {
		return State{}, false, nil
	}

	if s.offset+s.stateWords > s.sizeWords {
		return State{}, false, nil
	}

	state, err := s.parseSlot(time)
	if err != nil {
		return State{}, false, err
	}

	s.offset += s.stateWords

	return state, true, nil
}

// parseSlot reads one full state slot starting at the current offset. Word
// consumption must equal StateWordCount exactly; the sub-block order is
// globals, temperatures, displacements, velocities, accelerations, then the
// four element arrays, then the deletion words.
func (s *stateScanner) parseSlot(time float64) (State, error) {
	ch := s.ch
	offset := s.offset + 1 // past the time word

	state := State{Time: time}

	read := func(count int64, what string) ([]float64, error) {
		if count <= 0 {
			return nil, nil
		}

		vals, err := s.r.ReadFloat64Array(offset, int(count))
		if err != nil {
			return nil, fmt.Errorf("state decoder: %s: %w", what, err)
		}
		offset += count

		return vals, nil
	}

	var err error
	if state.GlobalVars, err = read(int64(ch.NumGlobalVars), "global variables"); err != nil {
		return State{}, err
	}

	numNodes := int64(ch.NumNodes)
	vecWords := int64(ch.EffectiveNDim()) * numNodes

	if ch.HasTemperature() {
		tempWords := (1 + int64(ch.TempExtra())) * numNodes
		if state.NodeTemperatures, err = read(tempWords, "temperatures"); err != nil {
			return State{}, err
		}
	}
	if ch.HasDisplacement {
		if state.NodeDisplacements, err = read(vecWords, "displacements"); err != nil {
			return State{}, err
		}
	}
	if ch.HasVelocity {
		if state.NodeVelocities, err = read(vecWords, "velocities"); err != nil {
			return State{}, err
		}
	}
	if ch.HasAcceleration {
		if state.NodeAccelerations, err = read(vecWords, "accelerations"); err != nil {
			return State{}, err
		}
	}

	if state.SolidData, err = read(int64(ch.NumSolids())*int64(ch.VarsPerSolid), "solid data"); err != nil {
		return State{}, err
	}
	if state.ThickShellData, err = read(int64(ch.NumThickShell8)*int64(ch.VarsPerThickShell), "thick shell data"); err != nil {
		return State{}, err
	}
	if state.BeamData, err = read(int64(ch.NumBeam2)*int64(ch.VarsPerBeam), "beam data"); err != nil {
		return State{}, err
	}
	if state.ShellData, err = read(int64(ch.NumShell4)*int64(ch.VarsPerShell), "shell data"); err != nil {
		return State{}, err
	}

	// Deletion words are consumed by slot advance; nothing to expose.

	return state, nil
}

// readStatesFile decodes every state slot in one file.
func readStatesFile(r *wordfile.Reader, ch *ControlHeader, startWord int64) ([]State, error) {
	scanner := newStateScanner(r, ch, startWord)

	var states []State
	for {
		state, ok, err := scanner.next()
		if err != nil {
			return states, err
		}
		if !ok {
			return states, nil
		}

		states = append(states, state)
	}
}
