package d3plot

import (
	"fmt"

	"github.com/kood3plot/kood3plot/errs"
	"github.com/kood3plot/kood3plot/wordfile"
)

// Control word addresses (0-indexed words in the base file).
const (
	wordNDim          = 15
	wordNumNodes      = 16
	wordCodeVersion   = 17
	wordNumGlobalVars = 18
	wordTempFlag      = 19
	wordDispFlag      = 20
	wordVelFlag       = 21
	wordAccFlag       = 22
	wordNumSolid8     = 23
	wordVarsPerSolid  = 27
	wordNumBeam2      = 28
	wordVarsPerBeam   = 30
	wordNumShell4     = 31
	wordVarsPerShell  = 33
	wordExtraSolid    = 34
	wordExtraShell    = 35
	wordMaxInt        = 36
	wordNarbs         = 39
	wordNumThickShell = 40
	wordVarsPerTShell = 42
	wordShellFlags    = 43 // four raw sentinel words, 43-46
	wordNumMaterials  = 51
	wordDt            = 55
	wordIdtDt         = 56
	wordExtraWords    = 57

	// controlWords is the size of the fixed control block; geometry starts at
	// controlWords + ExtraWords.
	controlWords = 64
)

// Sentinel values carried by the raw shell/solid output flag words.
const (
	flagSentinelSet    = 1000
	flagSentinelLegacy = 999
)

// ControlHeader is the decoded fixed-position metadata block of a base file.
// It declares the shape of everything that follows: geometry section sizes,
// per-state sub-block sizes, and the output flags that gate them.
//
// The derived fields (MdlOpt, Istrn, the *WordsPerState sizes) are computed
// once by computeDerived and shared; readers never re-derive them at the read
// site.
type ControlHeader struct {
	NDim          int32 // dimension code; 4, 5 and 7 collapse to 3 spatial dims
	NumNodes      int32
	CodeVersion   int32
	NumGlobalVars int32

	// TempFlag is the raw temperature flag: 0 none, 1 temperature, 2 adds flux,
	// 3 three temperatures, 1x adds mass scaling.
	TempFlag        int32
	HasDisplacement bool
	HasVelocity     bool
	HasAcceleration bool

	NumSolid8         int32 // negative when ten-node solids are present
	VarsPerSolid      int32
	NumBeam2          int32
	VarsPerBeam       int32
	NumShell4         int32
	VarsPerShell      int32
	NumThickShell8    int32
	VarsPerThickShell int32

	ExtraSolidVars int32 // additional per-solid history variables
	ExtraShellVars int32 // additional per-shell history variables

	// MaxInt is the integration point count after sign decoding; the raw sign
	// selects MdlOpt.
	MaxInt int32

	ShellFlags [4]int32 // output flags decoded from the 999/1000 sentinels
	SolidFlags [2]int32

	NarbsWords   int32
	NumMaterials int32
	Dt           float64
	IdtDt        int32
	ExtraWords   int32

	// Derived values.
	MdlOpt                int32 // material deletion mode: 0, 1 or 2
	Istrn                 int32 // strain-present flag
	NodalWordsPerState    int64
	ElementWordsPerState  int64
	DeletionWordsPerState int64
}

// ParseControlHeader reads the fixed-position control fields from the base
// file and computes the derived sizes.
func ParseControlHeader(r *wordfile.Reader) (ControlHeader, error) {
	var ch ControlHeader

	ints := []struct {
		word int64
		dst  *int32
	}{
		{wordNDim, &ch.NDim},
		{wordNumNodes, &ch.NumNodes},
		{wordCodeVersion, &ch.CodeVersion},
		{wordNumGlobalVars, &ch.NumGlobalVars},
		{wordTempFlag, &ch.TempFlag},
		{wordNumSolid8, &ch.NumSolid8},
		{wordVarsPerSolid, &ch.VarsPerSolid},
		{wordNumBeam2, &ch.NumBeam2},
		{wordVarsPerBeam, &ch.VarsPerBeam},
		{wordNumShell4, &ch.NumShell4},
		{wordVarsPerShell, &ch.VarsPerShell},
		{wordExtraSolid, &ch.ExtraSolidVars},
		{wordExtraShell, &ch.ExtraShellVars},
		{wordMaxInt, &ch.MaxInt},
		{wordNarbs, &ch.NarbsWords},
		{wordNumThickShell, &ch.NumThickShell8},
		{wordVarsPerTShell, &ch.VarsPerThickShell},
		{wordNumMaterials, &ch.NumMaterials},
		{wordIdtDt, &ch.IdtDt},
		{wordExtraWords, &ch.ExtraWords},
	}

	for _, field := range ints {
		v, err := r.ReadInt32(field.word)
		if err != nil {
			return ControlHeader{}, fmt.Errorf("control decoder: %w", err)
		}
		*field.dst = v
	}

	for _, flag := range []struct {
		word int64
		dst  *bool
	}{
		{wordDispFlag, &ch.HasDisplacement},
		{wordVelFlag, &ch.HasVelocity},
		{wordAccFlag, &ch.HasAcceleration},
	} {
		v, err := r.ReadInt32(flag.word)
		if err != nil {
			return ControlHeader{}, fmt.Errorf("control decoder: %w", err)
		}
		*flag.dst = v > 0
	}

	raw, err := r.ReadInt32Array(wordShellFlags, 4)
	if err != nil {
		return ControlHeader{}, fmt.Errorf("control decoder: %w", err)
	}
	decodeOutputFlags(&ch, raw)

	dt, err := r.ReadFloat64(wordDt)
	if err != nil {
		return ControlHeader{}, fmt.Errorf("control decoder: %w", err)
	}
	ch.Dt = dt

	if ch.NumNodes < 0 || ch.NarbsWords < 0 || ch.ExtraWords < 0 {
		return ControlHeader{}, fmt.Errorf("%w: control decoder: negative section size", errs.ErrCorruptedData)
	}

	ch.computeDerived()

	return ch, nil
}

// decodeOutputFlags maps the four raw sentinel words to the shell and solid
// output flags. Shell flags are set only by 1000; the first two words also
// feed the solid flags, where the legacy 999 sentinel counts as set.
func decodeOutputFlags(ch *ControlHeader, raw []int32) {
	for i, v := range raw {
		if v == flagSentinelSet {
			ch.ShellFlags[i] = 1
		}
	}

	for i := 0; i < 2; i++ {
		if raw[i] == flagSentinelSet || raw[i] == flagSentinelLegacy {
			ch.SolidFlags[i] = 1
		}
	}
}

// HasTemperature reports whether states carry a nodal temperature sub-block.
func (ch *ControlHeader) HasTemperature() bool {
	return ch.TempFlag > 0
}

// EffectiveNDim returns the spatial dimension count. Dimension codes 4, 5 and
// 7 mark packed-connectivity or material-type variants of a 3D model.
func (ch *ControlHeader) EffectiveNDim() int32 {
	if ch.NDim == 4 || ch.NDim == 5 || ch.NDim == 7 {
		return 3
	}

	return ch.NDim
}

// TempExtra returns the extra-temperature term N: the number of additional
// per-node words that ride along with the temperature value.
func (ch *ControlHeader) TempExtra() int32 {
	switch {
	case ch.TempFlag == 2:
		return 2
	case ch.TempFlag == 3:
		return 3
	case ch.TempFlag/10 == 1:
		return 1
	default:
		return 0
	}
}

// NumSolids returns the solid element count regardless of the ten-node sign.
func (ch *ControlHeader) NumSolids() int32 {
	if ch.NumSolid8 < 0 {
		return -ch.NumSolid8
	}

	return ch.NumSolid8
}

// StateWordCount returns the total word count of one state slot.
func (ch *ControlHeader) StateWordCount() int64 {
	return 1 + int64(ch.NumGlobalVars) + ch.NodalWordsPerState + ch.ElementWordsPerState + ch.DeletionWordsPerState
}

// GeometryStartWord returns the word offset of the geometry section in the
// base file.
func (ch *ControlHeader) GeometryStartWord() int64 {
	return controlWords + int64(ch.ExtraWords)
}

// computeDerived resolves the sign-encoded fields and the per-state section
// sizes. The rules are the binary format's compatibility contract.
func (ch *ControlHeader) computeDerived() {
	// MdlOpt rides on the sign and magnitude of the raw MaxInt.
	switch {
	case ch.MaxInt >= 0:
		ch.MdlOpt = 0
	case ch.MaxInt < -10000:
		ch.MdlOpt = 2
		ch.MaxInt = -ch.MaxInt - 10000
	default:
		ch.MdlOpt = 1
		ch.MaxInt = -ch.MaxInt
	}

	ch.Istrn = ch.deriveIstrn()

	boolWord := func(b bool) int64 {
		if b {
			return 1
		}

		return 0
	}

	tempWords := int64(0)
	if ch.HasTemperature() {
		tempWords = 1
	}

	motion := boolWord(ch.HasDisplacement) + boolWord(ch.HasVelocity) + boolWord(ch.HasAcceleration)
	ch.NodalWordsPerState = (tempWords + int64(ch.TempExtra()) + int64(ch.EffectiveNDim())*motion) * int64(ch.NumNodes)

	ch.ElementWordsPerState = int64(ch.NumSolids())*int64(ch.VarsPerSolid) +
		int64(ch.NumThickShell8)*int64(ch.VarsPerThickShell) +
		int64(ch.NumBeam2)*int64(ch.VarsPerBeam) +
		int64(ch.NumShell4)*int64(ch.VarsPerShell)

	switch ch.MdlOpt {
	case 1:
		ch.DeletionWordsPerState = int64(ch.NumNodes)
	case 2:
		ch.DeletionWordsPerState = int64(ch.NumSolids()) + int64(ch.NumThickShell8) + int64(ch.NumShell4) + int64(ch.NumBeam2)
	default:
		ch.DeletionWordsPerState = 0
	}
}

// deriveIstrn computes the strain-present flag. Newer files publish it inside
// IdtDt's 10^4 decimal digit; older files force it to be reconstructed from
// the shell variable budget.
func (ch *ControlHeader) deriveIstrn() int32 {
	if ch.IdtDt >= 100 {
		return (ch.IdtDt / 10000) % 10
	}

	if ch.VarsPerShell > 0 {
		computed := ch.VarsPerShell -
			ch.MaxInt*(6*ch.ShellFlags[0]+ch.ShellFlags[1]+ch.ExtraShellVars) -
			8*ch.ShellFlags[2] - 4*ch.ShellFlags[3]
		if computed/12 == 1 {
			return 1
		}

		return 0
	}

	// No shells: solids with six or more history variables still carry strain.
	if ch.VarsPerSolid > 0 && ch.VarsPerThickShell != 0 && ch.ExtraSolidVars >= 6 {
		return 1
	}

	return 0
}

// stateStartWord returns the word offset of the first state slot in the base
// file: the end of the geometry and arbitrary-ID sections.
func (ch *ControlHeader) stateStartWord() int64 {
	offset := ch.GeometryStartWord()
	offset += int64(ch.EffectiveNDim()) * int64(ch.NumNodes)

	numSolids := int64(ch.NumSolids())
	offset += 9 * numSolids
	if ch.NumSolid8 < 0 {
		offset += 2 * numSolids // ten-node extras
	}

	offset += 9 * int64(ch.NumThickShell8)
	offset += 6 * int64(ch.NumBeam2)
	offset += 5 * int64(ch.NumShell4)

	if ch.NarbsWords > 0 {
		offset += int64(ch.NarbsWords)
	}

	return offset
}
