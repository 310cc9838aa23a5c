package instructions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStreamDefaults(t *testing.T) {
	s := New(5, 30)
	require.Equal(t, 5, s.NSlides())
	require.Equal(t, 30.0, s.Framerate())
	require.Equal(t, 0, s.CurrentIndex())
	require.False(t, s.Frozen())
}

func TestNextPreviousAdjustCurrentIndex(t *testing.T) {
	s := New(3, 25)
	require.NoError(t, s.Next(10, false))
	require.Equal(t, 1, s.CurrentIndex())
	require.NoError(t, s.Previous(20, false))
	require.Equal(t, 0, s.CurrentIndex())
}

func TestNextAtLastSlideFails(t *testing.T) {
	s := New(2, 25)
	require.NoError(t, s.Next(1, false))
	require.ErrorIs(t, s.Next(2, false), errAtLastSlide)
}

func TestPreviousAtFirstSlideFails(t *testing.T) {
	s := New(2, 25)
	require.ErrorIs(t, s.Previous(1, false), errAtFirstSlide)
}

func TestGoToOutOfRangeFails(t *testing.T) {
	s := New(3, 25)
	require.Error(t, s.GoTo(1, 5, false))
}

func TestEndFreezesStream(t *testing.T) {
	s := New(3, 25)
	require.NoError(t, s.End(100, false))
	require.True(t, s.Frozen())
	require.ErrorIs(t, s.Next(101, false), errFrozen)
}

func TestStringRoundTrip(t *testing.T) {
	s := New(3, 25)
	require.NoError(t, s.Next(10, false))
	require.NoError(t, s.GoTo(40, 2, true))
	require.NoError(t, s.Previous(5, true))
	require.NoError(t, s.End(15, true))

	text := s.String()
	parsed, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, s.NSlides(), parsed.NSlides())
	require.Equal(t, s.Framerate(), parsed.Framerate())
	require.Equal(t, s.Instructions(), parsed.Instructions())
	require.True(t, parsed.Frozen())
}

func TestParseRejectsMalformedHeader(t *testing.T) {
	_, err := Parse("nslides = oops\nframerate = 25\nninstructions = 0\n")
	require.Error(t, err)
}

func TestParseRejectsTruncatedInstructionList(t *testing.T) {
	_, err := Parse("nslides = 3\nframerate = 25\nninstructions = 2\n[00:00:00.00]: next\n")
	require.Error(t, err)
}

func TestParseRejectsInvalidTransition(t *testing.T) {
	_, err := Parse("nslides = 1\nframerate = 25\nninstructions = 1\n[00:00:00.00]: next\n")
	require.Error(t, err)
}

func TestParseGoToDecodesOneBasedToZeroBased(t *testing.T) {
	s, err := Parse("nslides = 5\nframerate = 25\nninstructions = 1\n[00:00:00.00]: go to3\n")
	require.NoError(t, err)
	require.Equal(t, GoTo, s.Instructions()[0].Code)
	require.Equal(t, 2, s.Instructions()[0].Data)
}

func TestIndexTimestampRoundTripWithFramerate(t *testing.T) {
	stamp := index2timestamp(3725*30+7, 30)
	require.Equal(t, "01:02:05.07", stamp)

	idx, err := timestamp2index(stamp, 30)
	require.NoError(t, err)
	require.Equal(t, int64(3725*30+7), idx)
}

func TestIndexTimestampFallsBackToRawIndexWhenFramerateZero(t *testing.T) {
	require.Equal(t, "42", index2timestamp(42, 0))
	idx, err := timestamp2index("42", 0)
	require.NoError(t, err)
	require.Equal(t, int64(42), idx)
}

func TestVerbGoToEmitsSeparatingSpace(t *testing.T) {
	require.Equal(t, "go to 3", verb(Instruction{Code: GoTo, Data: 2}))
}

func TestStringRoundTripWithWallClockTimestamps(t *testing.T) {
	s := New(5, 30)
	require.NoError(t, s.Next(3725*30+7, false))

	text := s.String()
	require.Contains(t, text, "[01:02:05.07]: next")

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, s.Instructions(), parsed.Instructions())
}

func TestParsedStreamIsFrozen(t *testing.T) {
	s, err := Parse("nslides = 2\nframerate = 25\nninstructions = 0\n")
	require.NoError(t, err)
	require.True(t, s.Frozen())
	require.ErrorIs(t, s.Next(1, false), errFrozen)
}

func TestFreezeWithoutEnd(t *testing.T) {
	s := New(2, 25)
	s.Freeze()
	require.True(t, s.Frozen())
}
