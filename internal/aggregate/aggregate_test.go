package aggregate

import (
	"testing"

	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trial(input, extra string, user, sys float64) runspec.Spec {
	s := runspec.New("EXEC", input, "400", runspec.NoSaft, nil, extra).DeriveOutputFile("out")
	s.Stats = runspec.Stats{UserTime: user, SystemTime: sys}
	return s
}

func TestMeanOfThree(t *testing.T) {
	runs := []runspec.Spec{
		trial("a.csv", "", 10, 1),
		trial("./a.csv", "", 20, 2),
		trial("a.csv", "", 30, 6),
	}

	got := Mean(runs)
	require.Len(t, got, 1)
	assert.Equal(t, 20.0, got[0].Stats.UserTime)
	assert.Equal(t, 3.0, got[0].Stats.SystemTime)
	assert.Equal(t, runs[0].InputFile, got[0].InputFile)
	assert.Equal(t, 10.0, runs[0].Stats.UserTime)
}

func TestMeanKeepsFirstOccurrenceOrder(t *testing.T) {
	runs := []runspec.Spec{
		trial("b.csv", "", 1, 0),
		trial("a.csv", "", 2, 0),
		trial("b.csv", "", 3, 0),
		trial("a.csv", "--x", 4, 0),
	}

	got := Mean(runs)
	require.Len(t, got, 3)
	assert.Equal(t, "b.csv", got[0].InputFile)
	assert.Equal(t, 2.0, got[0].Stats.UserTime)
	assert.Equal(t, "a.csv", got[1].InputFile)
	assert.Equal(t, "--x", got[2].ExtraArgs)
}

func TestMeanSingletonUnchanged(t *testing.T) {
	r := trial("a.csv", "", 1.5, 0.25)
	got := Mean([]runspec.Spec{r})
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])
}

func TestMeanIdempotent(t *testing.T) {
	runs := []runspec.Spec{
		trial("a.csv", "", 1, 1),
		trial("a.csv", "", 2, 3),
		trial("b.csv", "", 5, 0),
	}
	once := Mean(runs)
	assert.Equal(t, once, Mean(once))
}

func TestMeanEmpty(t *testing.T) {
	assert.Empty(t, Mean(nil))
}

func TestMeanCopiesGroupMember(t *testing.T) {
	stop := "4"
	r := trial("a.csv", "", 1, 1)
	r.SlaveStop = &stop

	got := Mean([]runspec.Spec{r, r})
	*got[0].SlaveStop = "9"
	assert.Equal(t, "4", stop)
}

func TestByKey(t *testing.T) {
	runs := []runspec.Spec{trial("a", "", 1, 0), trial("b", "", 1, 0), trial("a", "", 1, 0)}
	groups := ByKey(runs)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Runs, 2)
	assert.Equal(t, "a", groups[0].Key.InputFile)
}

func TestNegative(t *testing.T) {
	runs := []runspec.Spec{trial("a", "", 1, 0), trial("b", "", -1, 0), trial("c", "", 0, -0.5)}
	got := Negative(runs)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].InputFile)
}

func TestRepair(t *testing.T) {
	runs := []runspec.Spec{
		trial("a", "", 5, 1),
		trial("b", "", 12, 1.5),
		trial("c", "", 11, 2),
	}

	got := Repair(runs)
	require.Len(t, got, 3)
	assert.Equal(t, runspec.Stats{UserTime: 5, SystemTime: 1}, got[0].Stats)
	assert.Equal(t, runspec.Stats{UserTime: 7, SystemTime: 0.5}, got[1].Stats)
	assert.Equal(t, runspec.Stats{UserTime: -1, SystemTime: 0.5}, got[2].Stats)
	assert.Len(t, Negative(got), 1)
	assert.Equal(t, 12.0, runs[1].Stats.UserTime)

	assert.Nil(t, Repair(nil))
}

func TestCheckCardinality(t *testing.T) {
	runs := []runspec.Spec{
		trial("a", "--0", 1, 0), trial("a", "--1", 1, 0), trial("a", "--2", 1, 0),
		trial("b", "--0", 1, 0), trial("b", "--1", 1, 0),
	}
	err := CheckCardinality(runs, 3)
	assert.ErrorIs(t, err, ErrCardinality)
	assert.ErrorContains(t, err, "b has 2")

	assert.NoError(t, CheckCardinality(runs[:3], 3))
}
