package deferred

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThen_MapsSuccess(t *testing.T) {
	src := New[int]()
	next := Then(src, func(v int) (string, error) {
		return strconv.Itoa(v * 2), nil
	})
	assert.Equal(t, Pending, next.State())

	require.NoError(t, src.Resolve(21))
	v, err, ok := next.Outcome()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestThen_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	next := Then(Rejected[int](boom), func(v int) (string, error) {
		t.Fatal("mapper must not run on failure")
		return "", nil
	})

	_, err, ok := next.Outcome()
	require.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestThen_MapperError(t *testing.T) {
	bad := errors.New("missing id")
	next := Then(Resolved(1), func(int) (string, error) {
		return "", bad
	})

	assert.Equal(t, Failed, next.State())
	_, err, _ := next.Outcome()
	assert.ErrorIs(t, err, bad)
}

func TestThen_SlotsAlreadyTaken(t *testing.T) {
	src := New[int]()
	require.NoError(t, src.OnSuccess(func(int) {}))

	next := Then(src, func(v int) (int, error) { return v, nil })
	_, err, ok := next.Outcome()
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrProgramming)

	// The free error slot is left for the caller.
	var got error
	require.NoError(t, src.OnError(func(err error) { got = err }))
	boom := errors.New("boom")
	require.NoError(t, src.Reject(boom))
	assert.Equal(t, boom, got)
}

func TestThen_ErrorSlotTaken(t *testing.T) {
	src := New[int]()
	require.NoError(t, src.OnError(func(error) {}))

	next := Then(src, func(v int) (int, error) { return v, nil })
	_, err, _ := next.Outcome()
	assert.ErrorIs(t, err, ErrProgramming)

	var got int
	require.NoError(t, src.OnSuccess(func(v int) { got = v }))
	require.NoError(t, src.Resolve(7))
	assert.Equal(t, 7, got)
}

func TestDiscard_ConsumesSlots(t *testing.T) {
	src := New[int]()
	Discard(src)
	assert.ErrorIs(t, src.OnSuccess(func(int) {}), ErrProgramming)
	assert.ErrorIs(t, src.OnError(func(error) {}), ErrProgramming)
	require.NoError(t, src.Resolve(1))
}

func TestFinally_RunsOnBothOutcomes(t *testing.T) {
	ran := 0

	ok := New[string]()
	next := Finally(ok, func() { ran++ })
	require.NoError(t, ok.Resolve("done"))
	v, err, settled := next.Outcome()
	require.True(t, settled)
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	failed := Rejected[string](errors.New("gone"))
	next = Finally(failed, func() { ran++ })
	_, err, _ = next.Outcome()
	assert.EqualError(t, err, "gone")

	assert.Equal(t, 2, ran)
}

func TestFinally_SlotTaken(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.OnSuccess(func(int) {}))

	next := Finally(r, func() { t.Fatal("must not run") })
	_, err, _ := next.Outcome()
	assert.ErrorIs(t, err, ErrProgramming)

	require.NoError(t, r.OnError(func(error) {}), "error slot stays free")
}

func TestThen_AttachAfterSettled(t *testing.T) {
	ok := Then(Resolved(2), func(v int) (int, error) { return v * 10, nil })
	v, err, done := ok.Outcome()
	require.True(t, done)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	boom := errors.New("boom")
	failed := Then(Rejected[int](boom), func(v int) (int, error) {
		t.Fatal("must not run")
		return 0, nil
	})
	_, err, _ = failed.Outcome()
	assert.Equal(t, boom, err)
}
