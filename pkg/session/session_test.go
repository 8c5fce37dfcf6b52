package session

import (
	"testing"

	"github.com/dkovalenko/udpflow/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderHappyPath(t *testing.T) {
	s := New()
	assert.Equal(t, StateIdle, s.State())

	start, err := s.Submit(wire.KindMessage, 4)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeStart, start.Type)
	assert.Equal(t, StateSendingStart, s.State())

	require.NoError(t, s.OnAnswer(start.SequenceNumber))
	assert.Equal(t, StateSending, s.State())

	fin, err := s.RequestFinish(4)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeFinish, fin.Type)
	assert.True(t, wire.IsFinishFile(fin.Flags) == false)
	assert.Equal(t, StateAwaitingFinishAck, s.State())

	require.NoError(t, s.OnFinishConfirm())
	assert.Equal(t, StateIdle, s.State())
}

func TestOnAnswerRejectsMismatchedSequence(t *testing.T) {
	s := New()
	start, err := s.Submit(wire.KindMessage, 4)
	require.NoError(t, err)

	err = s.OnAnswer(start.SequenceNumber + 99)
	assert.ErrorIs(t, err, ErrWrongState)
	assert.Equal(t, StateSendingStart, s.State(), "a mismatched answer must not advance the state")
}

func TestReceiverHappyPath(t *testing.T) {
	s := New()
	answer, err := s.OnStart(42, wire.KindFile, 4)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeAnswer, answer.Type)
	assert.Equal(t, uint32(42), answer.SequenceNumber)
	assert.Equal(t, StateReceiving, s.State())

	confirm, err := s.OnFinish(77, 4)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeFinish, confirm.Type)
	assert.True(t, wire.IsFinishConfirm(confirm.Flags))
	assert.True(t, wire.IsFinishFile(confirm.Flags))
	assert.Equal(t, uint32(77), confirm.SequenceNumber)
	assert.Equal(t, StateIdle, s.State())
}

func TestDuplicateStartIsIgnored(t *testing.T) {
	s := New()
	_, err := s.OnStart(10, wire.KindMessage, 4)
	require.NoError(t, err)
	_, err = s.OnFinish(11, 4)
	require.NoError(t, err)

	_, err = s.OnStart(10, wire.KindMessage, 4)
	assert.ErrorIs(t, err, ErrDuplicateStart)
	assert.Equal(t, StateIdle, s.State(), "a duplicate start must not reopen the session")
}

func TestFinishFlagValuesMatchWireContract(t *testing.T) {
	s := New()
	start, err := s.Submit(wire.KindFile, 4)
	require.NoError(t, err)
	require.NoError(t, s.OnAnswer(start.SequenceNumber))

	fin, err := s.RequestFinish(4)
	require.NoError(t, err)
	assert.Equal(t, uint8(wire.FinishFileRequest), fin.Flags)
}

func TestNextSequenceIsMonotonicFromRandomSeed(t *testing.T) {
	s := New()
	start, err := s.Submit(wire.KindMessage, 4)
	require.NoError(t, err)

	first := s.NextSequence()
	second := s.NextSequence()
	assert.Equal(t, start.SequenceNumber+1, first)
	assert.Equal(t, start.SequenceNumber+2, second)
}
