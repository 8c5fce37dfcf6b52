package fragment

import (
	"bytes"
	"io"
	"testing"

	"github.com/dkovalenko/udpflow/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqFrom(start uint32) SequenceSource {
	n := start
	return func() uint32 {
		v := n
		n++
		return v
	}
}

func TestMessageOutboundSplitsAtFragmentSize(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 25)
	ob, err := NewMessageOutbound(payload, 10, 4, seqFrom(0))
	require.NoError(t, err)

	var got []byte
	var seqs []uint32
	for {
		pkt, err := ob.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, wire.TypeSendData, pkt.Type)
		assert.LessOrEqual(t, len(pkt.Payload), 10)
		seqs = append(seqs, pkt.SequenceNumber)
		got = append(got, pkt.Payload...)
	}
	assert.Equal(t, payload, got)
	assert.Equal(t, []uint32{0, 1, 2}, seqs)
}

func TestFileOutboundSplitsNameAcrossLeadingFragments(t *testing.T) {
	name := "report.pdf" // 10 bytes
	content := bytes.Repeat([]byte("c"), 15)
	ob, err := NewFileOutbound(name, bytes.NewReader(content), 8, 4, seqFrom(100))
	require.NoError(t, err)

	var reconstructedName []byte
	var reconstructedContent []byte
	for {
		pkt, err := ob.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, wire.TypeSendFile, pkt.Type)
		n, c := SplitName(pkt.Payload, pkt.NameLength)
		reconstructedName = append(reconstructedName, n...)
		reconstructedContent = append(reconstructedContent, c...)
	}
	assert.Equal(t, name, string(reconstructedName))
	assert.Equal(t, content, reconstructedContent)
}

func TestReassemblyStoreDeliversContiguousOrderDespiteReordering(t *testing.T) {
	s := NewStore(0)
	s.Put(2, []byte("c"), 0)
	assert.Empty(t, s.Drain())

	s.Put(0, []byte("a"), 0)
	got := s.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, []byte("a"), got[0].Payload)
	assert.Equal(t, uint32(1), s.NextExpected())

	s.Put(1, []byte("b"), 0)
	got = s.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, []byte("b"), got[0].Payload)
	assert.Equal(t, []byte("c"), got[1].Payload)
	assert.Equal(t, uint32(3), s.NextExpected())
}

func TestReassemblyStoreDropsDuplicatesBehindNextExpected(t *testing.T) {
	s := NewStore(5)
	s.Put(5, []byte("first"), 0)
	require.Len(t, s.Drain(), 1)

	s.Put(5, []byte("replay"), 0)
	assert.Equal(t, 0, s.Pending(), "a fragment behind next_expected must be dropped, not buffered")
}

func TestResetClearsPendingFragments(t *testing.T) {
	s := NewStore(0)
	s.Put(3, []byte("x"), 0)
	s.Reset()
	assert.Equal(t, 0, s.Pending())
}

func TestSplitNameHandlesBoundaryFragment(t *testing.T) {
	name, content := SplitName([]byte("allcontent"), 0)
	assert.Empty(t, name)
	assert.Equal(t, []byte("allcontent"), content)
}

func TestNewOutboundRejectsOversizedFragment(t *testing.T) {
	_, err := NewMessageOutbound([]byte("hi"), wire.MaxFragmentSize+1, 4, seqFrom(0))
	assert.ErrorIs(t, err, ErrFragmentSizeOutOfRange)
}
