package patch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/go-json-crdt/clock"
)

func TestBuilderMonotonicIDs(t *testing.T) {
	b := NewBuilder(65536, 1)

	strID := b.NewStr()
	insID := b.InsStr(strID, clock.ORIGIN, "hi")
	valID := b.NewVal()

	require.True(t, strID.Less(insID), "expected %v < %v", strID, insID)
	require.True(t, insID.Less(valID), "expected %v < %v", insID, valID)
	require.Equal(t, strID.Time+1, insID.Time, "expected InsStr id right after NewStr id")
	require.Equal(t, insID.Time+2, valID.Time, "expected NewVal id to skip InsStr's span of 2")
}

func TestBuilderFlushResetsBuffer(t *testing.T) {
	b := NewBuilder(65536, 1)
	b.NewObj()
	b.NewStr()

	p := b.Flush()
	require.NotNil(t, p)
	require.Len(t, p.Ops, 2)
	require.Zero(t, b.Len(), "expected builder buffer to be empty after Flush")

	require.Nil(t, b.Flush(), "expected nil from Flush on an empty builder")
}

func TestSpanAccounting(t *testing.T) {
	ins := InsStr{Text: "héllo"}
	if got, want := ins.Span(), uint64(5); got != want {
		t.Errorf("expected span %d (unicode scalars), got %d", want, got)
	}

	del := Del{What: []clock.Timespan{{SID: 1, Time: 0, Span: 3}}}
	if del.Span() != 1 {
		t.Errorf("del itself always consumes exactly 1 timestamp, got %d", del.Span())
	}
}
