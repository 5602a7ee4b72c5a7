package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushHeadAndTail(t *testing.T) {
	l := NewList[int]()
	require.Nil(t, l.PeekHead())
	require.Nil(t, l.PeekTail())

	l.PushTail(2)
	l.PushHead(1)
	l.PushTail(3)

	require.Equal(t, 1, l.PeekHead().GetValue())
	require.Equal(t, 3, l.PeekTail().GetValue())
	require.Equal(t, 2, l.PeekHead().GetNext().GetValue())
	require.Equal(t, 2, l.PeekTail().GetPrev().GetValue())
}

func TestFind(t *testing.T) {
	l := NewList[string]()
	l.PushTail("a")
	l.PushTail("b")
	l.PushTail("c")

	link := l.Find(func(link *Link[string]) bool { return link.GetValue() == "b" })
	require.NotNil(t, link)
	require.Equal(t, "b", link.GetValue())

	missing := l.Find(func(link *Link[string]) bool { return link.GetValue() == "z" })
	require.Nil(t, missing)
}

func TestMap(t *testing.T) {
	l := NewList[int]()
	for i := 1; i <= 4; i++ {
		l.PushTail(i)
	}
	sum := 0
	l.Map(func(link *Link[int]) { sum += link.GetValue() })
	require.Equal(t, 10, sum)
}

func TestPopSelf(t *testing.T) {
	l := NewList[int]()
	a := l.PushTail(1)
	b := l.PushTail(2)
	c := l.PushTail(3)

	// Middle link.
	b.PopSelf()
	require.Equal(t, a, l.PeekHead())
	require.Equal(t, c, a.GetNext())
	require.Nil(t, b.GetList())

	// Head link.
	a.PopSelf()
	require.Equal(t, c, l.PeekHead())
	require.Equal(t, c, l.PeekTail())

	// Only link.
	c.PopSelf()
	require.Nil(t, l.PeekHead())
	require.Nil(t, l.PeekTail())
}

func TestPopSelfTail(t *testing.T) {
	l := NewList[int]()
	l.PushTail(1)
	b := l.PushTail(2)

	b.PopSelf()
	require.Equal(t, 1, l.PeekTail().GetValue())
	require.Nil(t, l.PeekTail().GetNext())
}
