package keys

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y  int
	label string
}

type stamped struct {
	time.Time
	ID int
}

type node struct {
	Name string
	Next *node
}

func TestFlatten(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)
	list := []int{1}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sequence", []int{3, 4}, "3,4"},
		{"array", [2]string{"a", "B"}, "a,b"},
		{"mapping", map[int]string{1: "x"}, "1:x"},
		{"mapping sorted", map[string]int{"b": 1, "a": 2, "c": 0}, "a:2,b:1,c:0"},
		{"nested sequence bracketed", []any{1, []any{2}}, "1,[2]"},
		{"nested mapping bracketed", []any{map[string]int{"K": 1}}, "{k:1}"},
		{"struct as mapping", point{X: 1, Y: 2, label: "hidden"}, "x:1,y:2"},
		{"pointer to collection", &list, "1"},
		{"empty sequence", []int{}, ""},
		{"empty mapping", map[string]int{}, ""},
		{"scalar", "Hello", "hello"},
		{"nil", nil, "nil"},
		{"nil element", []any{nil, 1}, "nil,1"},
		{"structural characters escaped", []string{"1,2", "a:b"}, `1\,2,a\:b`},
		{"stringer element", []any{sku("x")}, "sku-x"},
		{"folded element", []string{"Café"}, "cafe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Flatten(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlattenDistinguishesStructure(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)

	inputs := []any{
		[]any{1, 2},
		[]any{1, []any{2}},
		[]any{[]any{1, 2}},
		[]string{"1,2"},
		map[string]any{"1": 2},
		[]any{map[string]any{"1": 2}},
	}

	seen := map[string]int{}
	for i, in := range inputs {
		got, err := f.Flatten(in)
		require.NoError(t, err)
		if prev, ok := seen[got]; ok {
			t.Fatalf("inputs %d and %d both flatten to %q", prev, i, got)
		}
		seen[got] = i
	}
}

func TestFlattenDeterministic(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)

	m := map[string]any{}
	for i := 0; i < 64; i++ {
		m[fmt.Sprintf("k%02d", i)] = []int{i, i * 2}
	}

	first, err := f.Flatten(m)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := f.Flatten(m)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// keys colliding after folding are ordered by value
	a, err := f.Flatten(map[string]int{"A": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, "a:1,a:2", a)
}

func TestFlattenDepthBound(t *testing.T) {
	f := NewFlattener(2)

	atLimit := []any{[]any{[]any{1}}}
	got, err := f.Flatten(atLimit)
	require.NoError(t, err)
	assert.Equal(t, "[[1]]", got)

	tooDeep := []any{[]any{[]any{[]any{1}}}}
	_, err = f.Flatten(tooDeep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooDeep)

	zero := NewFlattener(0)
	_, err = zero.Flatten([]int{1})
	require.NoError(t, err)
	_, err = zero.Flatten([]any{[]int{1}})
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestFlattenUnbounded(t *testing.T) {
	f := NewFlattener(Unbounded)
	assert.Equal(t, Unbounded, f.MaxDepth())

	var deep any = 1
	for i := 0; i < 16; i++ {
		deep = []any{deep}
	}
	got, err := f.Flatten(deep)
	require.NoError(t, err)
	assert.Equal(t, "[[[[[[[[[[[[[[[1]]]]]]]]]]]]]]]", got)

	t.Run("self referencing slice", func(t *testing.T) {
		s := []any{nil}
		s[0] = s
		_, err := f.Flatten(s)
		assert.ErrorIs(t, err, ErrTooDeep)
	})

	t.Run("self referencing map", func(t *testing.T) {
		m := map[string]any{}
		m["self"] = m
		_, err := f.Flatten(m)
		assert.ErrorIs(t, err, ErrTooDeep)
	})

	t.Run("pointer cycle", func(t *testing.T) {
		n := &node{Name: "a"}
		n.Next = n
		_, err := f.Flatten(n)
		assert.ErrorIs(t, err, ErrTooDeep)
	})

	t.Run("shared but acyclic", func(t *testing.T) {
		shared := []int{7}
		got, err := f.Flatten([]any{shared, shared})
		require.NoError(t, err)
		assert.Equal(t, "[7],[7]", got)
	})
}

func TestFlattenEmbeddedStringerIsNotScalar(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := f.Flatten(stamped{Time: at, ID: 1})
	require.NoError(t, err)
	second, err := f.Flatten(stamped{Time: at, ID: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, `id:1,time:2024-01-02t03\:04\:05z`, first)

	byPointer, err := f.Flatten(&stamped{Time: at, ID: 1})
	require.NoError(t, err)
	assert.Equal(t, first, byPointer)
}

func TestFlattenTimeStaysScalar(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)
	now := time.Now()

	byValue, err := f.Flatten(now.Round(0))
	require.NoError(t, err)
	byPointer, err := f.Flatten(&now)
	require.NoError(t, err)
	assert.Equal(t, byValue, byPointer)

	byValueArgs, err := f.Positional([]any{now})
	require.NoError(t, err)
	byPointerArgs, err := f.Positional([]any{&now})
	require.NoError(t, err)
	assert.Equal(t, byValueArgs, byPointerArgs)
}

func TestFlattenUnconvertibleElement(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)
	_, err := f.Flatten([]any{1, func() {}})
	assert.ErrorIs(t, err, ErrUnconvertible)
}

func TestPositionalAndKeyword(t *testing.T) {
	f := NewFlattener(DefaultMaxDepth)

	pos, err := f.Positional([]any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "1,2,", pos)

	pos, err = f.Positional([]any{[]int{3, 4}, "X"})
	require.NoError(t, err)
	assert.Equal(t, "[3,4],x,", pos)

	pos, err = f.Positional(nil)
	require.NoError(t, err)
	assert.Empty(t, pos)

	kw, err := f.Keyword(Kwargs{"b": 2, "A": []int{1}})
	require.NoError(t, err)
	assert.Equal(t, "a:[1],b:2,", kw)

	kw, err = f.Keyword(nil)
	require.NoError(t, err)
	assert.Empty(t, kw)
}

func TestPositionalDepthCountsArgumentList(t *testing.T) {
	f := NewFlattener(2)

	_, err := f.Positional([]any{[]any{[]any{1}}})
	require.NoError(t, err)

	_, err = f.Positional([]any{[]any{[]any{[]any{1}}}})
	assert.ErrorIs(t, err, ErrTooDeep)
}
