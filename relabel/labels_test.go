package relabel

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelSetNormalises(t *testing.T) {
	set := NewLabelSet([]string{" Buy Now ", "buy now", "", "  ", "Add to Cart"})
	assert.Equal(t, 2, set.Len())
	for _, in := range []string{"BUY NOW", "buy now", "\n\tBuy Now  ", "add TO cart", "\uFEFFBuy Now"} {
		assert.True(t, set.Contains(in), in)
	}
	for _, in := range []string{"Buy Now!", "Buy  Now", "Buy", ""} {
		assert.False(t, set.Contains(in), in)
	}
}

func TestPickerUpperCasesAndStaysInSet(t *testing.T) {
	p, err := NewPicker([]string{"Obey", "Consume"}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	seen := map[string]bool{}
	for range 200 {
		seen[p.Pick()] = true
	}
	assert.Equal(t, map[string]bool{"OBEY": true, "CONSUME": true}, seen)
}

func TestPickerDeterministicWithSeed(t *testing.T) {
	slogans := []string{"a", "b", "c", "d"}
	p1, err := NewPicker(slogans, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	p2, err := NewPicker(slogans, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	for range 20 {
		assert.Equal(t, p1.Pick(), p2.Pick())
	}
}

func TestPickerRequiresSlogans(t *testing.T) {
	_, err := NewPicker(nil, nil)
	assert.ErrorIs(t, err, ErrNoSlogans)
}

func TestPickerCopiesInput(t *testing.T) {
	slogans := []string{"obey"}
	p, err := NewPicker(slogans, nil)
	require.NoError(t, err)
	slogans[0] = "changed"
	assert.Equal(t, "OBEY", p.Pick())
}
