package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		byName, err := ByName(c.Name())
		require.NoError(t, err)
		assert.Equal(t, c, byName)

		byID, err := ByID(c.ID())
		require.NoError(t, err)
		assert.Equal(t, c, byID)
	}

	_, err := ByName("msgpack")
	assert.ErrorIs(t, err, ErrUnknownCodec)
	_, err = ByID(0)
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCodecsAreInterchangeable(t *testing.T) {
	type doc struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}
	in := doc{Name: "a", Score: 0.5}

	data, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, JSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
