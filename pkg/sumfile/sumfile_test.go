package sumfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumfile(t *testing.T) {
	t.Run("adds entries", func(t *testing.T) {
		var sf Sumfile

		sf.Add("ab", "b2", []byte{1, 2, 3})
		sf.Add("b", "b2", []byte{4, 5, 6})

		algo, data, ok := sf.Lookup("ab")
		require.True(t, ok)

		assert.Equal(t, "b2", algo)
		assert.Equal(t, []byte{1, 2, 3}, data)

		algo, data, ok = sf.Lookup("b")
		require.True(t, ok)

		assert.Equal(t, "b2", algo)
		assert.Equal(t, []byte{4, 5, 6}, data)

		_, _, ok = sf.Lookup("c")
		require.False(t, ok)

		_, _, ok = sf.Lookup("a")
		require.False(t, ok)
	})

	t.Run("replaces an existing entry", func(t *testing.T) {
		var sf Sumfile

		sf.Add("artifact.tar.gz", "b2", []byte{1, 2, 3})
		sf.Add("artifact.tar.gz", "b2", []byte{9, 9, 9})

		_, data, ok := sf.Lookup("artifact.tar.gz")
		require.True(t, ok)

		assert.Equal(t, []byte{9, 9, 9}, data)

		var buf bytes.Buffer
		require.NoError(t, sf.Save(&buf))

		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte{'\n'}))
	})

	t.Run("loads entries", func(t *testing.T) {
		var buf bytes.Buffer

		fmt.Fprintf(&buf, "b2:%s a\n", base58.Encode([]byte{1, 2, 3}))
		fmt.Fprintf(&buf, "b2:%s b\n", base58.Encode([]byte{4, 5, 6}))

		var sf Sumfile

		err := sf.Load(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)

		require.Equal(t, 2, len(sf.entities))

		assert.Equal(t, "a", sf.entities[0].entity)
		assert.Equal(t, []byte{1, 2, 3}, sf.entities[0].hash)

		assert.Equal(t, "b", sf.entities[1].entity)
		assert.Equal(t, []byte{4, 5, 6}, sf.entities[1].hash)
	})
}
