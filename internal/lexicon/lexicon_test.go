package lexicon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText_FallsBackToRussian(t *testing.T) {
	require.Equal(t, lexiconRU[Cancelled], Text("de", Cancelled))
	require.Equal(t, lexiconRU[Cancelled], Text("", Cancelled))
	require.Equal(t, lexiconEN[Cancelled], Text("en", Cancelled))
}

func TestText_UnknownKeyEchoesKey(t *testing.T) {
	require.Equal(t, "no_such_key", Text("ru", Key("no_such_key")))
}

func TestTextf_Substitutes(t *testing.T) {
	require.Contains(t, Textf("en", Balance, int64(150)), "150")
	require.Contains(t, Textf("ru", LowBalance, int64(100), int64(20)), "100")
}

func TestEveryKeyHasBothLanguages(t *testing.T) {
	for key := range lexiconRU {
		_, ok := lexiconEN[key]
		require.True(t, ok, "missing English text for %q", key)
	}
	for key := range lexiconEN {
		_, ok := lexiconRU[key]
		require.True(t, ok, "missing Russian text for %q", key)
	}
}
