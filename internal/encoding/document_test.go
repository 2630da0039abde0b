package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/arkvault/internal/apperr"
)

func TestDocumentEmpty(t *testing.T) {
	d, err := DecodeDocument(nil)
	require.NoError(t, err)
	require.Zero(t, d.Len())
	_, ok, err := d.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDocumentNotObject(t *testing.T) {
	_, err := DecodeDocument([]byte("plain text"))
	require.ErrorIs(t, err, apperr.ErrCorrupt)
	_, err = DecodeDocument([]byte("[1,2]"))
	require.ErrorIs(t, err, apperr.ErrCorrupt)
}

func TestDocumentStructuredEntries(t *testing.T) {
	d, err := DecodeDocument(nil)
	require.NoError(t, err)
	require.NoError(t, d.Insert(Structured, "abc", []byte("k=1, j=2")))
	require.NoError(t, d.Append(Structured, "abc", []byte("k=9")))
	require.NoError(t, d.Insert(Structured, "def", []byte("x=y")))

	out, err := d.Encode()
	require.NoError(t, err)

	back, err := DecodeDocument(out)
	require.NoError(t, err)
	require.Equal(t, []string{"abc", "def"}, back.Keys())
	v, ok, err := back.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]string{"k": "9", "j": "2"}, v.Fields)
}

func TestDocumentRawEntries(t *testing.T) {
	d, err := DecodeDocument(nil)
	require.NoError(t, err)
	require.NoError(t, d.Insert(Raw, "abc", []byte("v1")))
	require.NoError(t, d.Append(Raw, "abc", []byte("+v2")))

	out, err := d.Encode()
	require.NoError(t, err)
	back, err := DecodeDocument(out)
	require.NoError(t, err)
	v, ok, err := back.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Raw, v.Format)
	require.Equal(t, "v1+v2", string(v.Raw))
}

func TestDocumentSwitchingEncodingRewrites(t *testing.T) {
	d, err := DecodeDocument(nil)
	require.NoError(t, err)
	require.NoError(t, d.Insert(Structured, "abc", []byte("a=1")))
	require.NoError(t, d.Append(Raw, "abc", []byte("tail")))
	v, _, err := d.Get("abc")
	require.NoError(t, err)
	require.Equal(t, Raw, v.Format)
	require.Equal(t, "tail", string(v.Raw))

	require.NoError(t, d.Append(Structured, "abc", []byte("b=2")))
	v, _, err = d.Get("abc")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"b": "2"}, v.Fields)
}

func TestDocumentUnsupportedShape(t *testing.T) {
	d, err := DecodeDocument([]byte(`{"abc": 42}`))
	require.NoError(t, err)
	_, _, err = d.Get("abc")
	require.ErrorIs(t, err, apperr.ErrCorrupt)
}

func TestDocumentDelete(t *testing.T) {
	d, err := DecodeDocument([]byte(`{"abc": "x"}`))
	require.NoError(t, err)
	require.True(t, d.Delete("abc"))
	require.False(t, d.Delete("abc"))
}
