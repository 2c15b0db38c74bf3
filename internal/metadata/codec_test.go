package metadata

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novatok-explorer/internal/domain"
)

func fixedCodec() *Codec {
	return &Codec{
		Platform: DefaultPlatform,
		Now:      func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("X", -5*3600)) },
	}
}

func TestEncode_Prefix(t *testing.T) {
	uri, err := fixedCodec().Encode(Fields{Name: "a", Image: "https://x/y.png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, Base64JSONPrefix))
	assert.Equal(t, KindBase64JSON, Classify(uri))
}

func TestEncode_Defaults(t *testing.T) {
	c := fixedCodec()
	uri, err := c.Encode(Fields{Image: "https://x/y.png"})
	require.NoError(t, err)

	m := c.Decode(uri)
	require.NotNil(t, m)
	assert.Equal(t, DefaultName, m.Name)
	assert.Equal(t, DefaultDescription, m.Description)
	assert.Equal(t, []domain.Attribute{
		{TraitType: "Platform", Value: "NovaTok Explorer"},
		{TraitType: "Created", Value: "2024-03-10"}, // UTC date
	}, m.Attributes)
}

func TestEncode_FieldOrder(t *testing.T) {
	uri, err := fixedCodec().Encode(Fields{Name: "n", Description: "d", Image: "i"})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, Base64JSONPrefix))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), `{"name":"n","description":"d","image":"i","attributes":[`), string(raw))
}

func TestRoundTrip(t *testing.T) {
	c := fixedCodec()
	tests := []Fields{
		{Name: "Nova #1", Description: "demo", Image: "https://x/y.png",
			Attributes: []domain.Attribute{{TraitType: "Mood", Value: "calm"}}},
		{Name: "Rocket 🚀", Description: "multi-byte ✨ naïve 日本語", Image: "ipfs://bafy/1.png",
			Attributes: []domain.Attribute{{TraitType: "Emoji", Value: "🌌"}}},
		{Name: `quotes "and" <html> & stuff`, Description: "line\nbreak", Image: "",
			Attributes: []domain.Attribute{{TraitType: "a", Value: "1"}, {TraitType: "b", Value: "2"}}},
	}

	for _, f := range tests {
		t.Run(f.Name, func(t *testing.T) {
			uri, err := c.Encode(f)
			require.NoError(t, err)

			m := c.Decode(uri)
			require.NotNil(t, m)
			assert.Equal(t, f.Name, m.Name)
			assert.Equal(t, f.Description, m.Description)
			assert.Equal(t, f.Image, m.Image)
			assert.Equal(t, f.Attributes, m.Attributes)
		})
	}
}

func TestRoundTrip_ScenarioDefaultsAttributes(t *testing.T) {
	c := fixedCodec()
	uri, err := c.Encode(Fields{Name: "Nova #1", Description: "demo", Image: "https://x/y.png"})
	require.NoError(t, err)

	m := c.Decode(uri)
	require.NotNil(t, m)
	assert.Equal(t, "Nova #1", m.Name)
	assert.Equal(t, "demo", m.Description)
	assert.Equal(t, "https://x/y.png", m.Image)
	assert.Len(t, m.Attributes, 2)
	platform, ok := m.Attr("Platform")
	assert.True(t, ok)
	assert.Equal(t, DefaultPlatform, platform)
}

func TestBuild_DoesNotAliasAttributes(t *testing.T) {
	attrs := []domain.Attribute{{TraitType: "a", Value: "1"}}
	m := fixedCodec().Build(Fields{Attributes: attrs})
	m.Attributes[0].Value = "changed"
	assert.Equal(t, "1", attrs[0].Value)
}

func TestDecode_PlainJSON(t *testing.T) {
	doc := `{"name":"Plain 🚀","description":"a+b = c","image":"https://x/y.png","attributes":[{"trait_type":"n","value":3}]}`
	uri := PlainJSONPrefix + url.PathEscape(doc)

	m := Decode(uri)
	require.NotNil(t, m)
	assert.Equal(t, "Plain 🚀", m.Name)
	assert.Equal(t, "a+b = c", m.Description)
	assert.Equal(t, "3", m.Attributes[0].Value)
}

func TestDecode_PlainJSONKeepsPlus(t *testing.T) {
	m := Decode(PlainJSONPrefix + `{"name":"a+b","description":"","image":""}`)
	require.NotNil(t, m)
	assert.Equal(t, "a+b", m.Name)
}

func TestDecode_ReturnsNil(t *testing.T) {
	valid, err := fixedCodec().Encode(Fields{Name: "x"})
	require.NoError(t, err)

	tests := map[string]string{
		"empty":              "",
		"https":              "https://example.com/meta/1.json",
		"ipfs":               "ipfs://bafybeigdyrzt/1.json",
		"other data uri":     "data:text/plain;base64,aGVsbG8=",
		"truncated base64":   valid[:len(valid)-3],
		"invalid base64":     Base64JSONPrefix + "!!!not-base64!!!",
		"base64 of non json": Base64JSONPrefix + base64.StdEncoding.EncodeToString([]byte("hello world")),
		"base64 of null":     Base64JSONPrefix + base64.StdEncoding.EncodeToString([]byte("null")),
		"base64 of array":    Base64JSONPrefix + base64.StdEncoding.EncodeToString([]byte(`[1,2]`)),
		"truncated json":     Base64JSONPrefix + base64.StdEncoding.EncodeToString([]byte(`{"name":"x"`)),
		"bad percent":        PlainJSONPrefix + "%7B%ZZ",
		"plain invalid json": PlainJSONPrefix + "{name:x}",
		"nested attr value":  PlainJSONPrefix + `{"attributes":[{"trait_type":"t","value":{"a":1}}]}`,
	}

	for name, uri := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, Decode(uri))
			})
		})
	}
}

func TestDecode_UnpaddedBase64(t *testing.T) {
	payload := []byte(`{"name":"Nova #1","description":"no padding"}`)
	encoded := base64.RawStdEncoding.EncodeToString(payload)
	require.NotEqual(t, 0, len(payload)%3, "payload must need padding")

	m := Decode(Base64JSONPrefix + encoded)
	require.NotNil(t, m)
	assert.Equal(t, "Nova #1", m.Name)
	assert.Equal(t, "no padding", m.Description)
}

func TestParse_Errors(t *testing.T) {
	c := NewCodec()

	_, err := c.Parse("")
	assert.ErrorIs(t, err, ErrEmptyURI)

	_, err = c.Parse("https://example.com/1.json")
	assert.ErrorIs(t, err, ErrExternalURI)

	_, err = c.Parse(Base64JSONPrefix + "***")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindEmpty, Classify(""))
	assert.Equal(t, KindBase64JSON, Classify(Base64JSONPrefix+"e30="))
	assert.Equal(t, KindPlainJSON, Classify(PlainJSONPrefix+"{}"))
	assert.Equal(t, KindExternal, Classify("https://example.com"))
	assert.Equal(t, KindExternal, Classify("DATA:application/json;base64,e30="))
	assert.True(t, KindPlainJSON.Embedded())
	assert.False(t, KindExternal.Embedded())
}
