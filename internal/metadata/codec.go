// Package metadata encodes NFT metadata into self-describing token URIs and
// decodes them back.
//
// Two embedded forms are understood:
//
//	data:application/json;base64,<standard base64 of UTF-8 JSON>
//	data:application/json,<percent-encoded JSON>
//
// Anything else is an external URI that has to be fetched (see Resolver).
package metadata

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"novatok-explorer/internal/domain"
)

// URI prefixes for embedded metadata.
const (
	Base64JSONPrefix = "data:application/json;base64,"
	PlainJSONPrefix  = "data:application/json,"
)

// Defaults applied by Encode.
const (
	DefaultName        = "Untitled NFT"
	DefaultDescription = "Created with NovaTok Explorer"
	DefaultPlatform    = "NovaTok Explorer"
)

// Parse errors.
var (
	ErrEmptyURI    = errors.New("empty token uri")
	ErrExternalURI = errors.New("token uri is not an embedded data uri")
	ErrMalformed   = errors.New("malformed token uri payload")
)

// Kind classifies a token URI by prefix.
type Kind int

const (
	KindEmpty Kind = iota
	KindBase64JSON
	KindPlainJSON
	KindExternal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBase64JSON:
		return "base64-json"
	case KindPlainJSON:
		return "plain-json"
	case KindExternal:
		return "external"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Embedded reports whether the URI can be decoded without network access.
func (k Kind) Embedded() bool {
	return k == KindBase64JSON || k == KindPlainJSON
}

// Classify returns the Kind of uri.
func Classify(uri string) Kind {
	switch {
	case uri == "":
		return KindEmpty
	case strings.HasPrefix(uri, Base64JSONPrefix):
		return KindBase64JSON
	case strings.HasPrefix(uri, PlainJSONPrefix):
		return KindPlainJSON
	default:
		return KindExternal
	}
}

// Fields are the inputs to Encode. Empty Name and Description are defaulted.
type Fields struct {
	Name        string
	Description string
	Image       string
	Attributes  []domain.Attribute
}

// Codec encodes and decodes token URIs.
type Codec struct {
	// Platform is the value of the default "Platform" attribute.
	Platform string
	// Now is used for the default "Created" attribute.
	Now func() time.Time
}

// NewCodec creates a codec with the default platform name and wall clock.
func NewCodec() *Codec {
	return &Codec{
		Platform: DefaultPlatform,
		Now:      time.Now,
	}
}

var defaultCodec = NewCodec()

// Encode builds a base64 data URI using the default codec.
func Encode(f Fields) (string, error) {
	return defaultCodec.Encode(f)
}

// Decode parses a token URI using the default codec. It returns nil when the
// URI is external or malformed.
func Decode(uri string) *domain.TokenMetadata {
	return defaultCodec.Decode(uri)
}

// Build fills defaults and returns the metadata document Encode would serialize.
func (c *Codec) Build(f Fields) domain.TokenMetadata {
	m := domain.TokenMetadata{
		Name:        f.Name,
		Description: f.Description,
		Image:       f.Image,
		Attributes:  f.Attributes,
	}
	if m.Name == "" {
		m.Name = DefaultName
	}
	if m.Description == "" {
		m.Description = DefaultDescription
	}
	if len(m.Attributes) == 0 {
		m.Attributes = c.defaultAttributes()
	} else {
		m.Attributes = append([]domain.Attribute(nil), m.Attributes...)
	}
	return m
}

// Encode serializes f to JSON and wraps it as a base64 data URI.
// Base64 runs over the UTF-8 bytes, so multi-byte characters survive.
func (c *Codec) Encode(f Fields) (string, error) {
	return c.EncodeMetadata(c.Build(f))
}

// EncodeMetadata wraps an already built document as a base64 data URI.
// No defaults are applied.
func (c *Codec) EncodeMetadata(m domain.TokenMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return Base64JSONPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// Decode is Parse with errors collapsed to nil.
func (c *Codec) Decode(uri string) *domain.TokenMetadata {
	m, err := c.Parse(uri)
	if err != nil {
		return nil
	}
	return m
}

// Parse decodes an embedded token URI. It returns ErrEmptyURI, ErrExternalURI
// or an error wrapping ErrMalformed.
func (c *Codec) Parse(uri string) (*domain.TokenMetadata, error) {
	var payload []byte

	switch Classify(uri) {
	case KindEmpty:
		return nil, ErrEmptyURI
	case KindExternal:
		return nil, ErrExternalURI
	case KindBase64JSON:
		data, err := decodeBase64(strings.TrimPrefix(uri, Base64JSONPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
		}
		payload = data
	case KindPlainJSON:
		// PathUnescape keeps '+' literal, like decodeURIComponent.
		s, err := url.PathUnescape(strings.TrimPrefix(uri, PlainJSONPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: percent-encoding: %v", ErrMalformed, err)
		}
		payload = []byte(s)
	}

	if !strings.HasPrefix(strings.TrimSpace(string(payload)), "{") {
		return nil, fmt.Errorf("%w: json payload is not an object", ErrMalformed)
	}

	var m domain.TokenMetadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}
	return &m, nil
}

// decodeBase64 accepts standard base64 with or without padding, like atob.
func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rerr := base64.RawStdEncoding.DecodeString(s); rerr == nil {
		return raw, nil
	}
	return nil, err
}

func (c *Codec) defaultAttributes() []domain.Attribute {
	platform := c.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return []domain.Attribute{
		{TraitType: "Platform", Value: platform},
		{TraitType: "Created", Value: now().UTC().Format(time.DateOnly)},
	}
}
