// Package share encodes a build's active picks into a link that can be
// pasted elsewhere and decoded back.
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hyperengineering/rigbuild/internal/types"
)

// QueryParam is the builder URL parameter carrying the encoded build.
const QueryParam = "build"

// ErrInvalidHash indicates a share hash could not be decoded.
var ErrInvalidHash = errors.New("invalid share hash")

// Encode serializes the active map as URL-safe base64 JSON.
func Encode(active map[types.Category]string) (string, error) {
	clean := make(map[types.Category]string, len(active))
	for c, id := range active {
		if c.Valid() && id != "" {
			clean[c] = id
		}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("marshal active map: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a share hash. Unknown categories and empty ids are dropped;
// missing categories are simply absent. Both URL-safe and standard base64,
// padded or not, are accepted. Spaces are read as '+', which is what query
// decoding leaves behind for unescaped standard base64.
func Decode(hash string) (map[types.Category]string, error) {
	hash = strings.TrimSpace(strings.ReplaceAll(hash, " ", "+"))
	if hash == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHash)
	}

	data, err := decodeBase64(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	out := make(map[types.Category]string, len(raw))
	for k, v := range raw {
		c := types.Category(k)
		id, ok := v.(string)
		if !c.Valid() || !ok || id == "" {
			continue
		}
		out[c] = id
	}
	return out, nil
}

// Link returns the builder URL for active under baseURL.
func Link(baseURL string, active map[types.Category]string) (string, error) {
	hash, err := Encode(active)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/builder")
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, hash)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FromLink extracts and decodes the build parameter of a builder URL.
func FromLink(link string) (map[types.Category]string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return Decode(u.Query().Get(QueryParam))
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
