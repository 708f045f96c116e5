package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesDomain(t *testing.T) {
	tests := []struct {
		cookie, target string
		want           bool
	}{
		{".example.com", "example.com", true},
		{"example.com", "www.example.com", true},
		{".example.com", "a.b.example.com", true},
		{"example.com", "badexample.com", false},
		{"", "example.com", false},
		{"example.com", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesDomain(tt.cookie, tt.target), "%s vs %s", tt.cookie, tt.target)
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(" Firefox ")
	require.NoError(t, err)
	assert.Equal(t, ProfileFirefox, p)

	p, err = ParseProfile("none")
	require.NoError(t, err)
	assert.Equal(t, ProfileNone, p)

	_, err = ParseProfile("netscape")
	assert.Error(t, err)
}

func TestCookies_NoneProfile(t *testing.T) {
	cookies, err := NewCookieExtractor(ProfileNone).Cookies(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, cookies)
}
