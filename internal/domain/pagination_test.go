package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequest_Limit(t *testing.T) {
	tests := []struct {
		max  int
		want int
	}{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{10, 10},
		{MaxPageSize + 1, MaxPageSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageRequest{MaxResults: tt.max}.Limit(), "max=%d", tt.max)
	}
}

func TestPageToken_RoundTrip(t *testing.T) {
	assert.Empty(t, EncodePageToken(0))

	tok := EncodePageToken(40)
	p := PageRequest{PageToken: tok}
	require.NoError(t, p.Validate())
	assert.Equal(t, 40, p.Offset())
	assert.NotContains(t, tok, "=")
}

func TestPageToken_Malformed(t *testing.T) {
	for _, tok := range []string{"!!", "bm9wZQ", EncodePageToken(1) + "x"} {
		p := PageRequest{PageToken: tok}
		err := p.Validate()
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "token %q", tok)
		assert.Equal(t, 0, p.Offset())
	}
}

func TestNextPageToken(t *testing.T) {
	assert.Equal(t, EncodePageToken(20), NextPageToken(10, 10, 25))
	assert.Empty(t, NextPageToken(20, 10, 25))
	assert.Empty(t, NextPageToken(0, 10, 10))
}
