package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trellisdata/trellis/internal/query"
)

func TestRequestParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/rows?title=heat&order-title=asc&trash=true&title=ignored", nil)

	params := requestParams(r)
	assert.Equal(t, query.Request{
		"title":       "heat",
		"order-title": "asc",
		"trash":       "true",
	}, params)
}

func TestLimitParam(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected int
	}{
		{"default when absent", "/rows", defaultPageSize},
		{"explicit value", "/rows?limit=10", 10},
		{"capped at maximum", "/rows?limit=9999", maxPageSize},
		{"zero falls back to default", "/rows?limit=0", defaultPageSize},
		{"negative falls back to default", "/rows?limit=-5", defaultPageSize},
		{"garbage falls back to default", "/rows?limit=lots", defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			assert.Equal(t, tt.expected, limitParam(r))
		})
	}
}

func TestOffsetParam(t *testing.T) {
	assert.Equal(t, 0, offsetParam(httptest.NewRequest("GET", "/rows", nil)))
	assert.Equal(t, 40, offsetParam(httptest.NewRequest("GET", "/rows?offset=40", nil)))
	assert.Equal(t, 0, offsetParam(httptest.NewRequest("GET", "/rows?offset=-1", nil)))
}
