package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanizeParam(t *testing.T) {
	tests := map[string]string{
		"id":          "ID",
		"postId":      "post ID",
		"communityId": "community ID",
		"slug":        "slug",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, humanizeParam(in))
		})
	}
}
