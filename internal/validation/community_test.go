package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple", "Go Nuts", "go-nuts"},
		{"Trims And Lowercases", "  Rust Lovers  ", "rust-lovers"},
		{"Underscores", "board_game_club", "board-game-club"},
		{"Strips Symbols", "C++ & C#!", "c-c"},
		{"Collapses Dashes", "a -- b", "a-b"},
		{"Trims Dashes", "--edge--", "edge"},
		{"Non ASCII Dropped", "Café Society", "caf-society"},
		{"Truncates", strings.Repeat("a", 60), strings.Repeat("a", 48)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestValidateCommunitySlug(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"Valid", "go-nuts", false},
		{"Max Length", strings.Repeat("a", 48), false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("a", 49), true},
		{"Uppercase", "GoNuts", true},
		{"Leading Dash", "-go", true},
		{"Trailing Dash", "go-", true},
		{"Reserved", "admin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommunitySlug(tt.slug)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("u", 33), true},
		{"Illegal Chars", "user@123", true},
		{"Dash", "user-name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePostContent(t *testing.T) {
	t.Parallel()
	assert.Error(t, ValidatePostContent(""))
	assert.NoError(t, ValidatePostContent("x"))
	assert.NoError(t, ValidatePostContent(strings.Repeat("é", MaxPostContent)))
	assert.Error(t, ValidatePostContent(strings.Repeat("x", MaxPostContent+1)))
}

func TestValidateAvatarURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateAvatarURL(""))
	assert.NoError(t, ValidateAvatarURL("https://cdn.example.com/a.png"))
	assert.Error(t, ValidateAvatarURL("javascript:alert(1)"))
	assert.Error(t, ValidateAvatarURL("/relative.png"))
}

func TestValidateCommunityName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateCommunityName("Go Nuts"))
	assert.Error(t, ValidateCommunityName("Go"))
	assert.Error(t, ValidateCommunityName(strings.Repeat("n", MaxCommunityName+1)))
}

func TestValidateUserDescription(t *testing.T) {
	assert.NoError(t, ValidateUserDescription(""))
	assert.NoError(t, ValidateUserDescription(strings.Repeat("é", MaxUserDescription)))
	assert.Error(t, ValidateUserDescription(strings.Repeat("a", MaxUserDescription+1)))
}
