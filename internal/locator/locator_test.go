package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "docs edit url",
			raw:    "https://docs.google.com/document/d/1QsCOdhuV0N-gbujvloZFBKmMKlPRpHc4LNRY8qCMb18/edit?usp=sharing",
			want:   "1QsCOdhuV0N-gbujvloZFBKmMKlPRpHc4LNRY8qCMb18",
			wantOK: true,
		},
		{
			name:   "drive file view url",
			raw:    "https://drive.google.com/file/d/abc_DEF-123/view",
			want:   "abc_DEF-123",
			wantOK: true,
		},
		{
			name:   "folder url",
			raw:    "https://drive.google.com/drive/folders/0B7xyzFolderId",
			want:   "0B7xyzFolderId",
			wantOK: true,
		},
		{
			name:   "bare id",
			raw:    "1hN5A0vZukBqMln85fAT6PkU9lKXY8qcA",
			want:   "1hN5A0vZukBqMln85fAT6PkU9lKXY8qcA",
			wantOK: true,
		},
		{
			name:   "bare id with whitespace",
			raw:    "  1hN5A0vZukBqMln85fAT6PkU9lKXY8qcA \n",
			want:   "1hN5A0vZukBqMln85fAT6PkU9lKXY8qcA",
			wantOK: true,
		},
		{name: "short bare id", raw: "abc123", wantOK: false},
		{name: "exactly twenty chars", raw: "12345678901234567890", wantOK: false},
		{name: "unrelated url", raw: "https://example.com/some/path/file.pdf", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FileID(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlausible(t *testing.T) {
	assert.False(t, Plausible(""))
	assert.False(t, Plausible("n/a"))
	assert.False(t, Plausible("  -----  "))
	assert.True(t, Plausible("https://docs.google.com/document/d/x"))
}
