package cms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageURL(t *testing.T) {
	b := NewImageBuilder("abc123", "production")
	ref := "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg"

	tests := []struct {
		name string
		url  ImageURL
		want string
	}{
		{
			name: "plain",
			url:  b.Image(ref),
			want: "https://cdn.sanity.io/images/abc123/production/Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000.jpg",
		},
		{
			name: "poster crop",
			url:  b.Image(ref).Crop(400, 600).Format("webp"),
			want: "https://cdn.sanity.io/images/abc123/production/Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000.jpg?fit=crop&fm=webp&h=600&w=400",
		},
		{
			name: "quality",
			url:  b.Image(ref).Width(800).Quality(75),
			want: "https://cdn.sanity.io/images/abc123/production/Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000.jpg?q=75&w=800",
		},
		{
			name: "hyphenated asset id",
			url:  b.Image("image-ab-cd-10x20-png"),
			want: "https://cdn.sanity.io/images/abc123/production/ab-cd-10x20.png",
		},
		{name: "not an image", url: b.Image("file-abc-pdf"), want: ""},
		{name: "bad dimensions", url: b.Image("image-abc-wide-jpg"), want: ""},
		{name: "empty", url: b.Image(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.url.URL())
		})
	}
}

func TestImageURL_OptionsDoNotShare(t *testing.T) {
	b := NewImageBuilder("abc123", "production")
	base := b.Image("image-x-10x10-jpg")
	_ = base.Width(100)
	assert.Equal(t, "https://cdn.sanity.io/images/abc123/production/x-10x10.jpg", base.URL())
}

func TestImageURL_NoProject(t *testing.T) {
	b := NewImageBuilder("", "production")
	assert.Empty(t, b.Image("image-x-10x10-jpg").URL())
}
