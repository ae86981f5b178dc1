package cms

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const imageCDN = "https://cdn.sanity.io/images"

// ImageBuilder derives CDN transformation URLs from image asset references.
// It never makes a network call.
type ImageBuilder struct {
	projectID string
	dataset   string
}

func NewImageBuilder(projectID, dataset string) *ImageBuilder {
	return &ImageBuilder{projectID: projectID, dataset: dataset}
}

// ImageURL is an immutable builder step; each option returns a copy.
type ImageURL struct {
	b       *ImageBuilder
	ref     string
	width   int
	height  int
	fit     string
	format  string
	quality int
}

// Image starts a URL for an asset reference such as
// "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg".
func (b *ImageBuilder) Image(ref string) ImageURL {
	return ImageURL{b: b, ref: ref}
}

func (u ImageURL) Width(w int) ImageURL     { u.width = w; return u }
func (u ImageURL) Height(h int) ImageURL    { u.height = h; return u }
func (u ImageURL) Fit(mode string) ImageURL { u.fit = mode; return u }
func (u ImageURL) Format(f string) ImageURL { u.format = f; return u }
func (u ImageURL) Quality(q int) ImageURL   { u.quality = q; return u }

// Crop is shorthand for a fixed-size cropped image.
func (u ImageURL) Crop(w, h int) ImageURL {
	return u.Width(w).Height(h).Fit("crop")
}

// URL returns the CDN URL, or "" if the reference cannot be parsed.
func (u ImageURL) URL() string {
	asset, err := parseImageRef(u.ref)
	if err != nil || u.b == nil || u.b.projectID == "" {
		return ""
	}

	base := fmt.Sprintf("%s/%s/%s/%s-%dx%d.%s", imageCDN, u.b.projectID, u.b.dataset,
		asset.id, asset.width, asset.height, asset.ext)

	q := url.Values{}
	if u.width > 0 {
		q.Set("w", strconv.Itoa(u.width))
	}
	if u.height > 0 {
		q.Set("h", strconv.Itoa(u.height))
	}
	if u.fit != "" {
		q.Set("fit", u.fit)
	}
	if u.format != "" {
		q.Set("fm", u.format)
	}
	if u.quality > 0 {
		q.Set("q", strconv.Itoa(u.quality))
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func (u ImageURL) String() string { return u.URL() }

type imageAsset struct {
	id     string
	width  int
	height int
	ext    string
}

func parseImageRef(ref string) (imageAsset, error) {
	rest, ok := strings.CutPrefix(ref, "image-")
	if !ok {
		return imageAsset{}, fmt.Errorf("not an image reference: %q", ref)
	}
	parts := strings.Split(rest, "-")
	if len(parts) < 3 {
		return imageAsset{}, fmt.Errorf("malformed image reference: %q", ref)
	}

	ext := parts[len(parts)-1]
	w, h, ok := strings.Cut(parts[len(parts)-2], "x")
	if !ok {
		return imageAsset{}, fmt.Errorf("malformed image dimensions: %q", ref)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return imageAsset{}, fmt.Errorf("malformed image width: %q", ref)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return imageAsset{}, fmt.Errorf("malformed image height: %q", ref)
	}

	id := strings.Join(parts[:len(parts)-2], "-")
	if id == "" || ext == "" {
		return imageAsset{}, fmt.Errorf("malformed image reference: %q", ref)
	}
	return imageAsset{id: id, width: width, height: height, ext: ext}, nil
}
