// Package validate holds the per-platform content validation matrix.
//
// Validation is pure and runs before any network call, so malformed jobs
// fail fast without consuming rate-limit budget.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"postpilot/internal/post"
)

// fieldRule describes one required content key.
type fieldRule struct {
	key string

	// list marks the field as a list of strings with an arity bound.
	list   bool
	minLen int
	maxLen int
}

// matrix maps (platform, content type) to the required content keys.
// Unknown pairs are always invalid.
var matrix = map[post.Platform]map[post.ContentType][]fieldRule{
	post.PlatformInstagram: {
		post.TypePhoto:    {{key: "image_path"}},
		post.TypeCarousel: {{key: "image_paths", list: true, minLen: 2, maxLen: 10}},
		post.TypeVideo:    {{key: "video_path"}},
		post.TypeReels:    {{key: "video_path"}},
	},
	post.PlatformFacebook: {
		post.TypeText:  {{key: "message"}},
		post.TypePhoto: {{key: "image_path"}},
	},
	post.PlatformYouTube: {
		post.TypeVideo: {{key: "video_path"}, {key: "title"}},
	},
	post.PlatformLinkedIn: {
		post.TypeText:  {{key: "text"}},
		post.TypeImage: {{key: "text"}, {key: "image_path"}},
	},
	post.PlatformTelegram: {
		post.TypeText:  {{key: "text"}},
		post.TypePhoto: {{key: "image_path"}},
	},
	post.PlatformWebhook: {
		post.TypeText: {{key: "text"}},
	},
}

// Error reports why a content payload is invalid for its (platform, type).
type Error struct {
	Platform    post.Platform
	ContentType post.ContentType

	// Unsupported is set when the (platform, type) pair has no matrix entry.
	Unsupported bool

	// Missing lists content keys that are absent, empty, or (for list
	// fields) outside their arity bounds.
	Missing []string
}

func (e *Error) Error() string {
	if e.Unsupported {
		return fmt.Sprintf("platform %s does not support %s posts", e.Platform, e.ContentType)
	}
	return fmt.Sprintf("%s/%s: missing or invalid fields: %s",
		e.Platform, e.ContentType, strings.Join(e.Missing, ", "))
}

// Validate checks content against the matrix. It returns nil when the
// payload has every required field, or an *Error describing what is wrong.
func Validate(platform post.Platform, contentType post.ContentType, content post.Content) error {
	types, ok := matrix[platform]
	if !ok {
		return &Error{Platform: platform, ContentType: contentType, Unsupported: true}
	}
	rules, ok := types[contentType]
	if !ok {
		return &Error{Platform: platform, ContentType: contentType, Unsupported: true}
	}

	var missing []string
	for _, r := range rules {
		if r.list {
			vals := content.List(r.key)
			n := len(vals)
			if n == 0 || n < r.minLen || (r.maxLen > 0 && n > r.maxLen) {
				missing = append(missing, r.key)
			}
			continue
		}
		if content.Text(r.key) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &Error{Platform: platform, ContentType: contentType, Missing: missing}
	}
	return nil
}

// Supported reports whether the (platform, type) pair has a matrix entry.
func Supported(platform post.Platform, contentType post.ContentType) bool {
	types, ok := matrix[platform]
	if !ok {
		return false
	}
	_, ok = types[contentType]
	return ok
}
