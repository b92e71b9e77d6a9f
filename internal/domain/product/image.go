package product

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/utafrali/commercecore/internal/domain/identity"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Limits on product media and metadata.
const (
	MaxImages             = 50
	MaxTags               = 50
	MaxTagLength          = 50
	MaxSEOTitleLength     = 70
	MaxSEODescriptionLen  = 320
	MaxTitleLength        = 255
	MaxVariantsPerProduct = 100
)

// ImageInput describes an image to attach. A nil Position appends it.
type ImageInput struct {
	URL        string
	AltText    string
	Position   *int
	VariantIDs []identity.ProductVariantID
}

// Image is a product picture. Position is zero-based and contiguous.
type Image struct {
	ID         identity.ProductImageID     `json:"id"`
	URL        string                      `json:"url"`
	AltText    string                      `json:"alt_text,omitempty"`
	Position   int                         `json:"position"`
	VariantIDs []identity.ProductVariantID `json:"variant_ids,omitempty"`
}

func validateImageInput(in ImageInput) error {
	var errs apperrors.ValidationErrorCollection
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs.Add("url", in.URL, "must be an absolute http(s) URL")
	}
	if len(in.AltText) > MaxTitleLength {
		errs.Add("alt_text", len(in.AltText), fmt.Sprintf("must not exceed %d characters", MaxTitleLength))
	}
	if in.Position != nil && *in.Position < 0 {
		errs.Add("position", *in.Position, "must not be negative")
	}
	return errs.Err()
}

// SEO is optional search metadata.
type SEO struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Validate checks the SEO field lengths.
func (s SEO) Validate() error {
	var errs apperrors.ValidationErrorCollection
	if len(s.Title) > MaxSEOTitleLength {
		errs.Add("seo.title", len(s.Title), fmt.Sprintf("must not exceed %d characters", MaxSEOTitleLength))
	}
	if len(s.Description) > MaxSEODescriptionLen {
		errs.Add("seo.description", len(s.Description), fmt.Sprintf("must not exceed %d characters", MaxSEODescriptionLen))
	}
	return errs.Err()
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
