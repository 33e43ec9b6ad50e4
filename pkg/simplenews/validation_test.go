package simplenews_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews"
)

func strPtr(s string) *string { return &s }

func TestValidateContentFields(t *testing.T) {
	tests := []struct {
		name       string
		fields     simplenews.ContentFields
		wantFields []string
	}{
		{
			name:   "valid",
			fields: simplenews.ContentFields{Title: "Budget 2024", Description: "Parliament votes", Category: simplenews.CategoryPolitics},
		},
		{
			name:       "blank title",
			fields:     simplenews.ContentFields{Title: "   ", Description: "d", Category: simplenews.CategorySports},
			wantFields: []string{"title"},
		},
		{
			name:       "missing everything",
			fields:     simplenews.ContentFields{},
			wantFields: []string{"title", "description", "category"},
		},
		{
			name:       "unknown category",
			fields:     simplenews.ContentFields{Title: "t", Description: "d", Category: "Weather"},
			wantFields: []string{"category"},
		},
		{
			name:       "filter sentinel is not storable",
			fields:     simplenews.ContentFields{Title: "t", Description: "d", Category: simplenews.CategoryAll},
			wantFields: []string{"category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := simplenews.ValidateContentFields(tt.fields)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, simplenews.ErrValidation))

			var verr *simplenews.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, simplenews.KindContentItem, verr.Kind)
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestValidateContentFields_Normalizes(t *testing.T) {
	out, err := simplenews.ValidateContentFields(simplenews.ContentFields{
		Title:       "  Market Rally ",
		Description: " Stocks up ",
		Category:    " Business",
		MediaRef:    strPtr("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Market Rally", out.Title)
	assert.Equal(t, "Stocks up", out.Description)
	assert.Equal(t, simplenews.CategoryBusiness, out.Category)
	assert.Nil(t, out.MediaRef)
}

func TestValidateContentPatch(t *testing.T) {
	_, err := simplenews.ValidateContentPatch(simplenews.ContentPatch{})
	assert.NoError(t, err)

	_, err = simplenews.ValidateContentPatch(simplenews.ContentPatch{Title: strPtr(" ")})
	assert.ErrorIs(t, err, simplenews.ErrValidation)

	bad := simplenews.Category("Weather")
	_, err = simplenews.ValidateContentPatch(simplenews.ContentPatch{Category: &bad})
	assert.ErrorIs(t, err, simplenews.ErrValidation)

	neg := int64(-1)
	_, err = simplenews.ValidateContentPatch(simplenews.ContentPatch{LikeCount: &neg})
	assert.ErrorIs(t, err, simplenews.ErrValidation)

	out, err := simplenews.ValidateContentPatch(simplenews.ContentPatch{Title: strPtr(" New ")})
	require.NoError(t, err)
	assert.Equal(t, "New", *out.Title)
}

func TestValidateSliderFields(t *testing.T) {
	out, err := simplenews.ValidateSliderFields(simplenews.SliderFields{MediaRef: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.Equal(t, simplenews.MediaKindImage, out.MediaKind)

	_, err = simplenews.ValidateSliderFields(simplenews.SliderFields{MediaRef: " "})
	assert.ErrorIs(t, err, simplenews.ErrValidation)

	_, err = simplenews.ValidateSliderFields(simplenews.SliderFields{MediaRef: "x", MediaKind: "audio"})
	assert.ErrorIs(t, err, simplenews.ErrValidation)

	_, err = simplenews.ValidateSliderPatch(simplenews.SliderPatch{MediaRef: strPtr("")})
	assert.ErrorIs(t, err, simplenews.ErrValidation)
}

func TestKindFromContentType(t *testing.T) {
	tests := map[string]simplenews.MediaKind{
		"video/mp4":       simplenews.MediaKindVideo,
		"VIDEO/webm":      simplenews.MediaKindVideo,
		"image/png":       simplenews.MediaKindImage,
		"application/pdf": simplenews.MediaKindImage,
		"":                simplenews.MediaKindImage,
	}
	for ct, want := range tests {
		assert.Equal(t, want, simplenews.KindFromContentType(ct), ct)
	}
}
