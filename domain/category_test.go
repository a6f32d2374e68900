package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextDisplayOrder(t *testing.T) {
	highest := 7
	assert.Equal(t, 0, NextDisplayOrder(nil))
	assert.Equal(t, 8, NextDisplayOrder(&highest))
}

func TestIsCategorySlug(t *testing.T) {
	assert.True(t, IsCategorySlug("lowCarb"))
	assert.False(t, IsCategorySlug("lowcarb"))
	assert.False(t, IsCategorySlug(""))
}

func TestCategory_Summary(t *testing.T) {
	color := "#22c55e"
	c := Category{ID: "c1", Name: "Vegan", Slug: SlugVegan, Color: &color, IsActive: true, DisplayOrder: 3}

	assert.Equal(t, CategorySummary{ID: "c1", Name: "Vegan", Slug: SlugVegan, Color: &color, IsActive: true, DisplayOrder: 3}, c.Summary())
}
