package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	for perPage := 1; perPage <= 7; perPage++ {
		for total := 0; total <= 30; total++ {
			for page := -2; page <= 8; page++ {
				meta := NewPageMeta(page, perPage, total)

				wantPages := (total + perPage - 1) / perPage
				assert.Equal(t, wantPages, meta.Pages)
				assert.Equal(t, 1, meta.First)
				assert.Equal(t, wantPages, meta.Last)
				if wantPages == 0 {
					assert.Equal(t, 1, meta.Page)
				} else {
					assert.GreaterOrEqual(t, meta.Page, 1)
					assert.LessOrEqual(t, meta.Page, wantPages)
				}
			}
		}
	}
}

func TestPageMeta_Offset(t *testing.T) {
	assert.Equal(t, 0, NewPageMeta(1, 10, 95).Offset())
	assert.Equal(t, 90, NewPageMeta(12, 10, 95).Offset())
}

func TestEmptyPage(t *testing.T) {
	page := EmptyPage[Product](10)

	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, PageMeta{Page: 1, PerPage: 10, First: 1}, page.Meta)
}
