package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryTable_Classify(t *testing.T) {
	table := DefaultCategoryTable()

	tests := []struct {
		ext      string
		expected string
	}{
		{".png", "Images"},
		{".JPG", "Images"},
		{".pdf", "Documents"},
		{".mp4", "Videos"},
		{".flac", "Audio"},
		{".7z", "Archives"},
		{".css", "Source/Text"},
		{"", CategoryUnknown},
		{".xyz123", CategoryOther},
		{".dat", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.expected, table.Classify(tt.ext))
		})
	}
}

func TestCategoryTable_FirstMatchWins(t *testing.T) {
	table, err := NewCategoryTable([]CategoryConfig{
		{Name: "Pictures", Extensions: []string{".svg", ".png"}},
		{Name: "Code", Extensions: []string{"SVG", ".js"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Pictures", table.Classify(".svg"))
	assert.Equal(t, "Code", table.Classify(".js"))
}

func TestCategoryTable_Matches(t *testing.T) {
	table := DefaultCategoryTable()

	assert.True(t, table.Matches("Images", ".png"))
	assert.False(t, table.Matches("Images", ".pdf"))
	assert.True(t, table.Matches(AllFileTypes, ".anything"))
	assert.True(t, table.Matches(AllFileTypes, ""))
	assert.False(t, table.Matches("Nope", ".png"))
}

func TestCategoryTable_NamesAndExtensions(t *testing.T) {
	table := DefaultCategoryTable()

	names := table.Names()
	assert.Equal(t, "Images", names[0])
	assert.Equal(t, AllFileTypes, names[len(names)-1])
	assert.Len(t, names, 7)

	exts := table.Extensions("Archives")
	assert.Equal(t, []string{".7z", ".bz2", ".gz", ".rar", ".tar", ".xz", ".zip"}, exts)
	assert.Nil(t, table.Extensions("Nope"))
}

func TestCategoryTable_CategoriesIsCopy(t *testing.T) {
	table := DefaultCategoryTable()

	cats := table.Categories()
	cats[0].Extensions[0] = ".changed"

	assert.Equal(t, "Images", table.Classify(".png"))
	assert.Equal(t, ".png", table.Categories()[0].Extensions[0])
}

func TestNewCategoryTable_Invalid(t *testing.T) {
	_, err := NewCategoryTable([]CategoryConfig{{Name: ""}})
	assert.Error(t, err)

	_, err = NewCategoryTable([]CategoryConfig{{Name: AllFileTypes}})
	assert.Error(t, err)

	_, err = NewCategoryTable([]CategoryConfig{{Name: "A"}, {Name: "A"}})
	assert.Error(t, err)
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".png", NormalizeExtension("PNG"))
	assert.Equal(t, ".png", NormalizeExtension(" .Png "))
	assert.Equal(t, "", NormalizeExtension("."))
	assert.Equal(t, "", NormalizeExtension(""))
}
