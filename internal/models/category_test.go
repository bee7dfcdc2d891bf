package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "dien-thoai", Slugify("Dien Thoai"))
	assert.Equal(t, "laptop", Slugify("  Laptop  "))
	assert.Equal(t, "phu-kien-gia-dung", Slugify("Phu  Kien   Gia Dung"))
	assert.Equal(t, "", Slugify("   "))
}
