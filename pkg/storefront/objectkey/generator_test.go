package objectkey

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var testAssetID = uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()

	tests := []struct {
		name     string
		metadata *KeyMetadata
		expected string
	}{
		{
			name:     "nil metadata uses gallery prefix",
			metadata: nil,
			expected: "galeri/987fcdeb-51a2-43d1-9f12-345678901234",
		},
		{
			name:     "with filename",
			metadata: &KeyMetadata{FileName: "foto produk.jpg"},
			expected: "galeri/987fcdeb-51a2-43d1-9f12-345678901234/foto_produk.jpg",
		},
		{
			name:     "products prefix",
			metadata: &KeyMetadata{Prefix: PrefixProducts, FileName: "a.png"},
			expected: "products/987fcdeb-51a2-43d1-9f12-345678901234/a.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gen.GenerateKey(testAssetID, tt.metadata))
		})
	}
}

func TestShardedGenerator(t *testing.T) {
	tests := []struct {
		name     string
		gen      *ShardedGenerator
		metadata *KeyMetadata
		expected string
	}{
		{
			name:     "default shard without filename",
			gen:      NewShardedGenerator(),
			metadata: &KeyMetadata{},
			expected: "galeri/objects/98/7fcdeb51a243d19f12345678901234",
		},
		{
			name:     "default shard with filename",
			gen:      NewShardedGenerator(),
			metadata: &KeyMetadata{Prefix: PrefixProducts, FileName: "board.jpg"},
			expected: "products/objects/98/7fcdeb51a243d19f12345678901234_board.jpg",
		},
		{
			name:     "three character shard",
			gen:      &ShardedGenerator{ShardLength: 3},
			metadata: nil,
			expected: "galeri/objects/987/fcdeb51a243d19f12345678901234",
		},
		{
			name:     "invalid shard length falls back",
			gen:      &ShardedGenerator{ShardLength: -1},
			metadata: nil,
			expected: "galeri/objects/98/7fcdeb51a243d19f12345678901234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.gen.GenerateKey(testAssetID, tt.metadata))
		})
	}
}

func TestCategoryGenerator(t *testing.T) {
	gen := NewCategoryGenerator()

	key := gen.GenerateKey(testAssetID, &KeyMetadata{Category: "Trainer SMK Otomotif", FileName: "x.jpg"})
	assert.Equal(t, "galeri/trainer_smk_otomotif/987fcdeb-51a2-43d1-9f12-345678901234_x.jpg", key)

	key = gen.GenerateKey(testAssetID, nil)
	assert.Equal(t, "galeri/uncategorized/987fcdeb-51a2-43d1-9f12-345678901234", key)
}

func TestFuncGenerator(t *testing.T) {
	gen := FuncGenerator(func(assetID uuid.UUID, metadata *KeyMetadata) string {
		return "custom/" + assetID.String()
	})
	assert.Equal(t, "custom/987fcdeb-51a2-43d1-9f12-345678901234", gen.GenerateKey(testAssetID, nil))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d.txt", sanitizeFilename("a/b:c d.txt"))
	assert.Equal(t, "mixed_case", sanitizePathComponent("Mixed Case"))
}
