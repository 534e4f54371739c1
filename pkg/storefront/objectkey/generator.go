package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// GenerateKey creates the blob store key for one asset
	GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string
}

// Key prefixes for the two asset collections.
const (
	PrefixGallery  = "galeri"
	PrefixProducts = "products"
)

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Prefix        string
	FileName      string
	Category      string
	OwnerIdentity string
}

func (m *KeyMetadata) prefix() string {
	if m == nil || m.Prefix == "" {
		return PrefixGallery
	}
	return sanitizePathComponent(m.Prefix)
}

// FlatGenerator stores every blob directly below its prefix, keyed by asset id.
// Layout: {prefix}/{assetID}/{filename}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	if metadata != nil && metadata.FileName != "" {
		return fmt.Sprintf("%s/%s/%s", metadata.prefix(), assetID, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("%s/%s", metadata.prefix(), assetID)
}

// ShardedGenerator spreads blobs over directories named after the first
// characters of the asset id.
// Layout: {prefix}/objects/ab/cd1234ef5678_filename
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(assetID.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(id) {
		shard = 2
	}

	filename := id[shard:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("%s/objects/%s/%s", metadata.prefix(), id[:shard], filename)
}

// CategoryGenerator groups blobs by category below the prefix.
// Layout: {prefix}/{category}/{assetID}_{filename}
type CategoryGenerator struct {
	DefaultCategory string
}

func NewCategoryGenerator() *CategoryGenerator {
	return &CategoryGenerator{DefaultCategory: "uncategorized"}
}

func (g *CategoryGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	category := g.DefaultCategory
	if metadata != nil && metadata.Category != "" {
		category = sanitizePathComponent(metadata.Category)
	}
	name := assetID.String()
	if metadata != nil && metadata.FileName != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("%s/%s/%s", metadata.prefix(), category, name)
}

// FuncGenerator allows callers to provide their own key generation function
type FuncGenerator func(assetID uuid.UUID, metadata *KeyMetadata) string

func (f FuncGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	return f(assetID, metadata)
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

func sanitizeFilename(filename string) string {
	return unsafeChars.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(unsafeChars.Replace(component))
}

// NewDefaultGenerator returns the generator used when none is configured
func NewDefaultGenerator() Generator {
	return NewShardedGenerator()
}
