package vm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// HeapConfig configures the allocator for one interpreter. It is loadable
// from a TOML file; omitted keys keep their defaults.
type HeapConfig struct {
	// ChunkSize is the carve size for backing heap chunks, in bytes.
	ChunkSize int `toml:"chunk-size"`

	// HeapLimit caps the bytes each backing heap may carve. 0 means
	// unlimited. Mostly useful for tests and embedding.
	HeapLimit int `toml:"heap-limit"`

	// TraceFile, when set, enables the diagnostic performance tracer.
	TraceFile string `toml:"trace-file"`

	Freelists FreelistCaps `toml:"freelists"`
}

// FreelistCaps holds the capacity of each recognized freelist category.
type FreelistCaps struct {
	SmallObjects    uint32 `toml:"small-objects"`
	Floats          uint32 `toml:"floats"`
	Ints            uint32 `toml:"ints"`
	Arrays          uint32 `toml:"arrays"`
	Lists           uint32 `toml:"lists"`
	ListIters       uint32 `toml:"list-iters"`
	ArrayIters      uint32 `toml:"array-iters"`
	Dicts           uint32 `toml:"dicts"`
	DictKeys        uint32 `toml:"dict-keys"`
	Ranges          uint32 `toml:"ranges"`
	RangeIters      uint32 `toml:"range-iters"`
	Slices          uint32 `toml:"slices"`
	Contexts        uint32 `toml:"contexts"`
	Generators      uint32 `toml:"generators"`
	GeneratorFrames uint32 `toml:"generator-frames"`
	StackChunks     uint32 `toml:"stack-chunks"`
	MethodObjects   uint32 `toml:"method-objects"`
}

// DefaultHeapConfig returns the build-time defaults.
func DefaultHeapConfig() *HeapConfig {
	return &HeapConfig{
		ChunkSize: DefaultChunkSize,
		Freelists: FreelistCaps{
			SmallObjects:    defaultSmallObjectCap,
			Floats:          defaultFloatsCap,
			Ints:            defaultIntsCap,
			Arrays:          defaultArraysCap,
			Lists:           defaultListsCap,
			ListIters:       defaultListItersCap,
			ArrayIters:      defaultArrayItersCap,
			Dicts:           defaultDictsCap,
			DictKeys:        defaultDictKeysCap,
			Ranges:          defaultRangesCap,
			RangeIters:      defaultRangeItersCap,
			Slices:          defaultSlicesCap,
			Contexts:        defaultContextsCap,
			Generators:      defaultGeneratorsCap,
			GeneratorFrames: defaultGeneratorFramesCap,
			StackChunks:     defaultStackChunksCap,
			MethodObjects:   defaultMethodObjectsCap,
		},
	}
}

// LoadHeapConfig parses a TOML heap configuration, layering the file over
// the defaults.
func LoadHeapConfig(path string) (*HeapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vm: cannot read %s: %w", path, err)
	}

	cfg := DefaultHeapConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("vm: parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vm: invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration values the allocator cannot work with.
func (c *HeapConfig) Validate() error {
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk-size must not be negative, got %d", c.ChunkSize)
	}
	if c.ChunkSize > 0 && c.ChunkSize < smallRequestThreshold {
		return fmt.Errorf("chunk-size %d is below the small-object threshold %d",
			c.ChunkSize, smallRequestThreshold)
	}
	if c.HeapLimit < 0 {
		return fmt.Errorf("heap-limit must not be negative, got %d", c.HeapLimit)
	}
	return nil
}
