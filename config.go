package embeddb

import (
	"github.com/flashdb/embeddb/bitmap"
	"github.com/flashdb/embeddb/pagefile"
)

// Parameters is the feature bitmask spec.md §6 requires: USE_INDEX,
// USE_BMAP, USE_VDATA, RESET_DATA.
type Parameters uint8

const (
	// UseIndex enables sparse index emission (C7).
	UseIndex Parameters = 1 << iota
	// UseBmap enables the bitmap field in data page headers (C4).
	UseBmap
	// UseVData enables the variable-length data log (C6).
	UseVData
	// ResetData truncates existing files on Init instead of recovering
	// from them.
	ResetData
)

func (p Parameters) has(f Parameters) bool { return p&f != 0 }

// Config collects every knob Init needs. Use NewConfig with Options to
// build one, or construct it directly.
type Config struct {
	KeySize  int
	DataSize int
	PageSize int

	// BufferSizeInBlocks is carried on the configuration but Init does
	// not read it: the buffer pool is sized from the roles this
	// configuration enables (2 for data only, +2 for index, +2 for var).
	BufferSizeInBlocks int

	EraseSizeInPages uint32
	MaxSplineError   uint32
	Parameters       Parameters

	NumDataPages  uint32
	NumIndexPages uint32
	NumVarPages   uint32

	Bitmap         bitmap.Bitmap
	KeyComparator  bitmap.Comparator
	DataComparator bitmap.Comparator

	DataFile  pagefile.PageFile
	IndexFile pagefile.PageFile
	VarFile   pagefile.PageFile
}

// Option mutates a Config, following the same functional-option idiom as
// the teacher's segmentmanager.DiskSegmentManagerOption.
type Option func(*Config)

func WithPageSize(n int) Option             { return func(c *Config) { c.PageSize = n } }
func WithBufferSizeInBlocks(n int) Option   { return func(c *Config) { c.BufferSizeInBlocks = n } }
func WithEraseSizeInPages(n uint32) Option  { return func(c *Config) { c.EraseSizeInPages = n } }
func WithMaxSplineError(n uint32) Option    { return func(c *Config) { c.MaxSplineError = n } }
func WithBitmap(b bitmap.Bitmap) Option     { return func(c *Config) { c.Bitmap = b } }
func WithKeyComparator(cmp bitmap.Comparator) Option {
	return func(c *Config) { c.KeyComparator = cmp }
}
func WithDataComparator(cmp bitmap.Comparator) Option {
	return func(c *Config) { c.DataComparator = cmp }
}
func WithParameters(p Parameters) Option { return func(c *Config) { c.Parameters = p } }
func WithCapacity(numData, numIndex, numVar uint32) Option {
	return func(c *Config) {
		c.NumDataPages = numData
		c.NumIndexPages = numIndex
		c.NumVarPages = numVar
	}
}

// NewConfig builds a Config for fixed key/data widths and backing files,
// applying options on top of sensible defaults.
func NewConfig(keySize, dataSize int, dataFile, indexFile, varFile pagefile.PageFile, opts ...Option) *Config {
	c := &Config{
		KeySize:             keySize,
		DataSize:            dataSize,
		PageSize:            512,
		BufferSizeInBlocks:  6,
		EraseSizeInPages:    4,
		MaxSplineError:      1,
		Parameters:          UseIndex | UseBmap,
		NumDataPages:        64,
		NumIndexPages:       64,
		NumVarPages:         64,
		Bitmap:              bitmap.Bitmap64{},
		KeyComparator:       bitmap.UintComparator(keySize),
		DataComparator:      bitmap.UintComparator(dataSize),
		DataFile:            dataFile,
		IndexFile:           indexFile,
		VarFile:             varFile,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}
