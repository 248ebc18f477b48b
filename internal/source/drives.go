package source

// Drive describes a block device that can be passed to Open.
type Drive struct {
	Path  string
	Size  int64
	Model string
}
