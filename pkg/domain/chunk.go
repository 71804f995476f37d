package domain

// Segment is the portion of a chunk produced by one module.
type Segment struct {
	Module ModuleID `json:"module"`
	Key    string   `json:"key"`
	Hash   string   `json:"hash"`
	Bytes  int      `json:"bytes"`
}

// Chunk is the linked output of one entry point.
//
// Modules lists every module reachable from the entry in link order:
// dependencies come before their dependents, except along cycle back edges.
type Chunk struct {
	Name           string     `json:"name"`
	Entry          ModuleID   `json:"entry"`
	Modules        []ModuleID `json:"modules"`
	OutputFilename string     `json:"output"`
	Hash           string     `json:"hash"`
	Segments       []Segment  `json:"segments"`
	Code           []byte     `json:"-"`
}

// Contains reports whether id was linked into the chunk.
func (c *Chunk) Contains(id ModuleID) bool {
	for _, m := range c.Modules {
		if m == id {
			return true
		}
	}
	return false
}
