package domain

// AssetRecord describes how a KindAsset module was emitted.
//
// Exactly one of DataURI and FileName is meaningful: an inlined asset carries
// a data URI and writes nothing, an emitted asset has an output file name.
type AssetRecord struct {
	ContentHash string `json:"content_hash"`
	OriginalExt string `json:"original_ext"`
	SizeBytes   int    `json:"size_bytes"`
	Inline      bool   `json:"inline"`
	MimeType    string `json:"mime_type"`
	DataURI     string `json:"-"`
	FileName    string `json:"file_name,omitempty"`
	// URL is the public reference embedded in code (publicPath + FileName, or the data URI).
	URL string `json:"url,omitempty"`
}
