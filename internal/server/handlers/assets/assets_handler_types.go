package assets

type ManifestEntry struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
	Hash string `json:"hash"`
}

type ManifestResponse struct {
	Version   string          `json:"version"`
	Files     int             `json:"files"`
	TotalSize uint64          `json:"totalSize"`
	Entries   []ManifestEntry `json:"entries"`
}

type VersionResponse struct {
	Version string `json:"version"`
	Files   int    `json:"files"`
	Backend string `json:"backend"`
}
