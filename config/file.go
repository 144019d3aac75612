package config

// File is the core definition shared by every vector config entry: where
// the data lives, what lands on disk, and whether it lands at all.
type File struct {
	Folder      string `json:"folder"`
	URL         string `json:"url"`
	FileExt     string `json:"file_ext"`
	WriteToDisk bool   `json:"write_to_disk"`
}

// Validate enforces the content rules on every field
func (f File) Validate() error {
	if err := ValidateFolder(f.Folder); err != nil {
		return err
	}
	if err := ValidateURL(f.URL); err != nil {
		return err
	}
	return ValidateFileExt(f.FileExt)
}
