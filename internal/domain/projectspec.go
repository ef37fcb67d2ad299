package domain

// ProjectSpec is the classifier's view of one request: the detected project
// category and where generated files should land, relative to the projects root.
type ProjectSpec struct {
	Category        string   `json:"category"`
	TargetDirectory string   `json:"target_directory"`
	Keywords        []string `json:"detected_keywords,omitempty"`
}
