package domain

import "time"

// ArtifactEvent announces one sitemap document written by a batch run.
type ArtifactEvent struct {
	File        string    `json:"file"`
	Kind        string    `json:"kind"`
	Country     string    `json:"country"`
	Part        int       `json:"part"`
	URLCount    int       `json:"url_count"`
	GeneratedAt time.Time `json:"generated_at"`
}
