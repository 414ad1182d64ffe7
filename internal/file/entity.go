package file

import "time"

// File is the metadata record for an uploaded file. The bytes live in the
// blob store under StorageKey.
type File struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploaderID  string    `json:"uploaderId"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}
