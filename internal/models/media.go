// internal/models/media.go
package models

// Media is an uploaded or ingested file in the local media store.
type Media struct {
	BaseModel

	Filename    string `gorm:"not null;uniqueIndex" json:"filename"`
	MimeType    string `json:"mimeType"`
	Filesize    int64  `json:"filesize"`
	Alt         string `json:"alt,omitempty"`
	URL         string `json:"url"`
	StoragePath string `json:"-"`
}
