package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MatchRecord is one detection event that went through recognition.
// Rows are created by the upstream detection pipeline; this subsystem
// only reads them. The event and response payloads are kept as opaque
// JSON documents and queried via json_extract.
type MatchRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Filename  string         `gorm:"index;not null" json:"filename"`
	Event     datatypes.JSON `gorm:"type:json" json:"event"`
	Response  datatypes.JSON `gorm:"type:json" json:"response"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// TableName keeps the table name of the upstream pipeline.
func (MatchRecord) TableName() string { return "match" }

// DetectionEvent is the parsed view of a MatchRecord event document.
type DetectionEvent struct {
	Camera string `json:"camera"`
	Type   string `json:"type,omitempty"`
	Label  string `json:"label,omitempty"`
}

// RecognitionResult is one result entry of a MatchRecord response document.
type RecognitionResult struct {
	Name       string          `json:"name"`
	Confidence float64         `json:"confidence"`
	Box        json.RawMessage `json:"box"`
}

// responseEntry mirrors the response document layout: an array whose
// first element carries the results array.
type responseEntry struct {
	Results []RecognitionResult `json:"results"`
}

// ParsedEvent decodes the event document. Returns the zero value when
// the document is missing or malformed.
func (m *MatchRecord) ParsedEvent() DetectionEvent {
	var event DetectionEvent
	if len(m.Event) > 0 {
		_ = json.Unmarshal(m.Event, &event)
	}
	return event
}

// BestResult returns response[0].results[0], the authoritative best-guess
// recognition result, or the zero value when absent.
func (m *MatchRecord) BestResult() RecognitionResult {
	var entries []responseEntry
	if len(m.Response) > 0 {
		_ = json.Unmarshal(m.Response, &entries)
	}
	if len(entries) == 0 || len(entries[0].Results) == 0 {
		return RecognitionResult{}
	}
	return entries[0].Results[0]
}

// TrainingRecord is the local bookkeeping row linking an image to a
// subject. The composite unique index makes the tag/train insert
// idempotent at the store level.
type TrainingRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `gorm:"uniqueIndex:idx_file_name_filename;not null" json:"name"`
	Filename  string         `gorm:"uniqueIndex:idx_file_name_filename;not null" json:"filename"`
	Meta      datatypes.JSON `gorm:"type:json" json:"meta"`
	IsActive  bool           `gorm:"index;default:true" json:"isActive"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// TableName keeps the original bookkeeping table name.
func (TrainingRecord) TableName() string { return "file" }

// TrainingMeta is the meta document stored on a TrainingRecord.
type TrainingMeta struct {
	ImageID string `json:"image_id,omitempty"`
	Tagged  bool   `json:"tagged"`
}

// FileInfo describes the media-store entry backing a face.
type FileInfo struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// FaceDescriptor is the client-facing view of an unknown face.
type FaceDescriptor struct {
	ID          uint            `json:"id"`
	Filename    string          `json:"filename"`
	Camera      string          `json:"camera"`
	Timestamp   time.Time       `json:"timestamp"`
	Confidence  float64         `json:"confidence"`
	Box         json.RawMessage `json:"box"`
	File        FileInfo        `json:"file"`
	SnapshotURL string          `json:"snapshot_url"`
	Token       *string         `json:"token"`
}

// SubjectInfo is one entry of the provider-backed subject listing.
type SubjectInfo struct {
	Name        string     `json:"name"`
	ImageCount  int        `json:"image_count"`
	LastTrained *time.Time `json:"last_trained"`
}

// ReviewStats is the aggregate rollup served by the stats endpoint.
type ReviewStats struct {
	UnknownFaces    int64   `json:"unknown_faces"`
	TrainedSubjects int64   `json:"trained_subjects"`
	TaggedToday     int64   `json:"tagged_today"`
	SuccessRate     float64 `json:"success_rate"`
}
