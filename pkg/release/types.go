package release

import "time"

// Status is the release lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Step names the processing substate a release is in.
type Step string

const (
	StepLoadingData       Step = "loading_data"
	StepGeneratingConfigs Step = "generating_configurations"
	StepProcessingImages  Step = "processing_images"
	StepFinalizing        Step = "finalizing"
	StepCreatingZip       Step = "creating_zip_package"
	StepCompleted         Step = "completed"
)

// Image is one source image row from the system of record. Images are
// read-only during a release; the pipeline never mutates them.
type Image struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Filename  string `json:"filename"`
	FilePath  string `json:"file_path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Split     string `json:"split_section"`
	Labeled   bool   `json:"is_labeled"`
}

// Release is the persisted release record. The split counts are fixed
// snapshots taken at packaging time, independent of the live datasets.
type Release struct {
	ID                   string    `json:"id"`
	ProjectID            string    `json:"project_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	ExportFormat         string    `json:"export_format"`
	TaskType             string    `json:"task_type"`
	DatasetsUsed         []string  `json:"datasets_used"`
	Config               *Config   `json:"config,omitempty"`
	TotalOriginalImages  int       `json:"total_original_images"`
	TotalAugmentedImages int       `json:"total_augmented_images"`
	FinalImageCount      int       `json:"final_image_count"`
	TrainImageCount      int       `json:"train_image_count"`
	ValImageCount        int       `json:"val_image_count"`
	TestImageCount       int       `json:"test_image_count"`
	ClassCount           int       `json:"class_count"`
	ModelPath            string    `json:"model_path,omitempty"`
	Status               Status    `json:"status"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Progress is the live view of a running release.
type Progress struct {
	Status          Status     `json:"status"`
	Step            Step       `json:"current_step,omitempty"`
	Percent         float64    `json:"progress_percentage"`
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	GeneratedImages int        `json:"generated_images"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}
