package models

// Merge service wire messages. The service is an external helper reached over
// a length-prefixed JSON channel; both tracks are referenced by path.

// Merge request actions.
const (
	MergeActionPing  = "ping"
	MergeActionMerge = "merge_files"
)

// MergeRequest is sent to the merge service.
type MergeRequest struct {
	Action         string `json:"action"`
	VideoPath      string `json:"video_path,omitempty"`
	AudioPath      string `json:"audio_path,omitempty"`
	OutputFilename string `json:"output_filename,omitempty"`
}

// MergeResponse is the service's reply to either action.
type MergeResponse struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Error      string `json:"error,omitempty"`
}
