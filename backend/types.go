// Package backend provides a client for the EcoVision analysis server:
// image analysis, AI recommendations and PDF report generation.
package backend

import (
	"encoding/json"
	"strconv"
)

// Endpoint paths exposed by the EcoVision server
const (
	PathAnalyze        = "/analyze"
	PathRecommend      = "/recommend"
	PathDownloadReport = "/download-report"
)

// Form fields read by the analyze endpoint
const (
	FieldImage       = "image"
	FieldCameraImage = "camera_image"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldTime        = "time"
)

// Placeholder is sent and displayed in place of missing optional values
const Placeholder = "N/A"

// AnalysisResult is the solar placement suggestion returned by the analyze endpoint
type AnalysisResult struct {
	FreeAreaPercent float64  `json:"recommended_free_area_percent"`
	TiltAngle       float64  `json:"suggested_tilt_angle"`
	OrientationDir  string   `json:"suggested_orientation_dir"`
	OrientationDeg  float64  `json:"suggested_orientation_deg"`
	Message         string   `json:"message"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`

	SunAltitude  *float64      `json:"sun_altitude,omitempty"`
	SunAzimuth   *float64      `json:"sun_azimuth,omitempty"`
	Obstructions []Obstruction `json:"obstructions,omitempty"`
}

// Obstruction is a detected object that shades part of the roof
type Obstruction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// Clone returns a deep copy of the result
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Latitude = cloneFloat(r.Latitude)
	c.Longitude = cloneFloat(r.Longitude)
	c.SunAltitude = cloneFloat(r.SunAltitude)
	c.SunAzimuth = cloneFloat(r.SunAzimuth)
	if r.Obstructions != nil {
		c.Obstructions = append([]Obstruction(nil), r.Obstructions...)
	}
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// RecommendRequest is the body of a recommendation request
type RecommendRequest struct {
	FreeArea       float64 `json:"free_area"`
	Tilt           float64 `json:"tilt"`
	OrientationDeg float64 `json:"orientation_deg"`
	OrientationDir string  `json:"orientation_dir"`
}

// RecommendResponse carries the generated recommendation text
type RecommendResponse struct {
	Recommendation string `json:"recommendation"`
}

// Coordinate is a latitude or longitude that serializes as the placeholder when
// missing or zero, the way the server's report template expects
type Coordinate struct {
	Value *float64
}

// MarshalJSON implements json.Marshaler
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if c.Value == nil || *c.Value == 0 {
		return json.Marshal(Placeholder)
	}
	return []byte(strconv.FormatFloat(*c.Value, 'f', -1, 64)), nil
}

// String renders the coordinate for display
func (c Coordinate) String() string {
	if c.Value == nil || *c.Value == 0 {
		return Placeholder
	}
	return strconv.FormatFloat(*c.Value, 'f', -1, 64)
}

// ReportRequest is the body of a report download request
type ReportRequest struct {
	FreeArea       float64    `json:"free_area"`
	Tilt           float64    `json:"tilt"`
	OrientationDeg float64    `json:"orientation_deg"`
	OrientationDir string     `json:"orientation_dir"`
	DateTime       string     `json:"datetime"`
	Latitude       Coordinate `json:"latitude"`
	Longitude      Coordinate `json:"longitude"`
	AISummary      string     `json:"ai_summary"`
	ImageBase64    *string    `json:"image_base64"`
}

// Report is a generated report document
type Report struct {
	Data        []byte
	ContentType string
	Filename    string
}

// APIError represents a non-success response from the server
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "server error (status " + strconv.Itoa(e.StatusCode) + "): " + e.Message
	}
	return "server error (status " + strconv.Itoa(e.StatusCode) + ")"
}
