package detect

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/violation.report/internal/httputil"
)

// maxDetectResponse bounds a detection service reply.
const maxDetectResponse = 4 << 20

// RemoteDetector sends each frame's pixels as a JPEG to an HTTP inference
// service and decodes its reply:
//
//	{"detections":[{"box":[x1,y1,x2,y2],"class":"car","confidence":0.91}]}
//
// Frames without pixels keep the detections carried on the frame.
type RemoteDetector struct {
	URL     string
	Client  httputil.HTTPClient
	Quality int // JPEG quality of the uploaded frame
}

// NewRemoteDetector creates a detector posting to url with the given
// per-request timeout.
func NewRemoteDetector(url string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{URL: url, Client: httputil.NewStandardClient(timeout), Quality: 85}
}

type detectResponse struct {
	Detections []feedDetection `json:"detections"`
}

// Detect implements Detector.
func (d *RemoteDetector) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	if frame.Image == nil {
		return frame.Detections, nil
	}
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image, &jpeg.Options{Quality: d.Quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", frame.Index, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("X-Stream-Id", frame.StreamID)
	req.Header.Set("X-Frame-Index", strconv.FormatInt(frame.Index, 10))

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frame.Index, err)
	}
	var out detectResponse
	if err := httputil.DecodeJSONResponse(resp, &out, maxDetectResponse); err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frame.Index, err)
	}
	return convertDetections(out.Detections), nil
}
