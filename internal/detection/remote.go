package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RemoteModel delegates inference to an HTTP service.
//
// The image is POSTed as a PNG body to Endpoint with the thresholds in the
// query string (conf, iou). The service answers with
//
//	{"predictions": [{"x1":..,"y1":..,"x2":..,"y2":..,"label":"..","confidence":..}]}
//
// Thresholds are applied again locally, so a service that ignores the query
// parameters still satisfies the Model contract.
type RemoteModel struct {
	Endpoint string
	Client   *http.Client
}

// NewRemoteModel creates a RemoteModel with a client timeout.
func NewRemoteModel(endpoint string, timeout time.Duration) *RemoteModel {
	return &RemoteModel{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

// remoteResponse is the body returned by the inference service.
type remoteResponse struct {
	Predictions []struct {
		X1         float64 `json:"x1"`
		Y1         float64 `json:"y1"`
		X2         float64 `json:"x2"`
		Y2         float64 `json:"y2"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"predictions"`
}

// Name implements Model.
func (m *RemoteModel) Name() string { return "Remote Model" }

// Detect implements Model.
func (m *RemoteModel) Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("encode request image: %w", err)
	}

	u, err := url.Parse(m.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("conf", strconv.FormatFloat(th.Confidence, 'f', -1, 64))
	q.Set("iou", strconv.FormatFloat(th.Overlap, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	dets := make([]Detection, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		dets = append(dets, Detection{
			Box:        Box{X1: p.X1, Y1: p.Y1, X2: p.X2, Y2: p.Y2},
			Label:      p.Label,
			Confidence: p.Confidence,
		})
	}
	return SuppressOverlaps(FilterConfidence(dets, th.Confidence), th.Overlap), nil
}
