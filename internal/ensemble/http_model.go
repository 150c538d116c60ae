package ensemble

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// predictRequest is the wire request sent to a remote model server.
type predictRequest struct {
	Symbol   string             `json:"symbol"`
	Time     int64              `json:"timestamp_ms"`
	Features map[string]float64 `json:"features"`
}

// predictResponse is the remote model's answer.
type predictResponse struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// HTTPModel calls a remote model server over HTTP. The server exposes
// POST /predict and answers with a direction and confidence; anything
// else is treated as an abstention upstream.
type HTTPModel struct {
	name   string
	client *resty.Client
}

// NewHTTPModel creates a model backed by the server at baseURL.
func NewHTTPModel(name, baseURL string, timeout time.Duration) *HTTPModel {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPModel{
		name:   name,
		client: client,
	}
}

// Name implements Model.
func (m *HTTPModel) Name() string {
	return m.name
}

// Predict implements Model.
func (m *HTTPModel) Predict(ctx context.Context, fv types.FeatureVector) (types.ModelVote, error) {
	req := predictRequest{
		Symbol:   fv.Symbol,
		Time:     fv.Time.UnixMilli(),
		Features: fv.Map(),
	}

	var resp predictResponse

	httpResp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/predict")
	if err != nil {
		if ctx.Err() != nil {
			return types.ModelVote{}, errors.Wrapf(errors.ErrCodeModelTimeout, err,
				"model %s did not answer in time", m.name)
		}

		return types.ModelVote{}, errors.Wrapf(errors.ErrCodeModelUnavailable, err,
			"model %s unreachable", m.name)
	}

	if httpResp.IsError() {
		return types.ModelVote{}, errors.Newf(errors.ErrCodeModelUnavailable,
			"model %s returned status %d", m.name, httpResp.StatusCode())
	}

	vote := types.ModelVote{
		Model:      m.name,
		Symbol:     fv.Symbol,
		Time:       fv.Time,
		Direction:  types.Direction(resp.Direction),
		Confidence: resp.Confidence,
	}

	if err := vote.Validate(); err != nil {
		return types.ModelVote{}, errors.Wrapf(errors.ErrCodeModelBadResponse, err,
			"model %s returned an invalid vote", m.name)
	}

	return vote, nil
}

var _ Model = (*HTTPModel)(nil)
