package pipeline

import (
	"context"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
)

// Assessor evaluates one weather event against the loaded network.
type Assessor interface {
	Assess(ctx context.Context, event domain.WeatherEvent) (domain.Assessment, error)
}

// AssessmentTransformer implements Transformer by decoding the weather event
// payload and running it through an Assessor.
type AssessmentTransformer struct {
	assessor Assessor
}

// NewTransformer creates an AssessmentTransformer.
func NewTransformer(assessor Assessor) *AssessmentTransformer {
	return &AssessmentTransformer{assessor: assessor}
}

func (t *AssessmentTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Assessment, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.Assessment{}, err
	}
	return t.assessor.Assess(ctx, event)
}
