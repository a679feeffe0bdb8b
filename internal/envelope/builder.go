package envelope

import (
	stderrors "errors"

	"mkb/internal/assembler"
	"mkb/internal/errors"
	"mkb/internal/semantic"
)

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{
		resp: &Response{
			SchemaVersion: CurrentSchemaVersion,
		},
	}
}

// Data sets the endpoint-specific payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

func (b *Builder) meta() *Meta {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}
	return b.resp.Meta
}

// FromAssembly populates metadata from an assembly result: per-source
// freshness reports, the confidence score derived from them, block
// cache status, truncation, and degradation warnings.
func (b *Builder) FromAssembly(r *assembler.Result) *Builder {
	if r == nil {
		return b
	}
	meta := b.meta()

	sources := make([]SourceInfo, 0, len(r.Trace.Sources))
	for _, s := range r.Trace.Sources {
		sources = append(sources, SourceInfo{
			Name:   s.Name,
			Status: string(s.Status),
			Age:    s.Age,
			Error:  s.Error,
		})
	}
	meta.Sources = sources

	score, factors, reasons := scoreSources(r.Trace.Sources)
	meta.Confidence = &Confidence{
		Score:   score,
		Tier:    ScoreToTier(score),
		Reasons: reasons,
		Factors: factors,
	}

	cache := &CacheInfo{
		Hit:   r.Trace.Cache.Hit,
		Key:   r.Trace.Cache.Key,
		Stale: r.Trace.Cache.Stale,
	}
	if r.Trace.Cache.Age > 0 {
		cache.Age = r.Trace.Cache.Age.String()
	}
	meta.Cache = cache

	if t := r.Trace.Truncation; t.Truncated {
		meta.Truncation = &Truncation{
			IsTruncated: true,
			Shown:       t.Shown,
			Total:       t.Total,
			Reason:      t.Reason,
		}
	}

	for _, w := range r.Trace.Warnings {
		b.resp.Warnings = append(b.resp.Warnings, Warning{Message: w})
	}

	return b
}

// scoreSources weighs the source reports into one score plus a factor
// breakdown explaining it. The catalog dominates the weighting: without
// it there is nothing to ground a sales answer in.
func scoreSources(reports []assembler.SourceReport) (float64, []ConfidenceFactor, []string) {
	score := 1.0
	factors := make([]ConfidenceFactor, 0, len(reports))
	var reasons []string

	for _, r := range reports {
		impact := 0.0
		switch r.Status {
		case assembler.StatusStale:
			impact = -0.1
			if r.Name == "catalog" {
				impact = -0.2
			}
		case assembler.StatusFallback:
			impact = -0.2
		case assembler.StatusUnavailable:
			impact = -0.2
			if r.Name == "catalog" {
				impact = -0.5
			}
		}
		if impact != 0 {
			reasons = append(reasons, r.Name+"-"+string(r.Status))
		}
		factors = append(factors, ConfidenceFactor{
			Factor: r.Name + "_source",
			Status: string(r.Status),
			Impact: impact,
		})
		score += impact
	}

	if score < 0 {
		score = 0
	}
	return score, factors, reasons
}

// WithIndex adds semantic index freshness info.
func (b *Builder) WithIndex(stats semantic.Stats) *Builder {
	b.meta().Freshness = &Freshness{
		Index: &IndexInfo{
			Ready:    stats.Ready,
			Building: stats.Building,
			Chunks:   stats.Chunks,
			Stale:    stats.Stale,
			LastErr:  stats.LastError,
		},
	}
	return b
}

// WithTruncation adds truncation metadata.
func (b *Builder) WithTruncation(truncated bool, shown, total int, reason string) *Builder {
	if !truncated {
		return b
	}
	b.meta().Truncation = &Truncation{
		IsTruncated: true,
		Shown:       shown,
		Total:       total,
		Reason:      reason,
	}
	return b
}

// Warning adds a warning message.
func (b *Builder) Warning(msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Message: msg})
	return b
}

// WarningWithCode adds a warning with a code.
func (b *Builder) WarningWithCode(code, msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Code: code, Message: msg})
	return b
}

// Error sets the error field. A typed error contributes its stable
// code and suggested fixes; anything else reports as internal.
func (b *Builder) Error(err error) *Builder {
	if err == nil {
		return b
	}

	var me *errors.MkbError
	if stderrors.As(err, &me) {
		b.resp.Error = &ErrorInfo{
			Code:           string(me.Code),
			Message:        me.Message,
			SuggestedFixes: me.SuggestedFixes,
		}
		return b
	}

	b.resp.Error = &ErrorInfo{
		Code:    string(errors.InternalError),
		Message: err.Error(),
	}
	return b
}

// Build returns the completed response envelope.
func (b *Builder) Build() *Response {
	return b.resp
}

// Operational creates a simple envelope for operational endpoints.
// These always have high confidence and no truncation or freshness
// concerns.
func Operational(data interface{}) *Response {
	return &Response{
		SchemaVersion: CurrentSchemaVersion,
		Data:          data,
		Meta: &Meta{
			Confidence: &Confidence{
				Score: 1.0,
				Tier:  TierHigh,
			},
		},
	}
}
