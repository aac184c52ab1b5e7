package model

// Stateless statistical result values produced by the Stat service. No
// ownership beyond the caller that requested them.

type ConfidenceInterval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Level      float64 `json:"level"`
	Method     string  `json:"method"`
	SampleSize int     `json:"sampleSize"`
}

// Contains reports whether v lies inside the interval.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

type SignificanceTest struct {
	Method         string  `json:"method"`
	Statistic      float64 `json:"statistic"`
	PValue         float64 `json:"pValue"`
	EffectSize     float64 `json:"effectSize"`
	Significant    bool    `json:"significant"`
	Interpretation string  `json:"interpretation"`
}

type Outlier struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	// Score is a per-point confidence that the point is anomalous, in [0,1].
	Score float64 `json:"score"`
}

type OutlierReport struct {
	Method     string    `json:"method"`
	Outliers   []Outlier `json:"outliers"`
	SampleSize int       `json:"sampleSize"`
}

type TrendAnalysis struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	// Direction is increasing, decreasing or stable by the configured
	// slope-magnitude threshold.
	Direction    string `json:"direction"`
	ChangePoints []int  `json:"changePoints"`
	// ChangePointMethod names the detector behind ChangePoints.
	ChangePointMethod string `json:"changePointMethod"`
	SampleSize        int    `json:"sampleSize"`
}

type CorrelationMatrix struct {
	Variables []string    `json:"variables"`
	Method    string      `json:"method"`
	Matrix    [][]float64 `json:"matrix"`
}
