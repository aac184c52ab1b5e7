package service

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
)

// Stat is the statistical analyzer. Stateless: every method is a pure
// function of its numeric input plus the configured thresholds.
type Stat struct {
	// Alpha is the significance level; a result is significant at p < Alpha.
	Alpha float64

	// SlopeThreshold classifies a fitted trend as stable when |slope| is
	// below it.
	SlopeThreshold float64
}

func NewStat(conf *appconfig.Config) *Stat {
	return &Stat{
		Alpha:          conf.SignificanceAlpha,
		SlopeThreshold: conf.TrendSlopeThreshold,
	}
}

// ConfidenceInterval estimates an interval for the mean of values at the
// given level. Method selection follows sample characteristics: normal
// approximation for n >= 30, t-distribution below that, and bootstrap
// resampling when the sample fails the normality check.
func (s *Stat) ConfidenceInterval(values []float64, level float64) (*model.ConfidenceInterval, error) {
	n := len(values)
	if n == 0 {
		return nil, rserr.ErrStatistical.Msg("confidence interval requires a non-empty sample")
	}
	if level <= 0 || level >= 1 {
		return nil, rserr.ErrStatistical.Msg("confidence level must be in (0, 1), got %f", level)
	}
	if n == 1 {
		return &model.ConfidenceInterval{Lower: values[0], Upper: values[0], Level: level, Method: constant.MethodTDist, SampleSize: 1}, nil
	}

	mean, sd := meanStdDev(values)
	se := sd / math.Sqrt(float64(n))

	switch {
	case n >= constant.DefaultNormalSampleSize:
		z := normalQuantile(1 - (1-level)/2)
		return &model.ConfidenceInterval{
			Lower:      mean - z*se,
			Upper:      mean + z*se,
			Level:      level,
			Method:     constant.MethodZScore,
			SampleSize: n,
		}, nil
	case s.approxNormal(values):
		t := tQuantile(1-(1-level)/2, float64(n-1))
		return &model.ConfidenceInterval{
			Lower:      mean - t*se,
			Upper:      mean + t*se,
			Level:      level,
			Method:     constant.MethodTDist,
			SampleSize: n,
		}, nil
	default:
		lower, upper := bootstrapInterval(values, level, constant.BootstrapResamples)
		return &model.ConfidenceInterval{
			Lower:      lower,
			Upper:      upper,
			Level:      level,
			Method:     constant.MethodBootstrap,
			SampleSize: n,
		}, nil
	}
}

// SignificanceTest compares two samples. Approximately normal samples get a
// Welch t-test; otherwise a Mann-Whitney U rank test. Categorical inputs go
// through ChiSquareTest instead.
func (s *Stat) SignificanceTest(sampleA, sampleB []float64) (*model.SignificanceTest, error) {
	if len(sampleA) < 2 || len(sampleB) < 2 {
		return nil, rserr.ErrStatistical.Msg("significance test requires at least 2 points per sample, got %d and %d", len(sampleA), len(sampleB))
	}

	if s.approxNormal(sampleA) && s.approxNormal(sampleB) {
		return s.welchT(sampleA, sampleB), nil
	}
	return s.mannWhitney(sampleA, sampleB), nil
}

func (s *Stat) welchT(a, b []float64) *model.SignificanceTest {
	meanA, sdA := meanStdDev(a)
	meanB, sdB := meanStdDev(b)
	nA, nB := float64(len(a)), float64(len(b))

	varA := sdA * sdA / nA
	varB := sdB * sdB / nB
	se := math.Sqrt(varA + varB)

	var t, df float64
	if se == 0 {
		// identical constant samples: no evidence of difference
		t = 0
		df = nA + nB - 2
	} else {
		t = (meanA - meanB) / se
		df = (varA + varB) * (varA + varB) / (varA*varA/(nA-1) + varB*varB/(nB-1))
	}

	p := 2 * (1 - studentTCDF(math.Abs(t), df))
	if p > 1 {
		p = 1
	}

	// Cohen's d on pooled standard deviation
	pooled := math.Sqrt(((nA-1)*sdA*sdA + (nB-1)*sdB*sdB) / (nA + nB - 2))
	d := 0.0
	if pooled > 0 {
		d = (meanA - meanB) / pooled
	}

	result := &model.SignificanceTest{
		Method:      constant.MethodWelchT,
		Statistic:   t,
		PValue:      p,
		EffectSize:  d,
		Significant: p < s.Alpha,
	}
	result.Interpretation = s.interpret(result, meanA, meanB)
	return result
}

func (s *Stat) mannWhitney(a, b []float64) *model.SignificanceTest {
	nA, nB := float64(len(a)), float64(len(b))

	type rankedValue struct {
		v     float64
		fromA bool
	}
	all := make([]rankedValue, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, rankedValue{v, true})
	}
	for _, v := range b {
		all = append(all, rankedValue{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].v < all[j].v })

	// assign midranks for ties and accumulate the tie correction term
	ranks := make([]float64, len(all))
	tieCorrection := 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		midrank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = midrank
		}
		tied := float64(j - i)
		tieCorrection += tied*tied*tied - tied
		i = j
	}

	var rankSumA float64
	for i, rv := range all {
		if rv.fromA {
			rankSumA += ranks[i]
		}
	}

	u := rankSumA - nA*(nA+1)/2
	meanU := nA * nB / 2
	n := nA + nB
	varU := nA * nB / 12 * ((n + 1) - tieCorrection/(n*(n-1)))

	var z float64
	if varU > 0 {
		// continuity correction
		z = (u - meanU - math.Copysign(0.5, u-meanU)) / math.Sqrt(varU)
		if math.Abs(u-meanU) < 0.5 {
			z = 0
		}
	}

	p := 2 * (1 - normalCDF(math.Abs(z)))
	if p > 1 {
		p = 1
	}

	// rank-biserial correlation as effect size
	effect := 1 - 2*math.Min(u, nA*nB-u)/(nA*nB)

	meanA, _ := meanStdDev(a)
	meanB, _ := meanStdDev(b)
	result := &model.SignificanceTest{
		Method:      constant.MethodMannWhitney,
		Statistic:   u,
		PValue:      p,
		EffectSize:  effect,
		Significant: p < s.Alpha,
	}
	result.Interpretation = s.interpret(result, meanA, meanB)
	return result
}

// ChiSquareTest runs a chi-square test of independence over a contingency
// table of category counts.
func (s *Stat) ChiSquareTest(observed [][]float64) (*model.SignificanceTest, error) {
	rows := len(observed)
	if rows < 2 || len(observed[0]) < 2 {
		return nil, rserr.ErrStatistical.Msg("chi-square requires at least a 2x2 contingency table")
	}
	cols := len(observed[0])

	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	var total float64
	for i, row := range observed {
		if len(row) != cols {
			return nil, rserr.ErrStatistical.Msg("chi-square table rows must have equal length")
		}
		for j, v := range row {
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}
	if total == 0 {
		return nil, rserr.ErrStatistical.Msg("chi-square table must contain counts")
	}

	var chi2 float64
	for i := range observed {
		for j := range observed[i] {
			expected := rowSums[i] * colSums[j] / total
			if expected > 0 {
				diff := observed[i][j] - expected
				chi2 += diff * diff / expected
			}
		}
	}

	df := float64((rows - 1) * (cols - 1))
	p := 1 - lowerGammaRegularized(df/2, chi2/2)

	// Cramér's V
	k := math.Min(float64(rows-1), float64(cols-1))
	v := math.Sqrt(chi2 / (total * k))

	result := &model.SignificanceTest{
		Method:      constant.MethodChiSquare,
		Statistic:   chi2,
		PValue:      p,
		EffectSize:  v,
		Significant: p < s.Alpha,
	}
	result.Interpretation = fmt.Sprintf("chi-square=%.3f, p=%.4f: association is %s at alpha=%.2f", chi2, p, significanceWord(result.Significant), s.Alpha)
	return result, nil
}

// DetectOutliers flags anomalous points. Supported methods: IQR fencing,
// z-score (|z| > 3) and the modified z-score on median absolute deviation.
// An empty method picks IQR for skewed samples and z-score otherwise.
func (s *Stat) DetectOutliers(values []float64, method string) (*model.OutlierReport, error) {
	if len(values) < 4 {
		return nil, rserr.ErrStatistical.Msg("outlier detection requires at least 4 points, got %d", len(values))
	}

	if method == "" {
		if math.Abs(skewness(values)) > 1 {
			method = constant.MethodIQR
		} else {
			method = constant.MethodZScoreOut
		}
	}

	report := &model.OutlierReport{Method: method, Outliers: []model.Outlier{}, SampleSize: len(values)}

	switch method {
	case constant.MethodIQR:
		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr
		scale := iqr
		if scale == 0 {
			scale = 1
		}
		for i, v := range values {
			if v < lower || v > upper {
				excess := math.Max(lower-v, v-upper)
				report.Outliers = append(report.Outliers, model.Outlier{
					Index: i,
					Value: v,
					Score: outlierScore(excess / scale),
				})
			}
		}
	case constant.MethodZScoreOut:
		mean, sd := meanStdDev(values)
		if sd == 0 {
			return report, nil
		}
		for i, v := range values {
			z := math.Abs(v-mean) / sd
			if z > 3 {
				report.Outliers = append(report.Outliers, model.Outlier{Index: i, Value: v, Score: outlierScore(z - 3)})
			}
		}
	case constant.MethodModifiedZ:
		med := quantile(values, 0.5)
		deviations := make([]float64, len(values))
		for i, v := range values {
			deviations[i] = math.Abs(v - med)
		}
		mad := quantile(deviations, 0.5)
		if mad == 0 {
			return report, nil
		}
		for i, v := range values {
			mz := math.Abs(0.6745 * (v - med) / mad)
			if mz > 3.5 {
				report.Outliers = append(report.Outliers, model.Outlier{Index: i, Value: v, Score: outlierScore(mz - 3.5)})
			}
		}
	default:
		return nil, rserr.ErrStatistical.Msg("unknown outlier method %q", method)
	}

	return report, nil
}

// TrendAnalysis fits a linear trend to the series and detects change points
// via a moving-window mean-shift check.
func (s *Stat) TrendAnalysis(series []float64) (*model.TrendAnalysis, error) {
	n := len(series)
	if n < 2 {
		return nil, rserr.ErrStatistical.Msg("trend analysis requires at least 2 points, got %d", n)
	}

	// OLS fit on index as the independent variable
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	slope := 0.0
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssTot, ssRes float64
	for i, y := range series {
		fit := intercept + slope*float64(i)
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	direction := constant.TrendStable
	if slope > s.SlopeThreshold {
		direction = constant.TrendIncreasing
	} else if slope < -s.SlopeThreshold {
		direction = constant.TrendDecreasing
	}

	return &model.TrendAnalysis{
		Slope:             slope,
		Intercept:         intercept,
		R2:                r2,
		Direction:         direction,
		ChangePoints:      changePoints(series),
		ChangePointMethod: constant.MethodSegmented,
		SampleSize:        n,
	}, nil
}

// Correlation computes a pairwise correlation matrix over named variables.
// Pearson by default; Spearman when ranks explain the relationships clearly
// better, which indicates a monotone but non-linear association.
func (s *Stat) Correlation(variables map[string][]float64) (*model.CorrelationMatrix, error) {
	if len(variables) < 2 {
		return nil, rserr.ErrStatistical.Msg("correlation requires at least 2 variables")
	}

	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	length := len(variables[names[0]])
	for _, name := range names {
		if len(variables[name]) != length {
			return nil, rserr.ErrStatistical.Msg("correlation variables must share length")
		}
	}
	if length < 3 {
		return nil, rserr.ErrStatistical.Msg("correlation requires at least 3 observations, got %d", length)
	}

	var sumPearson, sumSpearman float64
	pairs := 0
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			sumPearson += math.Abs(pearson(variables[names[i]], variables[names[j]]))
			sumSpearman += math.Abs(pearson(rankTransform(variables[names[i]]), rankTransform(variables[names[j]])))
			pairs++
		}
	}

	method := constant.MethodPearson
	if pairs > 0 && sumSpearman/float64(pairs) > sumPearson/float64(pairs)+0.1 {
		method = constant.MethodSpearman
	}

	matrix := make([][]float64, len(names))
	for i := range names {
		matrix[i] = make([]float64, len(names))
		for j := range names {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			a, b := variables[names[i]], variables[names[j]]
			if method == constant.MethodSpearman {
				a, b = rankTransform(a), rankTransform(b)
			}
			matrix[i][j] = pearson(a, b)
		}
	}

	return &model.CorrelationMatrix{Variables: names, Method: method, Matrix: matrix}, nil
}

// PercentileRank reports where v falls within the sample, in [0,100].
func (s *Stat) PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	below, equal := 0, 0
	for _, x := range values {
		if x < v {
			below++
		} else if x == v {
			equal++
		}
	}
	return 100 * (float64(below) + 0.5*float64(equal)) / float64(len(values))
}

func (s *Stat) interpret(t *model.SignificanceTest, meanA, meanB float64) string {
	cmp := "higher"
	if meanA < meanB {
		cmp = "lower"
	} else if meanA == meanB {
		cmp = "equal to"
	}
	return fmt.Sprintf("sample A mean is %s sample B mean (p=%.4f, %s at alpha=%.2f, effect size %.2f)",
		cmp, t.PValue, significanceWord(t.Significant), s.Alpha, t.EffectSize)
}

// approxNormal is a Jarque-Bera style check on skewness and excess kurtosis.
// Samples too small to assess are treated as normal so the t-path applies.
func (s *Stat) approxNormal(values []float64) bool {
	n := len(values)
	if n < 8 {
		return true
	}
	sk := skewness(values)
	ku := kurtosisExcess(values)
	jb := float64(n) / 6 * (sk*sk + ku*ku/4)
	// chi-square(df=2) critical value at 0.95
	return jb < 5.99
}

func significanceWord(significant bool) string {
	if significant {
		return "significant"
	}
	return "not significant"
}

func outlierScore(excess float64) float64 {
	if excess < 0 {
		excess = 0
	}
	// 0.5 at the fence, asymptotically 1 for extreme points
	return 1 - 0.5/(1+excess)
}

func meanStdDev(values []float64) (mean, sd float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func skewness(values []float64) float64 {
	mean, sd := meanStdDev(values)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := (v - mean) / sd
		sum += d * d * d
	}
	return sum / float64(len(values))
}

func kurtosisExcess(values []float64) float64 {
	mean, sd := meanStdDev(values)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := (v - mean) / sd
		sum += d * d * d * d
	}
	return sum/float64(len(values)) - 3
}

// quantile uses linear interpolation between closest ranks.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n == 0 {
		return 0
	}
	meanA, sdA := meanStdDev(a)
	meanB, sdB := meanStdDev(b)
	if sdA == 0 || sdB == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	return sum / (float64(n-1) * sdA * sdB)
}

func rankTransform(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		midrank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = midrank
		}
		i = j
	}
	return ranks
}

func bootstrapInterval(values []float64, level float64, resamples int) (lower, upper float64) {
	rng := rand.New(rand.NewSource(int64(len(values))*7919 + 17))
	means := make([]float64, resamples)
	for i := 0; i < resamples; i++ {
		var sum float64
		for j := 0; j < len(values); j++ {
			sum += values[rng.Intn(len(values))]
		}
		means[i] = sum / float64(len(values))
	}
	sort.Float64s(means)
	alpha := (1 - level) / 2
	return quantile(means, alpha), quantile(means, 1-alpha)
}

func changePoints(series []float64) []int {
	points := []int{}
	w := len(series) / 4
	if w < 3 {
		w = 3
	}
	if len(series) < 2*w+1 {
		return points
	}

	lastPoint := -w
	for i := w; i <= len(series)-w; i++ {
		left := series[i-w : i]
		right := series[i : i+w]
		meanL, sdL := meanStdDev(left)
		meanR, sdR := meanStdDev(right)
		se := math.Sqrt(sdL*sdL/float64(w) + sdR*sdR/float64(w))
		if se == 0 {
			continue
		}
		t := math.Abs(meanL-meanR) / se
		if t > 2.5 && i-lastPoint >= w {
			points = append(points, i)
			lastPoint = i
		}
	}
	return points
}

// normalCDF is the standard normal distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normalQuantile is the Acklam rational approximation to the inverse
// standard normal distribution function, accurate to ~1e-9.
func normalQuantile(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}

	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02, 1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02, 6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00, -2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00, 3.754408661907416e+00}

	const pLow = 0.02425

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p <= 1-pLow:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}
}

// tQuantile expands the normal quantile with the Cornish-Fisher correction
// for the t-distribution, adequate for the df ranges seen here.
func tQuantile(p, df float64) float64 {
	z := normalQuantile(p)
	if math.IsInf(z, 0) || df <= 0 {
		return z
	}
	z3 := z * z * z
	z5 := z3 * z * z
	g1 := (z3 + z) / 4
	g2 := (5*z5 + 16*z3 + 3*z) / 96
	return z + g1/df + g2/(df*df)
}

// studentTCDF is P(T <= t) for the t-distribution with df degrees of
// freedom, via the regularized incomplete beta function.
func studentTCDF(t, df float64) float64 {
	if df <= 0 {
		return normalCDF(t)
	}
	x := df / (df + t*t)
	p := 0.5 * incompleteBetaRegularized(df/2, 0.5, x)
	if t > 0 {
		return 1 - p
	}
	return p
}

// incompleteBetaRegularized computes I_x(a, b) with the continued-fraction
// expansion.
func incompleteBetaRegularized(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lbeta, _ := math.Lgamma(a + b)
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	front := math.Exp(lbeta - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	if x > (a+1)/(a+b+2) {
		return 1 - incompleteBetaRegularized(b, a, 1-x)
	}

	// Lentz's algorithm
	const eps = 1e-12
	const tiny = 1e-30
	f, c, d := 1.0, 1.0, 0.0
	for i := 0; i <= 200; i++ {
		m := i / 2
		var numerator float64
		switch {
		case i == 0:
			numerator = 1
		case i%2 == 0:
			numerator = float64(m) * (b - float64(m)) * x / ((a + 2*float64(m) - 1) * (a + 2*float64(m)))
		default:
			numerator = -((a + float64(m)) * (a + b + float64(m)) * x) / ((a + 2*float64(m)) * (a + 2*float64(m) + 1))
		}

		d = 1 + numerator*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		d = 1 / d

		c = 1 + numerator/c
		if math.Abs(c) < tiny {
			c = tiny
		}

		cd := c * d
		f *= cd
		if math.Abs(1-cd) < eps {
			break
		}
	}
	return front * (f - 1) / a
}

// lowerGammaRegularized is P(a, x), the regularized lower incomplete gamma
// function, by series expansion for x < a+1 and continued fraction otherwise.
func lowerGammaRegularized(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	lga, _ := math.Lgamma(a)

	if x < a+1 {
		// series expansion
		sum := 1 / a
		term := sum
		for n := 1; n < 200; n++ {
			term *= x / (a + float64(n))
			sum += term
			if math.Abs(term) < math.Abs(sum)*1e-12 {
				break
			}
		}
		return sum * math.Exp(-x+a*math.Log(x)-lga)
	}

	// continued fraction for the upper function
	const tiny = 1e-30
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i < 200; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < 1e-12 {
			break
		}
	}
	upper := math.Exp(-x+a*math.Log(x)-lga) * h
	return 1 - upper
}
