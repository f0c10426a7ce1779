package dividend

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// outlierFenceMultiplier is the Tukey fence width in IQRs. Payments outside
// [Q1 − k·IQR, Q3 + k·IQR] are treated as specials and excluded from the
// annual estimate.
const outlierFenceMultiplier = 1.5

// maxIntervalDates caps how many recent ex-dates feed interval detection.
const maxIntervalDates = 5

// annualFromFundamentals derives the annual per-share dividend from declared
// figures: the forward rate when present, otherwise trailing yield times the
// current price. Returns method "none" when neither produces a figure.
func annualFromFundamentals(f *models.Fundamentals, price float64) (float64, models.DividendMethod) {
	if f == nil {
		return 0, models.DividendMethodNone
	}
	if f.ForwardAnnualDividendRate != nil && *f.ForwardAnnualDividendRate > 0 {
		return *f.ForwardAnnualDividendRate, models.DividendMethodForwardRate
	}
	if f.TrailingAnnualDividendYield != nil && *f.TrailingAnnualDividendYield > 0 && price > 0 {
		return *f.TrailingAnnualDividendYield * price, models.DividendMethodTrailingYield
	}
	return 0, models.DividendMethodNone
}

// annualFromHistory estimates the annual per-share dividend from payment
// history. Qualifying payments are those in the trailing year; when fewer
// than two qualify but at least four payments exist overall, the last four
// stand in. Amounts outside the Tukey fence are dropped as specials and the
// survivors summed.
func annualFromHistory(payments []models.DividendPayment, now time.Time) (float64, models.DividendMethod) {
	sorted := sortedByExDate(payments)

	cutoff := now.AddDate(0, 0, -365)
	var qualifying []float64
	for _, p := range sorted {
		if p.ExDate.After(cutoff) && !p.ExDate.After(now) {
			qualifying = append(qualifying, p.Amount)
		}
	}

	method := models.DividendMethodHistoryIQR
	if len(qualifying) < 2 {
		if len(sorted) < 4 {
			return 0, models.DividendMethodNone
		}
		qualifying = qualifying[:0]
		for _, p := range sorted[len(sorted)-4:] {
			qualifying = append(qualifying, p.Amount)
		}
		method = models.DividendMethodLastFour
	}

	total := sumWithOutlierFence(qualifying)
	if total <= 0 {
		return 0, models.DividendMethodNone
	}
	return total, method
}

// sumWithOutlierFence sums the amounts that fall inside the Tukey fence.
func sumWithOutlierFence(amounts []float64) float64 {
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lower := q1 - outlierFenceMultiplier*iqr
	upper := q3 + outlierFenceMultiplier*iqr

	var total float64
	for _, a := range sorted {
		if a >= lower && a <= upper {
			total += a
		}
	}
	return total
}

// detectInterval infers the payment cadence from the most recent ex-dates.
// Returns the payments per year and the median gap in days. Fewer than two
// dates yields (0, 0): no cadence can be inferred.
func detectInterval(payments []models.DividendPayment) (paymentsPerYear int, medianGapDays int) {
	sorted := sortedByExDate(payments)
	if len(sorted) > maxIntervalDates {
		sorted = sorted[len(sorted)-maxIntervalDates:]
	}
	if len(sorted) < 2 {
		return 0, 0
	}

	gaps := make([]int, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		days := int(sorted[i].ExDate.Sub(sorted[i-1].ExDate).Hours() / 24)
		gaps = append(gaps, days)
	}
	sort.Ints(gaps)
	median := gaps[len(gaps)/2]

	switch {
	case median > 300:
		paymentsPerYear = 1
	case median > 150:
		paymentsPerYear = 2
	case median > 60:
		paymentsPerYear = 4
	default:
		paymentsPerYear = 12
	}
	return paymentsPerYear, median
}

func sortedByExDate(payments []models.DividendPayment) []models.DividendPayment {
	sorted := append([]models.DividendPayment(nil), payments...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExDate.Before(sorted[j].ExDate)
	})
	return sorted
}
