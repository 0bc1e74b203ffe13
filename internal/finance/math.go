package finance

import "math"

// MonthlyPayment is the level payment that retires principal over months
// at annualRate compounded monthly.
func MonthlyPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12
	if r == 0 {
		return principal / float64(months)
	}
	return principal * r / (1 - math.Pow(1+r, -float64(months)))
}

// RemainingBalance is the principal still owed after paid payments.
func RemainingBalance(principal, annualRate float64, months, paid int) float64 {
	if principal <= 0 || paid >= months {
		return 0
	}
	if paid <= 0 {
		return principal
	}
	pmt := MonthlyPayment(principal, annualRate, months)
	r := annualRate / 12
	if r == 0 {
		return principal - pmt*float64(paid)
	}
	g := math.Pow(1+r, float64(paid))
	return principal*g - pmt*(g-1)/r
}

// NPV discounts flows, flows[0] being undiscounted.
func NPV(rate float64, flows []float64) float64 {
	v := 0.0
	for t, f := range flows {
		v += f / math.Pow(1+rate, float64(t))
	}
	return v
}

const (
	irrLow        = -0.99
	irrHigh       = 10.0
	irrTolerance  = 1e-9
	irrIterations = 200
)

// IRR finds the rate where NPV is zero by bisection over [-99%, 1000%].
// ok is false when NPV has no sign change on that interval, which is
// the case for flows that never pay back.
func IRR(flows []float64) (rate float64, ok bool) {
	lo, hi := irrLow, irrHigh
	fLo, fHi := NPV(lo, flows), NPV(hi, flows)
	if math.IsNaN(fLo) || math.IsNaN(fHi) || fLo*fHi > 0 {
		return 0, false
	}
	for i := 0; i < irrIterations; i++ {
		mid := (lo + hi) / 2
		fMid := NPV(mid, flows)
		if fMid == 0 || (hi-lo)/2 < irrTolerance {
			return mid, true
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return (lo + hi) / 2, true
}
