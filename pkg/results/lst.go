package results

import (
	"bufio"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TerminationStatus describes how one estimation step ended, read from
// the #TERM block of a .lst file.
type TerminationStatus struct {
	MinimizationSuccessful bool
	RoundingErrors         bool
	MaxEvalsExceeded       bool
	SignificantDigits      float64 // NaN when NONMEM printed none
	FunctionEvaluations    int
	EstimationRuntime      float64 // seconds
}

// LstResult is the content of a NONMEM .lst output file that matters for
// run evaluation.
type LstResult struct {
	Steps            []TerminationStatus
	CovarianceStepOK bool
	CovarianceTime   float64       // seconds
	TotalRuntime     time.Duration // zero when start/stop lines are absent
}

var (
	sigDigitsRe = regexp.MustCompile(`NO\. OF SIG\. DIGITS IN FINAL EST\.:\s*([0-9.]+)`)
	funcEvalsRe = regexp.MustCompile(`NO\. OF FUNCTION EVALUATIONS USED:\s*(\d+)`)
	estTimeRe   = regexp.MustCompile(`Elapsed estimation\s+time in seconds:\s*([0-9.]+)`)
	covTimeRe   = regexp.MustCompile(`Elapsed covariance\s+time in seconds:\s*([0-9.]+)`)
)

const lstTimeLayout = "Mon Jan 2 15:04:05 MST 2006"

// ParseLst reads a .lst file. Anything it cannot find stays at its zero
// value; a .lst cut short mid-run still yields what was written.
func ParseLst(r io.Reader) (*LstResult, error) {
	res := &LstResult{}
	var cur *TerminationStatus
	var start, stop time.Time
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	sawStop := false
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if t, err := parseLstTime(line); err == nil {
				start = t
			}
		}
		if sawStop {
			if t, err := parseLstTime(line); err == nil {
				stop = t
			}
			sawStop = false
		}
		switch {
		case strings.Contains(line, "0MINIMIZATION SUCCESSFUL"):
			res.Steps = append(res.Steps, TerminationStatus{
				MinimizationSuccessful: true, SignificantDigits: math.NaN()})
			cur = &res.Steps[len(res.Steps)-1]
		case strings.Contains(line, "0MINIMIZATION TERMINATED"):
			res.Steps = append(res.Steps, TerminationStatus{SignificantDigits: math.NaN()})
			cur = &res.Steps[len(res.Steps)-1]
		case strings.Contains(line, "DUE TO ROUNDING ERRORS"):
			if cur != nil {
				cur.RoundingErrors = true
			}
		case strings.Contains(line, "MAX. NO. OF FUNCTION EVALUATIONS EXCEEDED"):
			if cur != nil {
				cur.MaxEvalsExceeded = true
			}
		case strings.Contains(line, "STANDARD ERROR OF ESTIMATE"):
			res.CovarianceStepOK = true
		case strings.Contains(line, "Stop Time:"):
			sawStop = true
		}
		if cur != nil {
			if m := sigDigitsRe.FindStringSubmatch(line); m != nil {
				cur.SignificantDigits, _ = strconv.ParseFloat(m[1], 64)
			}
			if m := funcEvalsRe.FindStringSubmatch(line); m != nil {
				cur.FunctionEvaluations, _ = strconv.Atoi(m[1])
			}
			if m := estTimeRe.FindStringSubmatch(line); m != nil {
				cur.EstimationRuntime, _ = strconv.ParseFloat(m[1], 64)
			}
		}
		if m := covTimeRe.FindStringSubmatch(line); m != nil {
			res.CovarianceTime, _ = strconv.ParseFloat(m[1], 64)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !start.IsZero() && !stop.IsZero() {
		res.TotalRuntime = stop.Sub(start)
	}
	return res, nil
}

// ParseLstFile reads a .lst file from disk.
func ParseLstFile(path string) (*LstResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseLst(f)
}

func parseLstTime(line string) (time.Time, error) {
	// NONMEM date lines use day-of-month without zero padding, which
	// collapses the double space of ctime output.
	fields := strings.Fields(strings.TrimSpace(line))
	return time.Parse(lstTimeLayout, strings.Join(fields, " "))
}
