package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bratishka/bratishka/internal/models"
	"github.com/dlclark/regexp2"
)

// Kind identifies which expression class produced a resolution.
type Kind int

const (
	KindNow Kind = iota
	KindDuration
	KindYesterday
	KindAllTime
	KindDefault
)

func (k Kind) String() string {
	switch k {
	case KindNow:
		return "now"
	case KindDuration:
		return "duration"
	case KindYesterday:
		return "yesterday"
	case KindAllTime:
		return "all_time"
	default:
		return "default"
	}
}

// Resolution is a resolved time window together with the class that matched
// and a human-readable description for rendering in replies.
type Resolution struct {
	Window      models.TimeWindow
	Kind        Kind
	Description string
}

// nowWindow is the lookback applied to "right now" phrasings.
const nowWindow = 10 * time.Minute

// epochMin is the lower bound used for "all time" windows.
var epochMin = time.Unix(0, 0).UTC()

var nowPatterns = compileAll(
	`прямо\s+сейчас`,
	`только\s+что`,
	`сию\s+минуту`,
	`минуту\s+назад`,
	`right\s+now`,
	`just\s+now`,
	`this\s+moment`,
)

var yesterdayPatterns = compileAll(
	`вчера`,
	`вчерашн`,
	`yesterday`,
)

var allTimePatterns = compileAll(
	`вс[её]\s+время`,
	`с\s+(?:самого\s+)?начала`,
	`all\s+time`,
	`entire\s+history`,
	`whole\s+history`,
)

// durationPatterns extract "last N <unit>" style expressions. The gap class
// between the cue word and the number tolerates filler words like
// "за последние 30 минут". Each pattern captures the magnitude in group 1.
var durationPatterns = []struct {
	re   *regexp2.Regexp
	unit time.Duration
	name string
}{
	{compile(`(?:за|последн\w*|last|past)[^\d-]{0,16}(-?\d+)\s*(?:минут\w*|мин\b|minutes?\b|mins?\b)`), time.Minute, "минут"},
	{compile(`(?:за|последн\w*|last|past)[^\d-]{0,16}(-?\d+)\s*(?:час\w*|hours?\b|hrs?\b)`), time.Hour, "часов"},
	{compile(`(?:за|последн\w*|last|past)[^\d-]{0,16}(-?\d+)\s*(?:дн\w*|сут\w*|days?\b)`), 24 * time.Hour, "дней"},
	{compile(`(?:за|последн\w*|last|past)[^\d-]{0,16}(-?\d+)\s*(?:недел\w*|weeks?\b)`), 7 * 24 * time.Hour, "недель"},
}

func compile(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.IgnoreCase)
}

func compileAll(patterns ...string) []*regexp2.Regexp {
	res := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, compile(p))
	}
	return res
}

func anyMatch(res []*regexp2.Regexp, s string) bool {
	for _, re := range res {
		if m, _ := re.FindStringMatch(s); m != nil {
			return true
		}
	}
	return false
}

// Resolver turns free-text time expressions into concrete windows.
// Expression classes are tried in fixed priority order: relative-now,
// relative-duration, yesterday, all-time. Text matching none of them falls
// back to the configured default window; that is a policy default, not a
// parse failure.
type Resolver struct {
	defaultWindow time.Duration
	loc           *time.Location
}

// New returns a Resolver with the given fallback window and time zone used
// for calendar-relative expressions.
func New(defaultWindow time.Duration, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{defaultWindow: defaultWindow, loc: loc}
}

// Resolve maps expr to a half-open window [start, end) anchored at now.
// The only error it returns is a *MagnitudeError for non-positive "last N"
// magnitudes; ErrUnrecognized is absorbed into the default window.
func (r *Resolver) Resolve(expr string, now time.Time) (Resolution, error) {
	res, err := r.match(expr, now)
	if errors.Is(err, ErrUnrecognized) {
		return r.defaultResolution(now), nil
	}
	return res, err
}

func (r *Resolver) match(expr string, now time.Time) (Resolution, error) {
	text := strings.ToLower(strings.TrimSpace(expr))

	if anyMatch(nowPatterns, text) {
		return Resolution{
			Window:      models.TimeWindow{Start: now.Add(-nowWindow), End: now},
			Kind:        KindNow,
			Description: "за последние 10 минут",
		}, nil
	}

	for _, p := range durationPatterns {
		m, _ := p.re.FindStringMatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m.GroupByNumber(1).String())
		if err != nil {
			continue
		}
		if n <= 0 {
			return Resolution{}, &MagnitudeError{Value: n}
		}
		d := time.Duration(n) * p.unit
		return Resolution{
			Window:      models.TimeWindow{Start: now.Add(-d), End: now},
			Kind:        KindDuration,
			Description: fmt.Sprintf("за последние %d %s", n, p.name),
		}, nil
	}

	if anyMatch(yesterdayPatterns, text) {
		local := now.In(r.loc)
		y, m, d := local.Date()
		todayStart := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
		return Resolution{
			Window:      models.TimeWindow{Start: todayStart.AddDate(0, 0, -1), End: todayStart},
			Kind:        KindYesterday,
			Description: "за вчерашний день",
		}, nil
	}

	if anyMatch(allTimePatterns, text) {
		return Resolution{
			Window:      models.TimeWindow{Start: epochMin, End: now},
			Kind:        KindAllTime,
			Description: "за всё время",
		}, nil
	}

	return Resolution{}, ErrUnrecognized
}

func (r *Resolver) defaultResolution(now time.Time) Resolution {
	hours := int(r.defaultWindow / time.Hour)
	return Resolution{
		Window:      models.TimeWindow{Start: now.Add(-r.defaultWindow), End: now},
		Kind:        KindDefault,
		Description: fmt.Sprintf("за последние %d ч.", hours),
	}
}
