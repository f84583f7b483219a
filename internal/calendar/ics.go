// Package calendar renders assembled weather days as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/i474232898/weather-ics/internal/weather"
)

const (
	prodID      = "-//weather-ics//CN"
	maxLineLen  = 75
	refreshRate = "PT1H"
)

// uidNamespace scopes event UIDs so that the same location and date always
// produce the same identifier.
var uidNamespace = uuid.MustParse("6f1d3c1e-4a52-4f7e-9a3b-2b0c8e6d5a91")

// Render produces the calendar document. locationKey identifies the place
// for UID generation; city is the human label.
func Render(days []weather.DailyWeather, city, locationKey string, now time.Time) string {
	var b strings.Builder

	name := "天气预报"
	if city != "" {
		name = city + "天气"
	}

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:"+escapeText(name))
	writeLine(&b, "X-WR-TIMEZONE:Asia/Shanghai")
	writeLine(&b, "REFRESH-INTERVAL;VALUE=DURATION:"+refreshRate)
	writeLine(&b, "X-PUBLISHED-TTL:"+refreshRate)

	stamp := now.UTC().Format("20060102T150405Z")
	for _, day := range days {
		start, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, "UID:"+EventUID(locationKey, day.Date))
		writeLine(&b, "DTSTAMP:"+stamp)
		writeLine(&b, "DTSTART;VALUE=DATE:"+start.Format("20060102"))
		writeLine(&b, "DTEND;VALUE=DATE:"+start.AddDate(0, 0, 1).Format("20060102"))
		writeLine(&b, "SUMMARY:"+escapeText(Summary(day)))
		writeLine(&b, "DESCRIPTION:"+escapeText(Description(day, city)))
		writeLine(&b, "TRANSP:TRANSPARENT")
		writeLine(&b, "END:VEVENT")
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

// EventUID is stable per (location, date).
func EventUID(locationKey, date string) string {
	return uuid.NewSHA1(uidNamespace, []byte(locationKey+"|"+date)).String() + "@weather-ics"
}

// Summary is the one-line event title: pictogram, condition, range.
func Summary(day weather.DailyWeather) string {
	return fmt.Sprintf("%s%s %s~%s℃", weather.Pictogram(day.Text), day.Text, day.TempMin, day.TempMax)
}

// Description is the multi-line event body.
func Description(day weather.DailyWeather, city string) string {
	updated := day.UpdatedAt.In(weather.CivilZone).Format("2006-01-02 15:04")
	if day.FromCache {
		updated += "（缓存数据）"
	}

	lines := []string{
		"更新时间：" + updated,
		"天气：" + day.Text,
		fmt.Sprintf("温度：%s~%s℃", day.TempMin, day.TempMax),
	}
	if day.Wind != "" {
		lines = append(lines, "风向："+day.Wind)
	}
	if day.Sunrise != "" {
		lines = append(lines, "日出："+day.Sunrise)
	}
	if day.Sunset != "" {
		lines = append(lines, "日落："+day.Sunset)
	}
	if city != "" {
		lines = append(lines, "地点："+city)
	}
	return strings.Join(lines, "\n")
}

func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// writeLine folds content lines longer than 75 octets without splitting a
// UTF-8 sequence and terminates them with CRLF.
func writeLine(b *strings.Builder, line string) {
	limit := maxLineLen
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines spend one octet on the leading space.
		limit = maxLineLen - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
