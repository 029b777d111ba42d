// Package format преобразует даты и время из ответов API в строки для отображения.
package format

import "time"

var isoDateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// FormatDate отображает ISO-8601 дату в виде dd/MM/yyyy.
// Пустая строка даёт пустую строку, нераспознанная строка возвращается без изменений.
func FormatDate(iso string) string {
	if iso == "" {
		return ""
	}

	for _, layout := range isoDateLayouts {
		// День берётся как записан в строке, без пересчёта часового пояса.
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("02/01/2006")
		}
	}

	return iso
}

// FormatTime сокращает HH:MM:SS до HH:MM.
func FormatTime(hhmmss string) string {
	if len(hhmmss) < 5 {
		return hhmmss
	}
	return hhmmss[:5]
}

// FormatTime12h переводит время HH:MM (или HH:MM:SS) в 12-часовой формат h:MM AM/PM.
// Некорректная строка возвращается без изменений.
func FormatTime12h(hhmm string) string {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, hhmm); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return hhmm
}
