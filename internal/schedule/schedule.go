// Package schedule строит отображаемое недельное расписание психолога из его конфигурации доступности.
package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mmeshcher/emind-bff/internal/format"
	"github.com/mmeshcher/emind-bff/internal/model"
	"github.com/mmeshcher/emind-bff/internal/validation"
)

type weekday struct {
	key   string
	label string
}

// Порядок элементов задаёт порядок дней в результате.
var weekdays = []weekday{
	{key: "monday", label: "Lunes"},
	{key: "tuesday", label: "Martes"},
	{key: "wednesday", label: "Miércoles"},
	{key: "thursday", label: "Jueves"},
	{key: "friday", label: "Viernes"},
	{key: "saturday", label: "Sábado"},
	{key: "sunday", label: "Domingo"},
}

var weekdayIndex = func() map[string]int {
	m := make(map[string]int, len(weekdays))
	for i, d := range weekdays {
		m[d.key] = i
	}
	return m
}()

// Block описывает интервал доступности в 12-часовом формате.
type Block struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Day описывает доступность в один день недели.
type Day struct {
	Day        string  `json:"day"`
	TimeBlocks []Block `json:"timeBlocks"`
}

// FormatSchedule возвращает включённые дни с непустыми интервалами, начиная с понедельника.
// Неизвестные ключи дней игнорируются, порядок интервалов внутри дня сохраняется.
func FormatSchedule(cfg model.WeeklyScheduleConfig) []Day {
	type indexed struct {
		idx int
		day Day
	}

	collected := make([]indexed, 0, len(weekdays))
	for key, ds := range cfg {
		idx, ok := weekdayIndex[key]
		if !ok || !ds.Enabled || len(ds.TimeBlocks) == 0 {
			continue
		}

		blocks := make([]Block, 0, len(ds.TimeBlocks))
		for _, tb := range ds.TimeBlocks {
			blocks = append(blocks, Block{
				Start: format.FormatTime12h(tb.StartTime),
				End:   format.FormatTime12h(tb.EndTime),
			})
		}

		collected = append(collected, indexed{
			idx: idx,
			day: Day{Day: weekdays[idx].label, TimeBlocks: blocks},
		})
	}

	// Порядок обхода map не определён.
	slices.SortFunc(collected, func(a, b indexed) int { return a.idx - b.idx })

	res := make([]Day, 0, len(collected))
	for _, c := range collected {
		res = append(res, c.day)
	}
	return res
}

// ValidationError содержит сообщения об ошибках конфигурации по путям полей.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

// Validate проверяет интервалы тех дней, которые попадут в расписание: формат времени
// и то, что интервал не пустой. Выключенные и пустые дни не проверяются.
func Validate(cfg model.WeeklyScheduleConfig) error {
	v := validation.New()
	fields := make(map[string]string)

	for _, wd := range weekdays {
		ds, ok := cfg[wd.key]
		if !ok || !ds.Enabled || len(ds.TimeBlocks) == 0 {
			continue
		}

		if err := v.Struct(ds); err != nil {
			for ns, msg := range validation.FormatErrors(err) {
				fields[wd.key+"."+strings.TrimPrefix(ns, "DaySchedule.")] = msg
			}
			continue
		}

		for i, tb := range ds.TimeBlocks {
			// Формат уже проверен тегом clock.
			start, _ := time.Parse("15:04", tb.StartTime)
			end, _ := time.Parse("15:04", tb.EndTime)
			if !end.After(start) {
				fields[fmt.Sprintf("%s.TimeBlocks[%d]", wd.key, i)] = "endTime must be after startTime"
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
