// Package utcday содержит вычисления календарных окон в UTC.
//
// Дневные лимиты сбрасываются на границе UTC, а не в полночь по местному
// времени пользователя.
package utcday

import "time"

// Start возвращает начало UTC‑суток, которым принадлежит t.
func Start(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Next возвращает начало следующих UTC‑суток.
func Next(t time.Time) time.Time {
	return Start(t).AddDate(0, 0, 1)
}

// Same сообщает, что a и b попадают в одни UTC‑сутки.
func Same(a, b time.Time) bool {
	return Start(a).Equal(Start(b))
}

// UntilReset возвращает время до сброса дневного окна.
func UntilReset(now time.Time) time.Duration {
	return Next(now).Sub(now.UTC())
}

// PeriodEnd считает конец оплаченного периода длиной days дней.
// Продление отсчитывается от более позднего из now и текущего конца периода.
func PeriodEnd(now, currentEnd time.Time, days int) time.Time {
	from := now.UTC()
	if currentEnd.After(from) {
		from = currentEnd.UTC()
	}
	return from.AddDate(0, 0, days)
}
