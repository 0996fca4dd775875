// Package sl содержит вспомогательные функции для работы с логгером slog.
// Поля лога для ошибок и идентификаторов называются одинаково во всех пакетах.
package sl

import (
	"io"
	"log/slog"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

// New создаёт логгер под окружение: local пишет текст с уровнем debug,
// prod пишет JSON с уровнем info, остальные окружения пишут текст с уровнем info.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to debit credits", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// User возвращает атрибут с идентификатором пользователя.
func User(id string) slog.Attr {
	return slog.String("user_id", id)
}
