package engineclient

// ComposeRequest описывает запрос на расчёт прочтения.
type ComposeRequest struct {
	UserID      string         `json:"user_id"`
	ReadingType string         `json:"reading_type"`
	Params      map[string]any `json:"params,omitempty"`
}

// ComposeResponse — ответ движка: флаг интерпретации и секции в порядке движка.
type ComposeResponse struct {
	Interpretable bool              `json:"interpretable"`
	Sections      []ComposedSection `json:"sections"`
}

type ComposedSection struct {
	Key     string `json:"key"`
	Preview string `json:"preview"`
	Full    string `json:"full"`
}
