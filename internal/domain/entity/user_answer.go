package entity

// UserAnswer - ответ пользователя на вопрос текущей попытки.
// Добавляется один раз на вопрос и больше не меняется.
type UserAnswer struct {
	QuestionID     uint `json:"questionId"`
	SelectedIndex  int  `json:"selectedOption"`
	IsCorrect      bool `json:"isCorrect"`
	ElapsedSeconds int  `json:"timeSpent"`
}

// TopicScore - счетчики правильных ответов по одной теме
type TopicScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// CompetencyScore - счетчики по всем темам попытки
type CompetencyScore map[Topic]TopicScore

// NewCompetencyScore создает пустые счетчики для каждой темы
func NewCompetencyScore(topics []Topic) CompetencyScore {
	score := make(CompetencyScore, len(topics))
	for _, topic := range topics {
		score[topic] = TopicScore{}
	}
	return score
}

// Record учитывает ответ по теме
func (s CompetencyScore) Record(topic Topic, isCorrect bool) {
	ts := s[topic]
	ts.Total++
	if isCorrect {
		ts.Correct++
	}
	s[topic] = ts
}

// Clone возвращает независимую копию
func (s CompetencyScore) Clone() CompetencyScore {
	out := make(CompetencyScore, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Totals возвращает суммарные значения по всем темам
func (s CompetencyScore) Totals() (correct, total int) {
	for _, ts := range s {
		correct += ts.Correct
		total += ts.Total
	}
	return correct, total
}
