// internal/llm/scripted.go
package llm

import (
	"context"
	"strings"
)

// scriptedRule maps trigger words to a canned answer.
type scriptedRule struct {
	triggers []string
	answer   string
}

// ScriptedBackend is the offline "scenario" mode: keyword-matched
// answers for a narrow set of campus questions. It never calls the
// network, so it is cheap and always available.
type ScriptedBackend struct {
	rules    []scriptedRule
	fallback string
}

func NewScripted() *ScriptedBackend {
	return &ScriptedBackend{
		rules: []scriptedRule{
			{
				triggers: []string{"расписан", "пары", "занят"},
				answer: "Актуальное расписание занятий доступно в личном кабинете на " +
					"портале университета и в мобильном приложении.",
			},
			{
				triggers: []string{"общежит", "заселен"},
				answer: "По вопросам общежития обращайтесь в студенческий офис. " +
					"Заселение проходит в конце августа по графику факультетов.",
			},
			{
				triggers: []string{"сессия", "экзамен", "зачет", "зачёт"},
				answer: "Расписание сессии публикуется за две недели до её начала. " +
					"Пересдачи назначает деканат после окончания основной сессии.",
			},
			{
				triggers: []string{"стипенд"},
				answer: "Стипендия начисляется до 25 числа каждого месяца. " +
					"Вопросы по выплатам — в бухгалтерию или студенческий офис.",
			},
			{
				triggers: []string{"справк", "документ"},
				answer: "Справки об обучении заказываются через личный кабинет, " +
					"готовность — до трёх рабочих дней.",
			},
		},
		fallback: "Я отвечаю только на типовые вопросы об учёбе: расписание, " +
			"общежитие, сессия, стипендия, справки. Для остального попробуйте AI-модель.",
	}
}

func (b *ScriptedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lowered := strings.ToLower(prompt)
	for _, rule := range b.rules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lowered, trigger) {
				return rule.answer, nil
			}
		}
	}
	return b.fallback, nil
}
