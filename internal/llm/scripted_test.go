package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScripted_MatchesKnownTopics(t *testing.T) {
	backend := NewScripted()
	ctx := context.Background()

	cases := []struct {
		name   string
		prompt string
		want   string
	}{
		{"schedule", "Где посмотреть расписание на завтра?", "расписание занятий"},
		{"dorm", "Как попасть в общежитие?", "общежития"},
		{"exams", "Когда начинается сессия?", "Расписание сессии"},
		{"stipend", "Почему не пришла стипендия?", "Стипендия начисляется"},
		{"documents", "Нужна справка об обучении", "Справки об обучении"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answer, err := backend.Complete(ctx, tc.prompt)
			require.NoError(t, err)
			require.Contains(t, answer, tc.want)
		})
	}
}

func TestScripted_MatchingIsCaseInsensitive(t *testing.T) {
	backend := NewScripted()

	answer, err := backend.Complete(context.Background(), "РАСПИСАНИЕ ПАР")
	require.NoError(t, err)
	require.Contains(t, answer, "расписание занятий")
}

func TestScripted_UnknownTopicGetsFallback(t *testing.T) {
	backend := NewScripted()

	answer, err := backend.Complete(context.Background(), "Напиши мне стихотворение")
	require.NoError(t, err)
	require.Contains(t, answer, "типовые вопросы")
}

func TestScripted_CancelledContext(t *testing.T) {
	backend := NewScripted()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Complete(ctx, "расписание")
	require.ErrorIs(t, err, context.Canceled)
}
