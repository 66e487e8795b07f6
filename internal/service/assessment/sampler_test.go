package assessment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

func countByTopic(qs []entity.Question) map[entity.Topic]int {
	counts := make(map[entity.Topic]int)
	for _, q := range qs {
		counts[q.Topic]++
	}
	return counts
}

func TestSampler_RespectsQuotaPerTopic(t *testing.T) {
	tests := []struct {
		name       string
		pool       Pool
		wantCounts map[entity.Topic]int
		wantTotal  int
	}{
		{
			name:       "полный банк",
			pool:       makePool(30, 30, 30),
			wantCounts: map[entity.Topic]int{entity.TopicHTML: 7, entity.TopicCSS: 7, entity.TopicJavaScript: 7},
			wantTotal:  21,
		},
		{
			name:       "тема scripting исчерпана",
			pool:       makePool(10, 10, 2),
			wantCounts: map[entity.Topic]int{entity.TopicHTML: 7, entity.TopicCSS: 7, entity.TopicJavaScript: 2},
			wantTotal:  16,
		},
		{
			name:       "ровно по квоте",
			pool:       makePool(7, 7, 7),
			wantCounts: map[entity.Topic]int{entity.TopicHTML: 7, entity.TopicCSS: 7, entity.TopicJavaScript: 7},
			wantTotal:  21,
		},
		{
			name:       "пустая тема",
			pool:       makePool(3, 0, 9),
			wantCounts: map[entity.Topic]int{entity.TopicHTML: 3, entity.TopicJavaScript: 7},
			wantTotal:  10,
		},
		{
			name:       "пустой банк",
			pool:       Pool{},
			wantCounts: map[entity.Topic]int{},
			wantTotal:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := NewSampler(rand.New(rand.NewSource(42)))

			got := sampler.Sample(tt.pool, entity.DefaultTopics(), 7)

			assert.Len(t, got, tt.wantTotal)
			assert.Equal(t, tt.wantCounts, countByTopic(got))
		})
	}
}

func TestSampler_NoDuplicates(t *testing.T) {
	pool := makePool(15, 9, 20)

	for seed := int64(0); seed < 50; seed++ {
		sampler := NewSampler(rand.New(rand.NewSource(seed)))
		got := sampler.Sample(pool, entity.DefaultTopics(), 7)

		seen := make(map[uint]bool, len(got))
		for _, q := range got {
			require.False(t, seen[q.ID], "Вопрос %d выбран дважды (seed=%d)", q.ID, seed)
			seen[q.ID] = true
		}
	}
}

func TestSampler_SameSeedReproducible(t *testing.T) {
	pool := makePool(20, 20, 20)

	first := NewSampler(rand.New(rand.NewSource(7))).Sample(pool, entity.DefaultTopics(), 7)
	second := NewSampler(rand.New(rand.NewSource(7))).Sample(pool, entity.DefaultTopics(), 7)

	assert.Equal(t, first, second, "Одинаковый seed должен давать одинаковую выборку")
}

func TestSampler_OrderIsShuffledAcrossTopics(t *testing.T) {
	// Arrange: квота равна размеру темы, значит состав фиксирован и меняется только порядок
	pool := makePool(7, 7, 7)
	sampler := NewSampler(rand.New(rand.NewSource(1)))

	// Act
	got := sampler.Sample(pool, entity.DefaultTopics(), 7)

	// Assert: порядок не совпадает с порядком тем в банке
	var inputOrder []uint
	for _, topic := range entity.DefaultTopics() {
		for _, q := range pool[topic] {
			inputOrder = append(inputOrder, q.ID)
		}
	}
	var outputOrder []uint
	for _, q := range got {
		outputOrder = append(outputOrder, q.ID)
	}
	assert.ElementsMatch(t, inputOrder, outputOrder)
	assert.NotEqual(t, inputOrder, outputOrder, "Выборка не должна сохранять порядок банка")

	// Темы не должны идти сплошными блоками
	clustered := true
	for i := 1; i < 7; i++ {
		if got[i].Topic != got[0].Topic {
			clustered = false
			break
		}
	}
	assert.False(t, clustered, "Первые 7 вопросов не должны быть одной темы")
}

func TestSampler_DoesNotMutatePool(t *testing.T) {
	pool := makePool(10, 10, 10)
	original := append([]entity.Question(nil), pool[entity.TopicHTML]...)

	NewSampler(rand.New(rand.NewSource(3))).Sample(pool, entity.DefaultTopics(), 7)

	assert.Equal(t, original, pool[entity.TopicHTML], "Банк вопросов не должен изменяться")
}

func TestSampler_DistributionIsUniform(t *testing.T) {
	// Каждый из 10 вопросов должен выбираться примерно в 7/10 случаев
	pool := Pool{entity.TopicHTML: makeQuestions(entity.TopicHTML, 1, 10)}
	sampler := NewSampler(rand.New(rand.NewSource(99)))

	const runs = 5000
	hits := make(map[uint]int)
	for i := 0; i < runs; i++ {
		for _, q := range sampler.Sample(pool, []entity.Topic{entity.TopicHTML}, 7) {
			hits[q.ID]++
		}
	}

	for id := uint(1); id <= 10; id++ {
		ratio := float64(hits[id]) / runs
		assert.InDelta(t, 0.7, ratio, 0.05, "Вопрос %d выбирается неравномерно", id)
	}
}
