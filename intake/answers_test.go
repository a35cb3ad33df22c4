package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswersRoundTrip(t *testing.T) {
	payload := []byte(`{"email":"a@x.com","topics":["A","C"],"age":42}`)

	var answers Answers
	require.NoError(t, json.Unmarshal(payload, &answers))

	assert.Equal(t, "a@x.com", answers.Get("email").Text())
	assert.False(t, answers.Get("email").IsMulti())

	topics := answers.Get("topics")
	require.True(t, topics.IsMulti())
	assert.Equal(t, []string{"A", "C"}, topics.List())

	// Loosely built forms submit numbers; the literal text is kept.
	assert.Equal(t, "42", answers.Get("age").Text())

	out, err := json.Marshal(answers)
	require.NoError(t, err)

	var again Answers
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, []string{"A", "C"}, again.Get("topics").List())
	assert.Equal(t, "a@x.com", again.Get("email").Text())
}

func TestAnswerValueEmpty(t *testing.T) {
	assert.True(t, Text("").Empty())
	assert.True(t, Text("   ").Empty())
	assert.False(t, Text("x").Empty())
	assert.True(t, Choices().Empty())
	assert.False(t, Choices("A").Empty())

	var missing Answers
	assert.True(t, missing.Get("anything").Empty())
}

func TestAnswerValueListForScalar(t *testing.T) {
	assert.Equal(t, []string{"yes"}, Text("yes").List())
	assert.Nil(t, Text("").List())
}

func TestAnswerValueNull(t *testing.T) {
	var a AnswerValue
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.True(t, a.Empty())
}
