package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryInOrder(t *testing.T) {
	ctx := context.Background()
	hard := errors.New("boom")

	var rejected []string
	onReject := func(name string, _ error) { rejected = append(rejected, name) }

	result, name, err := tryInOrder(ctx, []tier[int]{
		{name: "first", run: func(context.Context) (int, error) { return 0, hard }},
		{name: "second", run: func(context.Context) (int, error) {
			return 0, &SoftFailure{Tier: "second", Reason: "near straight"}
		}},
		{name: "third", run: func(context.Context) (int, error) { return 3, nil }},
		{name: "fourth", run: func(context.Context) (int, error) {
			t.Fatal("tiers after a success must not run")
			return 0, nil
		}},
	}, onReject)

	require.NoError(t, err)
	assert.Equal(t, 3, result)
	assert.Equal(t, "third", name)
	assert.Equal(t, []string{"first", "second"}, rejected)
}

func TestTryInOrder_AllFail(t *testing.T) {
	last := &SoftFailure{Tier: "b", Reason: "no routes"}

	_, name, err := tryInOrder(context.Background(), []tier[string]{
		{name: "a", run: func(context.Context) (string, error) { return "", errors.New("a") }},
		{name: "b", run: func(context.Context) (string, error) { return "", last }},
	}, nil)

	assert.Empty(t, name)
	var soft *SoftFailure
	require.ErrorAs(t, err, &soft)
	assert.Same(t, last, soft)
}

func TestTryInOrder_Empty(t *testing.T) {
	_, _, err := tryInOrder[int](context.Background(), nil, nil)
	assert.ErrorIs(t, err, errNoTiers)
}
