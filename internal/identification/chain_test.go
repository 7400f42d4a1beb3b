package identification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubProvider struct {
	name  string
	res   *Result
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Identify(ctx context.Context, img Image) (*Result, error) {
	s.calls++
	return s.res, s.err
}

func matched(name string) *Result {
	return fromMatches([]Match{{Pest: testPests()[0], Confidence: 80}}, maxAlternatives)
}

func TestChainSkipsFailingProviders(t *testing.T) {
	defer goleak.VerifyNone(t)

	first := &stubProvider{name: "first", err: errors.New("connection refused")}
	second := &stubProvider{name: "second", res: matched("second")}
	fallback := &stubProvider{name: "fallback", res: matched("fallback")}

	chain := NewChain(fallback, first, second)
	res, err := chain.Identify(context.Background(), NewImage("/tmp/x.jpg"))

	require.NoError(t, err)
	assert.Equal(t, "second", res.Provider)
	assert.True(t, res.AnalysisComplete)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainFallsBackWhenAllFail(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("timeout")}
	empty := &stubProvider{name: "empty"}
	fallback := &stubProvider{name: "fallback", res: matched("fallback")}

	chain := NewChain(fallback, first, empty)
	res, err := chain.Identify(context.Background(), NewImage("/tmp/x.jpg"))

	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Provider)
	assert.Equal(t, []string{"first", "empty", "fallback"}, chain.Providers())
}

func TestChainStopsOnNotAgricultural(t *testing.T) {
	first := &stubProvider{name: "first", res: notAgricultural(reasonComputer)}
	second := &stubProvider{name: "second", res: matched("second")}
	fallback := &stubProvider{name: "fallback", res: matched("fallback")}

	res, err := NewChain(fallback, first, second).Identify(context.Background(), NewImage("/tmp/x.jpg"))

	require.NoError(t, err)
	assert.True(t, res.NotAgricultural())
	assert.Nil(t, res.PrimaryMatch)
	assert.NotNil(t, res.AlternativeMatches)
	assert.Equal(t, 0, second.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainNoMatchIsFinal(t *testing.T) {
	first := &stubProvider{name: "first", res: failure(ErrLabelPestNotFound, "nothing")}
	fallback := &stubProvider{name: "fallback", res: matched("fallback")}

	res, err := NewChain(fallback, first).Identify(context.Background(), NewImage("/tmp/x.jpg"))

	require.NoError(t, err)
	assert.Equal(t, ErrLabelPestNotFound, res.Error)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainWithoutFallback(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("boom")}

	_, err := NewChain(nil, first).Identify(context.Background(), NewImage("/tmp/x.jpg"))
	assert.Error(t, err)
}

func TestChainHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &stubProvider{name: "first", res: matched("first")}
	_, err := NewChain(nil, first).Identify(ctx, NewImage("/tmp/x.jpg"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.calls)
}
