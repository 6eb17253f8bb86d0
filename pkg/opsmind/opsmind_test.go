package opsmind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/opsmind/pkg/config"
	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/gen/adapters/mock"
	"github.com/opsmind/opsmind/pkg/mem/manager"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// recordingManager wraps a real manager-compatible fake so tests can
// assert what was appended and inject failures.
type recordingManager struct {
	searchResults []store.MemoryRecord
	searchErr     error
	appendErr     error

	appended []appendedRecord
}

type appendedRecord struct {
	Content string
	Kind    string
}

func (m *recordingManager) Append(ctx context.Context, content string, kind string) (string, error) {
	if _, ok := owner.GetOwnerContext(ctx); !ok {
		return "", owner.ErrMissingOwnerContext
	}
	if m.appendErr != nil {
		return "", m.appendErr
	}
	m.appended = append(m.appended, appendedRecord{Content: content, Kind: kind})
	return "id-1", nil
}

func (m *recordingManager) Search(ctx context.Context, queryText string, limit int) ([]store.MemoryRecord, error) {
	if _, ok := owner.GetOwnerContext(ctx); !ok {
		return nil, owner.ErrMissingOwnerContext
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

var _ manager.Manager = (*recordingManager)(nil)

func ownerContext(id string) context.Context {
	return owner.ContextWithOwnerID(context.Background(), owner.ID(id))
}

func testConfig() Config {
	return Config{
		RetrievalLimit: 5,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	}
}

func TestAsk_MissingOwnerContext(t *testing.T) {
	assistant := New(&recordingManager{}, mock.NewMockEngine(), testConfig())

	_, err := assistant.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, owner.ErrMissingOwnerContext)
}

func TestAsk_EmptyInput(t *testing.T) {
	assistant := New(&recordingManager{}, mock.NewMockEngine(), testConfig())

	_, err := assistant.Ask(ownerContext("team-platform"), "")
	assert.Error(t, err)
}

func TestAsk_HappyPath(t *testing.T) {
	mgr := &recordingManager{
		searchResults: []store.MemoryRecord{
			{ID: "m1", Content: "Use Terraform for provisioning"},
		},
	}
	engine := mock.NewMockEngine(mock.WithDefaultResponse("Create a VPC with the terraform module."))
	assistant := New(mgr, engine, testConfig())

	answer, err := assistant.Ask(ownerContext("team-platform"), "how do I provision a VPC")
	require.NoError(t, err)
	assert.Equal(t, "Create a VPC with the terraform module.", answer.Text)
	assert.Empty(t, answer.Warnings)
	assert.Equal(t, 1, answer.Attempts)
	require.Len(t, answer.MemoriesUsed, 1)
	assert.Equal(t, "m1", answer.MemoriesUsed[0].ID)

	// Request then response were persisted, in that order
	require.Len(t, mgr.appended, 2)
	assert.Equal(t, store.KindUserRequest, mgr.appended[0].Kind)
	assert.Equal(t, "how do I provision a VPC", mgr.appended[0].Content)
	assert.Equal(t, store.KindGeneratedResponse, mgr.appended[1].Kind)
	assert.Equal(t, "Create a VPC with the terraform module.", mgr.appended[1].Content)
}

func TestAsk_RecalledMemoriesReachThePrompt(t *testing.T) {
	mgr := &recordingManager{
		searchResults: []store.MemoryRecord{
			{ID: "m1", Content: "Use Terraform for provisioning"},
		},
	}
	engine := mock.NewMockEngine()
	engine.AddResponse("Use Terraform for provisioning", "memory made it into the prompt")
	assistant := New(mgr, engine, testConfig())

	answer, err := assistant.Ask(ownerContext("team-platform"), "how do I provision a VPC")
	require.NoError(t, err)
	assert.Equal(t, "memory made it into the prompt", answer.Text)
}

func TestAsk_RetrievalFailureAborts(t *testing.T) {
	mgr := &recordingManager{
		searchErr: errs.Wrap(errs.ErrStoreUnavailable, "connection refused"),
	}
	engine := mock.NewMockEngine()
	assistant := New(mgr, engine, testConfig())

	_, err := assistant.Ask(ownerContext("team-platform"), "anything")
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)

	// The engine was never consulted and nothing was persisted
	assert.Zero(t, engine.GenerateCallCount())
	assert.Empty(t, mgr.appended)
}

func TestAsk_TransientFailureRetriesThenSucceeds(t *testing.T) {
	mgr := &recordingManager{}
	engine := mock.NewMockEngine(
		mock.WithTransientFailures(2),
		mock.WithDefaultResponse("recovered"),
	)
	assistant := New(mgr, engine, testConfig())

	answer, err := assistant.Ask(ownerContext("team-platform"), "flaky request")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer.Text)
	assert.Equal(t, 3, engine.GenerateCallCount())
	assert.Equal(t, 3, answer.Attempts)
	assert.Len(t, mgr.appended, 2)
}

func TestAsk_RetriesExhausted(t *testing.T) {
	mgr := &recordingManager{}
	engine := mock.NewMockEngine(mock.WithTransientFailures(10))
	assistant := New(mgr, engine, testConfig())

	_, err := assistant.Ask(ownerContext("team-platform"), "hopeless request")
	require.Error(t, err)

	// MaxRetries=2 means three attempts total, then nothing persisted
	assert.Equal(t, 3, engine.GenerateCallCount())
	assert.Empty(t, mgr.appended)
}

func TestAsk_FatalFailureDoesNotRetry(t *testing.T) {
	mgr := &recordingManager{}
	engine := mock.NewMockEngine(mock.WithFatalError())
	assistant := New(mgr, engine, testConfig())

	_, err := assistant.Ask(ownerContext("team-platform"), "bad request")
	require.Error(t, err)
	assert.Equal(t, 1, engine.GenerateCallCount())
	assert.Empty(t, mgr.appended)
}

func TestAsk_PersistFailureReturnsAnswerWithWarnings(t *testing.T) {
	mgr := &recordingManager{
		appendErr: errors.New("disk full"),
	}
	engine := mock.NewMockEngine(mock.WithDefaultResponse("still useful answer"))
	assistant := New(mgr, engine, testConfig())

	answer, err := assistant.Ask(ownerContext("team-platform"), "request")
	require.NoError(t, err)
	assert.Equal(t, "still useful answer", answer.Text)
	assert.Len(t, answer.Warnings, 2)
}

func TestAsk_SessionHistoryCarriesAcrossTurns(t *testing.T) {
	mgr := &recordingManager{}
	engine := mock.NewMockEngine(mock.WithDefaultResponse("fallback"))
	engine.AddResponse("first question", "follow-up saw the history")
	assistant := New(mgr, engine, testConfig())

	ctx := ownerContext("team-platform")

	_, err := assistant.Ask(ctx, "first question")
	require.NoError(t, err)

	// The second prompt contains the first exchange in its history
	// section, so the canned substring match fires again.
	answer, err := assistant.Ask(ctx, "second question")
	require.NoError(t, err)
	assert.Equal(t, "follow-up saw the history", answer.Text)
}

func TestAsk_SessionsAreScopedToOwner(t *testing.T) {
	mgr := &recordingManager{}
	engine := mock.NewMockEngine(mock.WithDefaultResponse("fallback"))
	engine.AddResponse("platform secret question", "history leaked")
	assistant := New(mgr, engine, testConfig())

	_, err := assistant.Ask(ownerContext("team-platform"), "platform secret question")
	require.NoError(t, err)

	// A different owner's session has no trace of the first exchange
	answer, err := assistant.Ask(ownerContext("team-billing"), "unrelated question")
	require.NoError(t, err)
	assert.Equal(t, "fallback", answer.Text)
}

func TestRemember(t *testing.T) {
	mgr := &recordingManager{}
	assistant := New(mgr, mock.NewMockEngine(), testConfig())

	id, err := assistant.Remember(ownerContext("team-platform"), "always pin image digests")
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	require.Len(t, mgr.appended, 1)
	assert.Equal(t, store.KindUserRequest, mgr.appended[0].Kind)

	_, err = assistant.Remember(ownerContext("team-platform"), "")
	assert.Error(t, err)
}

func TestRecall(t *testing.T) {
	mgr := &recordingManager{
		searchResults: []store.MemoryRecord{
			{ID: "m1", Content: "first"},
			{ID: "m2", Content: "second"},
		},
	}
	assistant := New(mgr, mock.NewMockEngine(), testConfig())

	memories, err := assistant.Recall(ownerContext("team-platform"), "anything")
	require.NoError(t, err)
	assert.Len(t, memories, 2)
}

func TestNewFromConfig_InmemAndMock(t *testing.T) {
	assistant, err := NewFromConfig(configForTest())
	require.NoError(t, err)

	ctx := ownerContext("team-platform")
	_, err = assistant.Remember(ctx, "Use Terraform for provisioning infrastructure")
	require.NoError(t, err)

	answer, err := assistant.Ask(ctx, "how do I provision infrastructure")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	require.NotEmpty(t, answer.MemoriesUsed)
	assert.Equal(t, "Use Terraform for provisioning infrastructure", answer.MemoriesUsed[0].Content)
}

func TestDefaultConfig_RecallRanksByRelevanceNotRecency(t *testing.T) {
	assistant, err := NewFromConfig(config.Default())
	require.NoError(t, err)

	ctx := ownerContext("team-platform")
	_, err = assistant.Remember(ctx, "Use Terraform for provisioning")
	require.NoError(t, err)
	_, err = assistant.Remember(ctx, "Use Docker for packaging")
	require.NoError(t, err)

	// The Docker memory is more recent; relevance must still win
	memories, err := assistant.Recall(ctx, "how do I provision infrastructure")
	require.NoError(t, err)
	require.NotEmpty(t, memories)
	assert.Equal(t, "Use Terraform for provisioning", memories[0].Content)
}

func configForTest() *config.Config {
	cfg := config.Default()
	cfg.Memory.Type = "inmem"
	cfg.Generation.Provider = "mock"
	return cfg
}
