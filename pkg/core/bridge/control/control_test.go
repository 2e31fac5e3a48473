package control

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alphadose/haxmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/exchange/feather"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	"github.com/polyglotlab/sosr/pkg/core/rlang"
	"github.com/polyglotlab/sosr/pkg/repo"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type stubKernel struct {
	id     string
	closed atomic.Bool
}

func (k *stubKernel) ID() string { return k.id }

func (k *stubKernel) Execute(context.Context, string) error { return nil }

func (k *stubKernel) GetResponse(context.Context, string, ...string) ([]*kernel.Message, error) {
	return nil, nil
}

func (k *stubKernel) Stdout(context.Context, string) (string, error) { return "", nil }

func (k *stubKernel) Close(context.Context) error {
	k.closed.Store(true)
	return nil
}

type stubSessionStore struct {
	mu       sync.Mutex
	data     *model.Session
	stales   []*model.Session
	statuses map[int64]model.SessionStatus
	deleted  []int64
}

func (s *stubSessionStore) CreateSession(context.Context, *model.Session) error { return nil }

func (s *stubSessionStore) UpdateSessionStatus(_ context.Context, id int64, status model.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = map[int64]model.SessionStatus{}
	}
	s.statuses[id] = status
	return nil
}

func (s *stubSessionStore) GetSessionByUUID(context.Context, uuid.UUID, ...string) (*model.Session, error) {
	copied := *s.data
	return &copied, nil
}

func (s *stubSessionStore) GetSessionList(context.Context, string, *common.PageReq) (*common.PageResp[[]*model.Session], error) {
	return nil, nil
}

func (s *stubSessionStore) GetStaleSessions(context.Context, ...model.SessionStatus) ([]*model.Session, error) {
	return s.stales, nil
}

func (s *stubSessionStore) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

type stubGateway struct {
	info *model.KernelInfo
}

func (g *stubGateway) StartKernel(context.Context, string) (*model.KernelInfo, error) {
	return g.info, nil
}

func (g *stubGateway) GetKernel(context.Context, string) (*model.KernelInfo, error) {
	return g.info, nil
}

func (g *stubGateway) ListKernels(context.Context) ([]*model.KernelInfo, error) {
	return []*model.KernelInfo{g.info}, nil
}

func (g *stubGateway) DeleteKernel(context.Context, string) error { return nil }

func (g *stubGateway) InterruptKernel(context.Context, string) error { return nil }

func (g *stubGateway) RestartKernel(context.Context, string) (*model.KernelInfo, error) {
	return g.info, nil
}

func (g *stubGateway) ListKernelSpecs(context.Context) (*model.KernelSpecs, error) {
	return &model.KernelSpecs{}, nil
}

func (g *stubGateway) ChannelsURL(string) string { return "" }

func (g *stubGateway) AuthHeader() (string, string) { return "", "" }

func newTestControl(t *testing.T, store *stubSessionStore, dial dialFunc) *control {
	return &control{
		sessionMap:   haxmap.New[string, *liveSession](),
		frames:       feather.New(t.TempDir()),
		gateway:      &stubGateway{info: &model.KernelInfo{ID: "k-1", Name: "ir"}},
		sessionStore: store,
		dial:         dial,
	}
}

func runningSession(UUID uuid.UUID) *model.Session {
	data := &model.Session{
		KernelID:   "k-1",
		KernelName: "ir",
		Status:     model.SessionRunning,
	}
	data.ID = 1
	data.UUID = UUID
	return data
}

// Two callers redialing the same absent session must end up sharing one
// connection, the loser's dial gets closed.
func TestGetLiveConcurrentRedialKeepsOneConnection(t *testing.T) {
	UUID := uuid.NewV4()
	kerns := []*stubKernel{{id: "k-1"}, {id: "k-1"}}

	var dials atomic.Int32
	var barrier sync.WaitGroup
	barrier.Add(2)
	dial := func(context.Context, repo.Gateway, *model.KernelInfo, uuid.UUID) (kernel.Kernel, error) {
		n := dials.Add(1)
		barrier.Done()
		barrier.Wait()
		return kerns[n-1], nil
	}
	ctl := newTestControl(t, &stubSessionStore{data: runningSession(UUID)}, dial)

	lives := make([]*liveSession, 2)
	var wg sync.WaitGroup
	for n := range lives {
		wg.Add(1)
		go func() {
			defer wg.Done()
			live, err := ctl.getLive(context.Background(), UUID)
			assert.NoError(t, err)
			lives[n] = live
		}()
	}
	wg.Wait()

	require.Equal(t, int32(2), dials.Load())
	require.NotNil(t, lives[0])
	assert.Same(t, lives[0], lives[1])

	winner := lives[0].kern.(*stubKernel)
	var closes int
	for _, k := range kerns {
		if k.closed.Load() {
			closes++
			assert.NotSame(t, winner, k)
		}
	}
	assert.Equal(t, 1, closes)
}

func TestGetLiveCachesTheRedial(t *testing.T) {
	UUID := uuid.NewV4()
	var dials atomic.Int32
	dial := func(context.Context, repo.Gateway, *model.KernelInfo, uuid.UUID) (kernel.Kernel, error) {
		dials.Add(1)
		return &stubKernel{id: "k-1"}, nil
	}
	ctl := newTestControl(t, &stubSessionStore{data: runningSession(UUID)}, dial)

	first, err := ctl.getLive(context.Background(), UUID)
	require.NoError(t, err)
	second, err := ctl.getLive(context.Background(), UUID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), dials.Load())
}

func TestSessionInfoCarriesLanguageMetadata(t *testing.T) {
	UUID := uuid.NewV4()
	dial := func(context.Context, repo.Gateway, *model.KernelInfo, uuid.UUID) (kernel.Kernel, error) {
		return &stubKernel{id: "k-1"}, nil
	}
	ctl := newTestControl(t, &stubSessionStore{data: runningSession(UUID)}, dial)

	data, err := ctl.SessionInfo(context.Background(), UUID)
	require.NoError(t, err)
	require.NotNil(t, data.Language)
	assert.Equal(t, constant.LanguageName, data.Language.Name)
	assert.Equal(t, "ir", data.Language.KernelName)
	assert.Equal(t, constant.BackgroundColor, data.Language.BackgroundColor)
	assert.Equal(t, rlang.AssignmentPattern, data.Language.AssignmentPattern)
	assert.Equal(t, rlang.DefaultSigil, data.Language.DefaultSigil)
}

// Orphaned running rows whose kernel is gone get marked dead, rows whose
// kernel the gateway still holds stay redialable.
func TestReapOrphans(t *testing.T) {
	gone := runningSession(uuid.NewV4())
	gone.ID = 2
	gone.KernelID = "k-gone"
	alive := runningSession(uuid.NewV4())
	alive.ID = 3

	store := &stubSessionStore{data: alive, stales: []*model.Session{gone, alive}}
	ctl := newTestControl(t, store, nil)

	ctl.reapOrphans(context.Background())

	assert.Equal(t, model.SessionDead, store.statuses[gone.ID])
	_, touched := store.statuses[alive.ID]
	assert.False(t, touched)
}

func TestDeleteSessionPurgesFinishedRow(t *testing.T) {
	UUID := uuid.NewV4()
	row := runningSession(UUID)
	row.Status = model.SessionClosed
	store := &stubSessionStore{data: row}
	ctl := newTestControl(t, store, nil)

	require.NoError(t, ctl.DeleteSession(context.Background(), UUID))
	assert.Equal(t, []int64{row.ID}, store.deleted)
	assert.Empty(t, store.statuses)
}

func TestTransferMeta(t *testing.T) {
	meta := transferMeta(&rlang.TransferInfo{Warning: "renamed", ByteSize: 12})
	assert.JSONEq(t, `{"warning":"renamed","byte_size":12}`, string(meta))

	meta = transferMeta(&rlang.TransferInfo{ByteSize: 3})
	assert.JSONEq(t, `{"byte_size":3}`, string(meta))
}
