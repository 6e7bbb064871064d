package task

import (
	"context"
	"log"

	"ytmp3/config"
	"ytmp3/policy"
)

// Manager wires admission, creation and startup of conversion tasks. It owns
// the registry and the base context that every task's cancellation token
// derives from, so shutting the manager down kills running conversions.
type Manager struct {
	cfg      *config.Config
	source   Source
	coder    Transcoder
	registry *Registry
	base     context.Context
}

func NewManager(cfg *config.Config, source Source, coder Transcoder) *Manager {
	return &Manager{
		cfg:      cfg,
		source:   source,
		coder:    coder,
		registry: NewRegistry(cfg.MaxQueueSize),
		base:     context.Background(),
	}
}

// Start installs the lifecycle context. Call it before serving requests.
func (m *Manager) Start(ctx context.Context) {
	log.Println("Conversion manager started. Queue capacity:", m.cfg.MaxQueueSize)
	m.base = ctx
}

// Begin runs the full admission sequence for one conversion request:
// reserve the requester's slot, create the task (metadata fetch + duration
// policy check), bind it, and start it. The slot is released again on any
// creation failure, so NotFound/TooLong never leak a reservation.
func (m *Manager) Begin(ctx context.Context, requester, videoID string) (*Task, error) {
	if err := m.registry.Admit(requester); err != nil {
		return nil, err
	}

	t, err := m.create(ctx, videoID)
	if err != nil {
		m.registry.Release(requester)
		return nil, err
	}

	m.registry.Bind(requester, t)
	t.Start()
	return t, nil
}

// create fetches metadata, validates it against the duration policy and
// returns an Unstarted task. No process is spawned here.
func (m *Manager) create(ctx context.Context, videoID string) (*Task, error) {
	info, err := m.source.FetchInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(info.LengthSeconds, m.cfg.Bitrate); err != nil {
		return nil, err
	}

	var tctx context.Context
	var cancel context.CancelFunc
	if m.cfg.FFTimeout > 0 {
		tctx, cancel = context.WithTimeout(m.base, m.cfg.FFTimeout)
	} else {
		tctx, cancel = context.WithCancel(m.base)
	}

	return &Task{
		ID:       info.ID,
		Bitrate:  m.cfg.Bitrate,
		Info:     info,
		basePath: m.cfg.DownloadBasePath,
		source:   m.source,
		coder:    m.coder,
		status:   StatusUnstarted,
		ctx:      tctx,
		cancel:   cancel,
		progress: make(chan int, 16),
		done:     make(chan Outcome, 1),
	}, nil
}

// Cancel routes a cancellation to the requester's active task. It reports
// whether a task was found; the cancel itself is cooperative and may still be
// a no-op if the task already terminated.
func (m *Manager) Cancel(requester string) bool {
	t, ok := m.registry.Lookup(requester)
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Lookup returns the requester's active task, if any.
func (m *Manager) Lookup(requester string) (*Task, bool) {
	return m.registry.Lookup(requester)
}

// Release frees the requester's admission slot.
func (m *Manager) Release(requester string) {
	m.registry.Release(requester)
}

// ActiveCount reports how many admission slots are in use.
func (m *Manager) ActiveCount() int {
	return m.registry.Len()
}
