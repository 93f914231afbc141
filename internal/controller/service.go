// Package controller drives OBS scene selection from broadcast board state.
package controller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/chessobs/internal/board"
	"github.com/dgnsrekt/chessobs/internal/lichess"
	"github.com/dgnsrekt/chessobs/internal/mapping"
	"github.com/dgnsrekt/chessobs/internal/notify"
	"github.com/dgnsrekt/chessobs/internal/obsws"
	"github.com/dgnsrekt/chessobs/internal/relay"
	"github.com/dgnsrekt/chessobs/internal/telemetry"
)

// SSE feed names published by the director.
const (
	FeedOBS      = "obs"
	FeedSwitch   = "switch"
	FeedBoard    = "board"
	FeedPresence = "presence"
	FeedMapping  = "mapping"
)

// Recorder persists director events. journal.Writer implements it.
type Recorder interface {
	Record(v any) error
}

// Deps are the collaborators a Service is built from. Broker, Notifier,
// Journal and Lichess may be nil.
type Deps struct {
	OBS         *obsws.Client
	OBSURL      string
	OBSPassword string
	Store       mapping.Store
	Lichess     *lichess.Client
	Broker      *relay.Broker
	Notifier    *notify.Notifier
	Journal     Recorder
}

// Service owns the scene mapping and the director state.
type Service struct {
	obs      *obsws.Client
	store    mapping.Store
	lichess  *lichess.Client
	broker   *relay.Broker
	notifier *notify.Notifier
	journal  Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	obsURL      string
	obsPassword string
	mapping     mapping.Mapping
	current     board.Info
	activeKey   string
	activeScene string
	warned      map[string]bool
	manual      bool
	presence    map[string]board.Presence

	saveMu sync.Mutex
}

func NewService(d Deps) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		obs:         d.OBS,
		store:       d.Store,
		lichess:     d.Lichess,
		broker:      d.Broker,
		notifier:    d.Notifier,
		journal:     d.Journal,
		ctx:         ctx,
		cancel:      cancel,
		obsURL:      d.OBSURL,
		obsPassword: d.OBSPassword,
		mapping:     mapping.Mapping{},
		warned:      make(map[string]bool),
		presence:    make(map[string]board.Presence),
	}
	if s.lichess == nil {
		s.lichess = lichess.NewClient("", nil)
	}
	s.obs.OnConnectionChanged(s.HandleConnectionChanged)
	return s
}

// LoadMapping replaces the in-memory mapping with the stored one.
func (s *Service) LoadMapping(ctx context.Context) error {
	m, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mapping = m
	s.mu.Unlock()
	slog.Info("loaded scene mapping", "boards", len(m))
	return nil
}

// Close stops in-flight switches from recording results and waits for them.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every switch started so far has finished.
func (s *Service) Wait() { s.wg.Wait() }

// OBSStatus is the connection summary served by the API.
type OBSStatus struct {
	Connected        bool   `json:"connected"`
	State            string `json:"state"`
	URL              string `json:"url"`
	SceneCount       int    `json:"scene_count"`
	SwitchInProgress bool   `json:"switch_in_progress"`
}

func (s *Service) OBSStatus() OBSStatus {
	return OBSStatus{
		Connected:        s.obs.Connected(),
		State:            s.obs.State().String(),
		URL:              s.obs.URL(),
		SceneCount:       len(s.obs.Scenes()),
		SwitchInProgress: s.obs.SwitchInProgress(),
	}
}

// ConnectOBS (re)connects to OBS. Empty arguments fall back to the
// configured URL and password; non-empty ones replace them.
func (s *Service) ConnectOBS(ctx context.Context, url, password string) (OBSStatus, error) {
	s.mu.Lock()
	if u := strings.TrimSpace(url); u != "" {
		s.obsURL = u
	}
	if password != "" {
		s.obsPassword = password
	}
	url, password = s.obsURL, s.obsPassword
	s.manual = true
	s.mu.Unlock()

	if err := requireNonEmpty(url, "url"); err != nil {
		return OBSStatus{}, err
	}
	slog.Info("connecting to obs", "url", url)
	if err := s.obs.Connect(ctx, url, password); err != nil {
		return s.OBSStatus(), err
	}
	return s.OBSStatus(), nil
}

func (s *Service) DisconnectOBS() OBSStatus {
	s.mu.Lock()
	s.manual = true
	s.mu.Unlock()
	s.obs.Disconnect()
	return s.OBSStatus()
}

func (s *Service) Scenes() []obsws.Scene { return s.obs.Scenes() }

func (s *Service) RefreshScenes(ctx context.Context) ([]obsws.Scene, error) {
	scenes, err := s.obs.RefreshScenes(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.warned = make(map[string]bool)
	s.mu.Unlock()
	return scenes, nil
}

func (s *Service) CurrentScene(ctx context.Context) (string, error) {
	return s.obs.CurrentScene(ctx)
}

// SwitchScene performs an operator-requested switch outside the mapping.
func (s *Service) SwitchScene(ctx context.Context, name string) (obsws.SwitchResult, error) {
	if err := requireNonEmpty(name, "scene"); err != nil {
		return obsws.SwitchResult{}, err
	}
	res, err := s.obs.SwitchToScene(ctx, name)
	telemetry.RecordSwitch(switchOutcome(res, err))
	if err == nil {
		s.mu.Lock()
		s.activeScene = res.Scene
		s.mu.Unlock()
	}
	return res, err
}

func (s *Service) FetchGames(ctx context.Context, broadcastURL string) ([]lichess.Game, error) {
	url := strings.TrimSpace(broadcastURL)
	if url == "" {
		s.mu.Lock()
		url = s.current.BroadcastURL
		s.mu.Unlock()
	}
	if err := requireNonEmpty(url, "broadcast_url"); err != nil {
		return nil, err
	}
	return s.lichess.FetchBroadcastGames(ctx, url)
}

func (s *Service) Games() []lichess.Game { return s.lichess.Games() }

func (s *Service) publish(feed string, v any) {
	if s.broker != nil {
		s.broker.PublishJSON(feed, v)
	}
}

// record publishes v and appends it to the journal under feed.
func (s *Service) record(feed string, v any) {
	s.publish(feed, v)
	if s.journal == nil {
		return
	}
	entry := struct {
		At    time.Time `json:"at"`
		Feed  string    `json:"feed"`
		Event any       `json:"event"`
	}{At: time.Now().UTC(), Feed: feed, Event: v}
	if err := s.journal.Record(entry); err != nil {
		slog.Debug("journal record dropped", "feed", feed, "error", err)
	}
}
