// Package service wires the tracker, its sinks and the HTTP surface into one
// process lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/gardenctl/internal/actlog"
	"github.com/danmuck/gardenctl/internal/auth"
	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/guide"
	"github.com/danmuck/gardenctl/internal/history"
	"github.com/danmuck/gardenctl/internal/ingest"
	"github.com/danmuck/gardenctl/internal/journal"
	"github.com/danmuck/gardenctl/internal/logging"
	"github.com/danmuck/gardenctl/internal/server"
	"github.com/danmuck/gardenctl/internal/stats"
	"github.com/danmuck/gardenctl/internal/tracker"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAutosaveInterval = errors.New("service: invalid autosave interval")
	ErrInvalidLogLevel         = errors.New("service: invalid log level")
	ErrMissingListenAddr       = errors.New("service: missing listen address")
)

// Config configures a gardenctl process. Relative OpcodeFile paths resolve
// against DataDir; relative GardenFile, HistoryDB and GuideOutput paths
// resolve against StateDir. An empty HistoryDB disables the history index;
// an empty ControlToken leaves the control routes open.
type Config struct {
	LogLevel         string
	DataDir          string
	StateDir         string
	OpcodeFile       string
	GardenFile       string
	AutoSave         bool
	AutosaveInterval time.Duration
	ListenAddr       string
	JournalEnabled   bool
	HistoryDB        string
	GuideEnabled     bool
	GuideOutput      string
	CORSOrigins      []string
	ControlToken     string
	Stats            stats.Config
}

func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		DataDir:          "data",
		StateDir:         "state",
		OpcodeFile:       "opcode.txt",
		GardenFile:       "gardens.json",
		AutoSave:         true,
		AutosaveInterval: 30 * time.Second,
		ListenAddr:       "127.0.0.1:7320",
		JournalEnabled:   true,
		HistoryDB:        "history.db",
		GuideEnabled:     false,
		GuideOutput:      "opcode.discovered.txt",
		Stats:            stats.DefaultConfig(),
	}
}

func (c Config) OpcodePath() string { return resolve(c.DataDir, c.OpcodeFile) }

func (c Config) GardenPath() string { return resolve(c.StateDir, c.GardenFile) }

func (c Config) GuidePath() string { return resolve(c.StateDir, c.GuideOutput) }

func (c Config) JournalDir() string { return filepath.Join(c.StateDir, "journal") }

func (c Config) HistoryPath() string {
	if strings.TrimSpace(c.HistoryDB) == "" {
		return ""
	}
	return resolve(c.StateDir, c.HistoryDB)
}

func resolve(dir, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func (c Config) validate() error {
	if c.AutoSave && c.AutosaveInterval <= 0 {
		return ErrInvalidAutosaveInterval
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrMissingListenAddr
	}
	return nil
}

// Service owns every long-lived component. Components are built in
// bootstrap and released in shutdown.
type Service struct {
	cfg Config

	data     *gamedata.Source
	hub      *ingest.Hub
	tracker  *tracker.Tracker
	reporter *stats.Reporter
	journal  *journal.Writer
	history  *history.Index
	guide    *guide.Guide
	server   *server.Server
}

func New() *Service {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is cancelled, then saves gardens and closes
// every sink.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(); err != nil {
		s.shutdown()
		return err
	}
	defer s.shutdown()
	return s.serve(ctx)
}

func (s *Service) Tracker() *tracker.Tracker { return s.tracker }
func (s *Service) Hub() *ingest.Hub          { return s.hub }

func (s *Service) bootstrap() error {
	if err := s.cfg.validate(); err != nil {
		return err
	}
	if lvl := strings.TrimSpace(s.cfg.LogLevel); lvl != "" && !logging.SetLevel(lvl) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, lvl)
	}

	// missing tables leave the dataset partially empty; names fall back to ids
	d, err := gamedata.Load(s.cfg.DataDir)
	if err != nil {
		log.Warn().Msgf("service.bootstrap gamedata dir=%q err=%v", s.cfg.DataDir, err)
	}
	s.data = gamedata.NewSource(d)
	s.hub = ingest.NewHub()
	s.reporter = stats.New(s.cfg.Stats, s.data)

	var sinks []garden.EventSink
	if s.cfg.JournalEnabled {
		s.journal = journal.NewWriter(s.cfg.JournalDir(), "")
		sinks = append(sinks, s.journal)
	}
	if path := s.cfg.HistoryPath(); path != "" {
		x, err := history.Open(path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		s.history = x
		sinks = append(sinks, x)
	}

	gardens := garden.NewStore()
	if err := gardens.Load(s.cfg.GardenPath()); err != nil {
		return fmt.Errorf("load gardens: %w", err)
	}

	s.tracker = tracker.New(tracker.Options{
		Host:     s.hub,
		Data:     s.data,
		Gardens:  gardens,
		Sinks:    sinks,
		Reporter: s.reporter,
	})
	// an unreadable opcode file leaves both tables empty until reload
	_ = s.tracker.ReloadOpcodes(s.cfg.OpcodePath())

	if s.cfg.GuideEnabled {
		g, err := guide.New(guide.Options{
			Data:      s.data,
			OnAdvance: s.announceGuide,
			// captures apply to the live tables at once
			OnCapture: func(r guide.Result) { s.tracker.LearnOpcode(r.Direction, r.Name, r.Code) },
		})
		if err != nil {
			return fmt.Errorf("build guide: %w", err)
		}
		s.guide = g
		s.tracker.SetObserver(g)
	}
	s.hub.SetHandler(s.tracker)

	deps := server.Deps{
		Tracker:     s.tracker,
		Guide:       s.guide,
		History:     s.history,
		Ingest:      s.hub,
		OpcodeFile:  s.cfg.OpcodePath(),
		GuideOutput: s.cfg.GuidePath(),
		Clients:     s.hub.Clients,
	}
	if tok := strings.TrimSpace(s.cfg.ControlToken); tok != "" {
		deps.Token = auth.StaticToken{Token: tok}
	}
	s.server = server.New(s.cfg.ListenAddr, s.cfg.CORSOrigins, deps)

	log.Info().Msgf(
		"service.bootstrap listen=%s gardens=%d journal=%t history=%q guide=%t stats=%t",
		s.cfg.ListenAddr, gardens.Len(), s.journal != nil, s.cfg.HistoryPath(), s.guide != nil, s.reporter.Enabled(),
	)
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ctx) }()

	var tick <-chan time.Time
	if s.cfg.AutoSave {
		ticker := time.NewTicker(s.cfg.AutosaveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serve http: %w", err)
			}
			return nil
		case <-tick:
			s.autosave()
		}
	}
}

func (s *Service) autosave() {
	saved, err := s.tracker.Gardens().SaveIfDirty(s.cfg.GardenPath())
	if err != nil {
		log.Error().Msgf("service.autosave path=%q err=%v", s.cfg.GardenPath(), err)
		return
	}
	if saved {
		log.Debug().Msgf("service.autosave path=%q gardens=%d", s.cfg.GardenPath(), s.tracker.Gardens().Len())
	}
}

// shutdown stops ingest before the final save so no frame is interpreted
// after the gardens are written or the sinks are closed.
func (s *Service) shutdown() {
	if s.hub != nil {
		s.hub.SetHandler(nil)
		s.hub.Close()
	}
	if s.tracker != nil {
		if err := s.tracker.Gardens().Save(s.cfg.GardenPath()); err != nil {
			log.Error().Msgf("service.shutdown save gardens err=%v", err)
		}
	}
	if s.guide != nil && len(s.guide.Results()) > 0 {
		if err := s.guide.SaveFile(s.cfg.GuidePath()); err != nil {
			log.Error().Msgf("service.shutdown save guide err=%v", err)
		}
	}
	if s.reporter != nil {
		s.reporter.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			log.Error().Msgf("service.shutdown journal err=%v", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			log.Error().Msgf("service.shutdown history err=%v", err)
		}
	}
	log.Info().Msgf("service.shutdown complete")
}

// announceGuide tells the host which action to perform next.
func (s *Service) announceGuide(st guide.Status) {
	var content string
	if st.Done {
		content = fmt.Sprintf("%d|%d|done|%d|", st.Index, st.Total, len(st.Results))
	} else {
		content = fmt.Sprintf("%d|%d|%s|%s|%s|", st.Index, st.Total, st.Direction, st.Record, st.Instruction)
	}
	log.Info().Msgf("service.guide index=%d/%d record=%s done=%t", st.Index, st.Total, st.Record, st.Done)
	s.hub.LogLine(actlog.Envelope(time.Now(), actlog.TypeGuide, content))
}
