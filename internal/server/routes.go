package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/gardenctl/internal/actlog"
	"github.com/danmuck/gardenctl/internal/auth"
	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var errGuideDisabled = errors.New("opcode guide disabled")

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/zone", s.zone)
	r.GET("/gardens", s.gardens)
	r.GET("/history", s.history)
	r.GET("/guide", s.guideStatus)

	control := r.Group("/", s.requireToken())
	control.POST("/opcodes/reload", s.reloadOpcodes)
	control.POST("/guide/skip", s.guideSkip)
	control.POST("/guide/restart", s.guideRestart)
	control.POST("/guide/save", s.guideSave)

	if s.deps.Ingest != nil {
		control.GET("/ingest", gin.WrapH(s.deps.Ingest))
	}
}

// requireToken rejects requests without a valid token. With no validator
// configured every request passes.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Token == nil {
			c.Next()
			return
		}
		if err := s.deps.Token.Validate(auth.FromRequest(c.Request)); err != nil {
			log.Warn().Msgf("server.auth path=%s remote=%s err=%v", c.Request.URL.Path, c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	clients := 0
	if s.deps.Clients != nil {
		clients = s.deps.Clients()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         time.Since(s.Started).String(),
		"service":        "gardenctl",
		"version":        version,
		"gardens":        s.deps.Tracker.Gardens().Len(),
		"ingest_clients": clients,
	})
}

func (s *Server) zone(c *gin.Context) {
	snap := s.deps.Tracker.State().Snapshot()
	body := gin.H{"tables": snap}
	if snap.Zone != nil {
		d := s.deps.Tracker.Data().Get()
		body["zone"] = gin.H{
			"name":     d.ZoneName(snap.Zone.Ident, snap.Zone.InHouse),
			"ident":    snap.Zone.Ident,
			"in_house": snap.Zone.InHouse,
		}
	} else {
		body["zone"] = nil
	}
	c.JSON(http.StatusOK, body)
}

type gardenView struct {
	Key         string    `json:"key"`
	Position    string    `json:"position"`
	Soil        string    `json:"soil"`
	Seed        string    `json:"seed"`
	Placeholder bool      `json:"placeholder"`
	SowTime     uint64    `json:"sow_time"`
	LastCare    uint64    `json:"last_care"`
	Fertilized  int       `json:"fertilized"`
	Maturity    time.Time `json:"maturity"`
	Wilt        time.Time `json:"wilt,omitzero"`
	Mature      bool      `json:"mature"`
}

func (s *Server) gardens(c *gin.Context) {
	d := s.deps.Tracker.Data().Get()
	now := time.Now()
	ests := s.deps.Tracker.Gardens().Estimates(d)
	out := make([]gardenView, 0, len(ests))
	for _, e := range ests {
		rec := e.Record
		kind, _ := d.GardenKind(rec.Identity.ObjectID)
		v := gardenView{
			Key:         rec.Identity.Key(),
			Position:    actlog.Position(rec.Identity, kind == gamedata.KindPot, d),
			Soil:        d.SoilName(rec.Soil),
			Seed:        d.SeedName(rec.Seed),
			Placeholder: rec.IsPlaceholder(),
			SowTime:     rec.SowTime,
			LastCare:    rec.LastCare,
			Fertilized:  len(rec.Fertilizations),
			Maturity:    e.MaturityAt(),
			Wilt:        e.WiltAt(),
		}
		v.Mature = !v.Maturity.IsZero() && !now.Before(v.Maturity)
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"gardens": out})
}

func (s *Server) history(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}
	ctx := c.Request.Context()

	if key := c.Query("garden"); key != "" {
		id, err := garden.ParseIdentity(key)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entries, err := s.deps.History.ForGarden(ctx, id, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": entries})
		return
	}

	entries, err := s.deps.History.Recent(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	counts, err := s.deps.History.CountByOperation(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": entries,
		"counts": counts,
		"stats":  s.deps.History.Stats(),
	})
}

func (s *Server) reloadOpcodes(c *gin.Context) {
	t := s.deps.Tracker
	err := t.ReloadOpcodes(s.deps.OpcodeFile)
	body := gin.H{
		"file":           s.deps.OpcodeFile,
		"send":           t.SendDecoder().Table().Len(),
		"receive":        t.RecvDecoder().Table().Len(),
		"inventory_base": t.State().InventoryBase(),
	}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}

func (s *Server) guideStatus(c *gin.Context) {
	if s.deps.Guide == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errGuideDisabled.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Guide.Status())
}

func (s *Server) guideSkip(c *gin.Context) {
	if s.deps.Guide == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errGuideDisabled.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Guide.Skip())
}

func (s *Server) guideRestart(c *gin.Context) {
	if s.deps.Guide == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errGuideDisabled.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Guide.Restart())
}

func (s *Server) guideSave(c *gin.Context) {
	if s.deps.Guide == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errGuideDisabled.Error()})
		return
	}
	if err := s.deps.Guide.SaveFile(s.deps.GuideOutput); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"path":    s.deps.GuideOutput,
		"results": len(s.deps.Guide.Results()),
	})
}
